package mappers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/formzs/poe-to-gpt/internal/botmap"
)

func f64(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	base := func() *ChatRequest {
		return &ChatRequest{
			Model:    "gpt-4",
			Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	empty := base()
	empty.Messages = nil
	if err := empty.Validate(); err == nil {
		t.Error("empty messages accepted")
	}

	badRole := base()
	badRole.Messages = []ChatMessage{{Role: "narrator", Content: "x"}}
	if err := badRole.Validate(); err == nil {
		t.Error("unrecognized role accepted")
	}

	hot := base()
	hot.Temperature = f64(2.5)
	if err := hot.Validate(); err == nil {
		t.Error("temperature 2.5 accepted")
	}

	topP := base()
	topP.TopP = f64(1.5)
	if err := topP.Validate(); err == nil {
		t.Error("top_p 1.5 accepted")
	}

	penalty := base()
	penalty.PresencePenalty = f64(-3)
	if err := penalty.Validate(); err == nil {
		t.Error("presence_penalty -3 accepted")
	}
}

func TestChatMessage_UnmarshalContentParts(t *testing.T) {
	var msg ChatMessage
	body := `{"role":"user","content":[{"type":"text","text":"part one"},{"type":"image_url","image_url":{"url":"https://x"}},{"type":"text","text":"part two"}]}`
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Content != "part one\npart two" {
		t.Errorf("flattened content = %q", msg.Content)
	}

	var plain ChatMessage
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &plain); err != nil {
		t.Fatalf("unmarshal plain: %v", err)
	}
	if plain.Content != "hello" {
		t.Errorf("plain content = %q", plain.Content)
	}
}

func TestResolveBot(t *testing.T) {
	catalog := botmap.New(map[string]string{"gpt-3.5-turbo": "Assistant"})

	bot, err := ResolveBot(catalog, "GPT-3.5-TURBO")
	if err != nil || bot != "Assistant" {
		t.Errorf("ResolveBot = %q, %v", bot, err)
	}

	_, err = ResolveBot(catalog, "missing-model")
	var unsupported *UnsupportedModelError
	if !errors.As(err, &unsupported) {
		t.Fatalf("want UnsupportedModelError, got %v", err)
	}
	if unsupported.Model != "missing-model" {
		t.Errorf("error model = %q", unsupported.Model)
	}
}

func TestBuildQuery_RoleReduction(t *testing.T) {
	req := &ChatRequest{
		Model: "gpt-4",
		Messages: []ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "tool", Content: "result"},
			{Role: "function", Content: "output"},
		},
	}

	q := BuildQuery(req)
	wantRoles := []string{"system", "user", "bot", "bot", "bot"}
	if len(q.Messages) != len(wantRoles) {
		t.Fatalf("message count = %d", len(q.Messages))
	}
	for i, want := range wantRoles {
		if q.Messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, q.Messages[i].Role, want)
		}
	}
}

func TestBuildQuery_Defaults(t *testing.T) {
	req := &ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}
	q := BuildQuery(req)

	if q.Temperature != 0.7 {
		t.Errorf("default temperature = %v", q.Temperature)
	}
	if q.SkipSystemPrompt {
		t.Error("skip_system_prompt should default to false")
	}
	if q.LogitBias == nil || q.StopSequences == nil {
		t.Error("logit_bias and stop_sequences should default to empty, not nil")
	}
}

func TestChatRequestStopDecoding(t *testing.T) {
	var req ChatRequest
	if err := json.Unmarshal([]byte(`{"model":"gpt-4","stop":"foo"}`), &req); err != nil {
		t.Fatalf("single-string stop rejected: %v", err)
	}
	if len(req.Stop) != 1 || req.Stop[0] != "foo" {
		t.Errorf("stop = %v, want [foo]", req.Stop)
	}

	if err := json.Unmarshal([]byte(`{"model":"gpt-4","stop":["a","b"]}`), &req); err != nil {
		t.Fatalf("array stop rejected: %v", err)
	}
	if len(req.Stop) != 2 || req.Stop[0] != "a" || req.Stop[1] != "b" {
		t.Errorf("stop = %v, want [a b]", req.Stop)
	}

	if err := json.Unmarshal([]byte(`{"model":"gpt-4","stop":7}`), &req); err == nil {
		t.Error("numeric stop accepted")
	}
}

func TestBuildQuery_StopMerging(t *testing.T) {
	req := &ChatRequest{
		Messages:      []ChatMessage{{Role: "user", Content: "hi"}},
		Stop:          StringList{"a"},
		StopSequences: []string{"b"},
	}
	q := BuildQuery(req)
	if len(q.StopSequences) != 2 || q.StopSequences[0] != "a" || q.StopSequences[1] != "b" {
		t.Errorf("merged stop sequences = %v", q.StopSequences)
	}
}

func TestEstimateUsage(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Hello there"},
		},
	}
	usage := EstimateUsage(req, "General Kenobi, you are bold")

	if usage.PromptTokens != 7 {
		t.Errorf("prompt tokens = %d, want 7", usage.PromptTokens)
	}
	if usage.CompletionTokens != 5 {
		t.Errorf("completion tokens = %d, want 5", usage.CompletionTokens)
	}
	if usage.TotalTokens != 12 {
		t.Errorf("total tokens = %d, want 12", usage.TotalTokens)
	}
}

func TestChunkComposition(t *testing.T) {
	chunk := NewContentChunk("req-1", "gpt-4", "hi")
	if chunk.Object != "chat.completion.chunk" {
		t.Errorf("object = %q", chunk.Object)
	}
	if chunk.Choices[0].Delta.Content != "hi" || chunk.Choices[0].FinishReason != nil {
		t.Errorf("content chunk malformed: %+v", chunk.Choices[0])
	}

	finish := NewFinishChunk("req-1", "gpt-4")
	if finish.Choices[0].FinishReason == nil || *finish.Choices[0].FinishReason != "stop" {
		t.Errorf("finish chunk malformed: %+v", finish.Choices[0])
	}
	if finish.Choices[0].Delta == nil || finish.Choices[0].Delta.Content != "" {
		t.Errorf("finish chunk delta should be empty: %+v", finish.Choices[0].Delta)
	}

	errChunk := NewErrorChunk("req-1", "gpt-4", "bot exploded")
	if errChunk.Choices[0].FinishReason == nil || *errChunk.Choices[0].FinishReason != "error" {
		t.Errorf("error chunk malformed: %+v", errChunk.Choices[0])
	}
	if errChunk.Choices[0].Delta.Content != "bot exploded" {
		t.Errorf("error chunk message = %q", errChunk.Choices[0].Delta.Content)
	}

	resp := NewCompletion("req-1", "gpt-4", "answer", Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	if resp.Object != "chat.completion" {
		t.Errorf("completion object = %q", resp.Object)
	}
	if resp.Choices[0].Message.Role != "assistant" || resp.Choices[0].Message.Content != "answer" {
		t.Errorf("completion choice malformed: %+v", resp.Choices[0])
	}
}
