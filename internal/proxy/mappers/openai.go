package mappers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Caller-facing request/response structures, OpenAI chat-completion shape.

type ChatRequest struct {
	Model            string         `json:"model"`
	Messages         []ChatMessage  `json:"messages"`
	Stream           bool           `json:"stream,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	N                *int           `json:"n,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]int `json:"logit_bias,omitempty"`
	Stop             StringList     `json:"stop,omitempty"`
	StopSequences    []string       `json:"stop_sequences,omitempty"`
	SkipSystemPrompt *bool          `json:"skip_system_prompt,omitempty"`
}

var knownRoles = map[string]struct{}{
	"system":    {},
	"user":      {},
	"assistant": {},
	"function":  {},
	"tool":      {},
}

// Validate enforces the documented request invariants: non-empty
// messages, recognized roles, and in-range generation parameters.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, msg := range r.Messages {
		if _, ok := knownRoles[msg.Role]; !ok {
			return fmt.Errorf("message %d has unrecognized role %q", i, msg.Role)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *r.Temperature)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p %v out of range [0, 1]", *r.TopP)
	}
	if r.N != nil && *r.N < 1 {
		return fmt.Errorf("n must be at least 1")
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2 || *r.PresencePenalty > 2) {
		return fmt.Errorf("presence_penalty %v out of range [-2, 2]", *r.PresencePenalty)
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2 || *r.FrequencyPenalty > 2) {
		return fmt.Errorf("frequency_penalty %v out of range [-2, 2]", *r.FrequencyPenalty)
	}
	return nil
}

// stopSequences merges the two accepted spellings of stop sequences.
func (r *ChatRequest) stopSequences() []string {
	if len(r.Stop) == 0 {
		return r.StopSequences
	}
	return append(append([]string{}, r.Stop...), r.StopSequences...)
}

// StringList accepts both the single-string and string-array spellings
// the chat API allows for fields like stop.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings")
	}
	*s = many
	return nil
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts both plain string content and the structured
// content-part array. Non-text parts are dropped; text parts are joined
// into a single string.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Role = a.Role

	if len(a.Content) == 0 {
		m.Content = ""
		return nil
	}

	var strContent string
	if err := json.Unmarshal(a.Content, &strContent); err == nil {
		m.Content = strContent
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(a.Content, &parts); err == nil {
		var texts []string
		for _, part := range parts {
			if part.Type == "text" && part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		m.Content = strings.Join(texts, "\n")
		return nil
	}

	return fmt.Errorf("unsupported message content shape")
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *Delta       `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

// Delta is the incremental message fragment of a streaming chunk. The
// finish chunk carries an empty delta.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Usage reports approximate token counts: whitespace-delimited words,
// not a real tokenizer. Documented to callers as an estimate.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk mirrors ChatResponse but carries deltas.
type StreamChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Model descriptor for the models listing.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}
