package mappers

import (
	"fmt"
	"strings"
	"time"

	"github.com/formzs/poe-to-gpt/internal/botmap"
	"github.com/formzs/poe-to-gpt/internal/upstream"
)

// UnsupportedModelError marks a request for a model absent from the bot
// catalog. Raised before any credential is selected.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("model %s is not supported", e.Model)
}

// ResolveBot maps the requested model to its canonical upstream bot name.
func ResolveBot(catalog *botmap.Catalog, model string) (string, error) {
	bot, ok := catalog.Resolve(model)
	if !ok {
		return "", &UnsupportedModelError{Model: model}
	}
	return bot, nil
}

const defaultTemperature = 0.7

// BuildQuery translates a validated chat request into the upstream query
// shape. The provider only understands "user", "system", and its generic
// non-user role, so assistant/function/tool all become "bot".
func BuildQuery(req *ChatRequest) upstream.Query {
	messages := make([]upstream.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := msg.Role
		if role != "user" && role != "system" {
			role = "bot"
		}
		messages = append(messages, upstream.Message{Role: role, Content: msg.Content})
	}

	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	skipSystemPrompt := false
	if req.SkipSystemPrompt != nil {
		skipSystemPrompt = *req.SkipSystemPrompt
	}
	logitBias := req.LogitBias
	if logitBias == nil {
		logitBias = map[string]int{}
	}
	stop := req.stopSequences()
	if stop == nil {
		stop = []string{}
	}

	return upstream.Query{
		Messages:         messages,
		Temperature:      temperature,
		SkipSystemPrompt: skipSystemPrompt,
		LogitBias:        logitBias,
		StopSequences:    stop,
	}
}

// EstimateUsage approximates token counts by whitespace-splitting the
// flattened input messages and the produced output.
func EstimateUsage(req *ChatRequest, output string) Usage {
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(strings.Fields(msg.Content))
	}
	completion := len(strings.Fields(output))
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

const (
	finishStop  = "stop"
	finishError = "error"
)

// NewCompletion composes the caller-facing completion object for a
// non-streaming request.
func NewCompletion(requestID, model, content string, usage Usage) ChatResponse {
	finish := finishStop
	return ChatResponse{
		ID:      requestID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      &ChatMessage{Role: "assistant", Content: content},
			FinishReason: &finish,
		}},
		Usage: &usage,
	}
}

// NewContentChunk composes one streaming chunk carrying a content delta.
func NewContentChunk(requestID, model, delta string) StreamChunk {
	return StreamChunk{
		ID:      requestID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Delta: &Delta{Content: delta},
		}},
	}
}

// NewFinishChunk composes the terminal chunk: empty delta, finish_reason
// "stop".
func NewFinishChunk(requestID, model string) StreamChunk {
	finish := finishStop
	return StreamChunk{
		ID:      requestID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Delta:        &Delta{},
			FinishReason: &finish,
		}},
	}
}

// NewErrorChunk composes the terminal chunk emitted when the provider
// rejects mid-stream. The upstream's own message rides in the delta.
func NewErrorChunk(requestID, model, message string) StreamChunk {
	finish := finishError
	return StreamChunk{
		ID:      requestID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Delta:        &Delta{Content: message},
			FinishReason: &finish,
		}},
	}
}
