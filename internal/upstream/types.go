package upstream

import (
	"encoding/json"
	"fmt"
)

// Message is one turn of an upstream query. The provider understands a
// reduced role set: "user", "system", and "bot".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is the provider-facing request shape.
type Query struct {
	Messages         []Message      `json:"query"`
	Temperature      float64        `json:"temperature"`
	SkipSystemPrompt bool           `json:"skip_system_prompt"`
	LogitBias        map[string]int `json:"logit_bias"`
	StopSequences    []string       `json:"stop_sequences"`
}

// PartialEvent is one incremental text event from a streamed call.
// Replace marks a replace_response event, whose text supersedes
// everything accumulated so far instead of appending to it.
type PartialEvent struct {
	Text    string
	Replace bool
}

// BotError carries the provider's own structured rejection. Payload holds
// the raw error body when the provider sent one.
type BotError struct {
	Text       string          `json:"text"`
	AllowRetry bool            `json:"allow_retry"`
	Payload    json.RawMessage `json:"-"`
}

func (e *BotError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("upstream bot error: %s", e.Text)
	}
	return "upstream bot error"
}
