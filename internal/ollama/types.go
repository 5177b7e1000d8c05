// Package ollama holds the wire structures of the upstream Ollama chat API.
package ollama

import (
	"encoding/json"
	"time"
)

// ChatRequest is the body of POST {base}/chat.
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Message is a single flat-content turn sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is one response object, either the full non-streaming reply or
// a single newline-delimited line of a stream.
type ChatResponse struct {
	Model           string          `json:"model,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	Message         ResponseMessage `json:"message,omitempty"`
	Done            bool            `json:"done"`
	DoneReason      string          `json:"done_reason,omitempty"`
	PromptEvalCount int             `json:"prompt_eval_count,omitempty"`
	EvalCount       int             `json:"eval_count,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ResponseMessage carries the generated content. Reasoning-capable models may
// split output into a "thinking" part and the final answer; content itself can
// be a plain string or a nested object repeating that split.
type ResponseMessage struct {
	Role     string         `json:"role,omitempty"`
	Content  MessageContent `json:"content,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
}

// Text returns the final-answer text, preferring the direct string form over
// the nested object's "content" then "text" fields.
func (m *ResponseMessage) Text() string {
	if m.Content.Text != "" {
		return m.Content.Text
	}
	if m.Content.Nested != nil {
		if m.Content.Nested.Content != "" {
			return m.Content.Nested.Content
		}
		return m.Content.Nested.Text
	}
	return ""
}

// Reasoning returns the thinking text from whichever level carries it.
func (m *ResponseMessage) Reasoning() string {
	if m.Thinking != "" {
		return m.Thinking
	}
	if m.Content.Nested != nil {
		return m.Content.Nested.Thinking
	}
	return ""
}

// MessageContent handles the union type: string | {content|text, thinking}
type MessageContent struct {
	Text   string
	Nested *NestedContent
}

type NestedContent struct {
	Content  string `json:"content,omitempty"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	if len(data) > 0 && data[0] == '{' {
		c.Nested = &NestedContent{}
		return json.Unmarshal(data, c.Nested)
	}
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Nested != nil {
		return json.Marshal(c.Nested)
	}
	return json.Marshal(c.Text)
}

// TagsResponse is the body of GET {base}/tags.
type TagsResponse struct {
	Models []TagModel `json:"models"`
}

type TagModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Digest     string    `json:"digest,omitempty"`
	Size       int64     `json:"size,omitempty"`
}
