package api

import "encoding/json"

// MessagesRequest is the Anthropic-style /v1/messages payload.
type MessagesRequest struct {
	Model string `json:"model" binding:"required"`

	// message array is required, dive in and deep validate
	Messages []Message `json:"messages" binding:"required,min=1,dive"`

	// Can be a plain string or an array of text segments
	System SystemPrompt `json:"system,omitempty"`

	// LLM Parameters. Pointers so "absent" and "zero" stay distinguishable.
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`

	// Tool definitions are accepted and carried through; invocations surface
	// as flattened text markers on the upstream side.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`
}

type Message struct {
	Role    string         `json:"role" binding:"required"`
	Content MessageContent `json:"content"`
}

// MessageContent handles the union type: string | []ContentBlock
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &c.Blocks)
	}
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// ContentBlock is one typed element of a structured message.
type ContentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"; content can be a string or nested blocks
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// SystemPrompt handles the union type: string | [{type:"text",text:...}]
type SystemPrompt struct {
	Segments []string
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		s.Segments = []string{text}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var segments []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &segments); err != nil {
			return err
		}
		for _, seg := range segments {
			s.Segments = append(s.Segments, seg.Text)
		}
		return nil
	}
	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if len(s.Segments) == 1 {
		return json.Marshal(s.Segments[0])
	}
	segments := make([]map[string]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		segments = append(segments, map[string]string{"type": "text", "text": seg})
	}
	return json.Marshal(segments)
}

type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// MessagesResponse is the Anthropic-style response envelope.
type MessagesResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"` // "message"
	Role       string          `json:"role"` // "assistant"
	Model      string          `json:"model"`
	Content    []ResponseBlock `json:"content"`
	StopReason string          `json:"stop_reason,omitempty"`
	Usage      MessagesUsage   `json:"usage"`
}

type ResponseBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
