// Package translate maps payloads between the two caller-facing chat schemas
// and the upstream Ollama wire format. Everything here is a pure function over
// its inputs; network concerns live in the gateway.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/ollama-bridge/internal/ollama"
	"github.com/nulzo/ollama-bridge/pkg/api"
)

// FromAnthropic flattens an Anthropic-style messages request into the upstream
// shape. Structured content blocks collapse into a single string per message;
// the system prompt becomes a leading synthetic message.
func FromAnthropic(req *api.MessagesRequest, stream bool) *ollama.ChatRequest {
	out := &ollama.ChatRequest{
		Model:  req.Model,
		Stream: stream,
	}

	if len(req.System.Segments) > 0 {
		out.Messages = append(out.Messages, ollama.Message{
			Role:    "system",
			Content: req.System.Segments[0],
		})
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ollama.Message{
			Role:    normalizeRole(m.Role, "user", "assistant"),
			Content: flattenBlocks(m.Content),
		})
	}

	opts := map[string]interface{}{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		opts["top_k"] = *req.TopK
	}
	if req.MaxTokens != nil {
		opts["num_predict"] = *req.MaxTokens
	}
	if len(opts) > 0 {
		out.Options = opts
	}

	return out
}

// FromOpenAI flattens an OpenAI-style chat-completions request into the
// upstream shape.
func FromOpenAI(req *api.ChatCompletionRequest, stream bool) *ollama.ChatRequest {
	out := &ollama.ChatRequest{
		Model:  req.Model,
		Stream: stream,
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ollama.Message{
			Role:    normalizeRole(m.Role, "user", "assistant", "system"),
			Content: flattenParts(m.Content),
		})
	}

	opts := map[string]interface{}{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		opts["num_predict"] = *req.MaxTokens
	}
	if len(opts) > 0 {
		out.Options = opts
	}

	return out
}

// normalizeRole collapses anything outside the schema's role set to "user".
func normalizeRole(role string, known ...string) string {
	for _, k := range known {
		if role == k {
			return role
		}
	}
	return "user"
}

// flattenBlocks renders typed content blocks into one string, in block order,
// with no separators between blocks.
func flattenBlocks(content api.MessageContent) string {
	if content.Blocks == nil {
		return content.Text
	}

	var b strings.Builder
	for _, block := range content.Blocks {
		switch block.Type {
		case "text":
			b.WriteString(block.Text)
		case "tool_use":
			b.WriteString(fmt.Sprintf("[tool_call: %s(%s)]", block.Name, compactJSON(block.Input)))
		case "tool_result":
			b.WriteString(fmt.Sprintf("[tool_result: %s]", rawAsText(block.Content)))
		}
	}
	return b.String()
}

// flattenParts renders OpenAI content parts into one string, in part order.
func flattenParts(content api.Content) string {
	if content.Parts == nil {
		return content.Text
	}

	var b strings.Builder
	for _, part := range content.Parts {
		switch part.Type {
		case "text":
			b.WriteString(part.Text)
		case "image_url":
			if part.ImageURL != nil {
				b.WriteString(fmt.Sprintf("[image: %s]", part.ImageURL.URL))
			}
		}
	}
	return b.String()
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf strings.Builder
	if err := compactInto(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func compactInto(b *strings.Builder, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Write(out)
	return nil
}

// rawAsText unwraps a JSON string; any other payload is rendered as compact JSON.
func rawAsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return compactJSON(raw)
}
