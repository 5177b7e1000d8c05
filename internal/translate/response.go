package translate

import (
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/ollama-bridge/internal/ollama"
	"github.com/nulzo/ollama-bridge/pkg/api"
)

// RenderText composes the visible text of an upstream message. Reasoning
// output is joined ahead of the answer with a blank line; if the answer is
// empty the reasoning stands alone.
func RenderText(msg *ollama.ResponseMessage) string {
	content := msg.Text()
	thinking := msg.Reasoning()

	if thinking == "" {
		return content
	}
	if content == "" {
		return thinking
	}
	return thinking + "\n\n" + content
}

// ToMessagesResponse converts an upstream reply into the Anthropic-style
// envelope. A fresh identifier is minted per response; when the upstream
// omits an output count the rendered text's length stands in as a last-resort
// estimate.
func ToMessagesResponse(resp *ollama.ChatResponse, originModel string) *api.MessagesResponse {
	text := RenderText(&resp.Message)

	stopReason := ""
	if resp.Done {
		stopReason = "end_turn"
	}

	outputTokens := resp.EvalCount
	if outputTokens == 0 {
		outputTokens = len(text)
	}

	return &api.MessagesResponse{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      originModel,
		Content:    []api.ResponseBlock{{Type: "text", Text: text}},
		StopReason: stopReason,
		Usage: api.MessagesUsage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: outputTokens,
		},
	}
}

// ToChatCompletion converts an upstream reply into the OpenAI-style envelope.
func ToChatCompletion(resp *ollama.ChatResponse, originModel string) *api.ChatCompletionResponse {
	text := RenderText(&resp.Message)

	finishReason := ""
	if resp.Done {
		finishReason = "stop"
	}

	return &api.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   originModel,
		Choices: []api.Choice{{
			Index: 0,
			Message: &api.ChatMessage{
				Role:    "assistant",
				Content: api.Content{Text: text},
			},
			FinishReason: finishReason,
		}},
		Usage: &api.CompletionUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
}

// ToModelList converts the upstream tag listing into the OpenAI-style model
// list.
func ToModelList(tags *ollama.TagsResponse) []api.Model {
	models := make([]api.Model, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, api.Model{
			ID:      m.Name,
			Object:  "model",
			Created: m.ModifiedAt.Unix(),
			OwnedBy: "ollama",
		})
	}
	return models
}
