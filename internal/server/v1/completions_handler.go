package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nulzo/ollama-bridge/internal/gateway"
	"github.com/nulzo/ollama-bridge/internal/server/middleware"
	"github.com/nulzo/ollama-bridge/internal/server/validator"
	"github.com/nulzo/ollama-bridge/pkg/api"
)

type CompletionsHandler struct {
	service   gateway.Service
	validator *validator.Validator
}

func NewCompletionsHandler(service gateway.Service, v *validator.Validator) *CompletionsHandler {
	return &CompletionsHandler{
		service:   service,
		validator: v,
	}
}

func (h *CompletionsHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, err := h.service.ChatCompletion(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CompletionsHandler) handleStream(c *gin.Context, req *api.ChatCompletionRequest) {
	stream, err := h.service.StreamChatCompletion(c.Request.Context(), req)
	if err != nil {
		kind := gateway.KindOf(err)
		if kind == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(middleware.StatusForKind(kind), gin.H{
			"error": api.ErrorBody{Type: string(kind), Message: err.Error()},
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	streamID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	first := true

	// consume the channel and flush chunks to the client
	c.Stream(func(w io.Writer) bool {
		result, ok := <-stream
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if result.Err != nil {
			chunk := h.chunk(streamID, created, req.Model)
			chunk.Choices[0].FinishReason = "error"
			h.writeChunk(w, chunk)
			return false
		}

		ev := result.Event
		if ev.Done() {
			chunk := h.chunk(streamID, created, req.Model)
			chunk.Choices[0].FinishReason = "stop"
			chunk.Usage = &api.CompletionUsage{
				PromptTokens:     ev.Terminal.PromptEvalCount,
				CompletionTokens: ev.Terminal.EvalCount,
				TotalTokens:      ev.Terminal.PromptEvalCount + ev.Terminal.EvalCount,
			}
			h.writeChunk(w, chunk)
			return true
		}

		chunk := h.chunk(streamID, created, req.Model)
		chunk.Choices[0].Delta.Content = api.Content{Text: ev.Delta}
		if first {
			chunk.Choices[0].Delta.Role = "assistant"
			first = false
		}
		h.writeChunk(w, chunk)
		return true
	})
}

func (h *CompletionsHandler) chunk(id string, created int64, model string) *api.ChatCompletionResponse {
	return &api.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []api.Choice{{Index: 0, Delta: &api.ChatMessage{}}},
	}
}

func (h *CompletionsHandler) writeChunk(w io.Writer, chunk *api.ChatCompletionResponse) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
