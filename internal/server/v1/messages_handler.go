package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nulzo/ollama-bridge/internal/gateway"
	"github.com/nulzo/ollama-bridge/internal/server/middleware"
	"github.com/nulzo/ollama-bridge/internal/server/validator"
	"github.com/nulzo/ollama-bridge/pkg/api"
)

type MessagesHandler struct {
	service   gateway.Service
	validator *validator.Validator
}

func NewMessagesHandler(service gateway.Service, v *validator.Validator) *MessagesHandler {
	return &MessagesHandler{
		service:   service,
		validator: v,
	}
}

func (h *MessagesHandler) CreateMessage(c *gin.Context) {
	var req api.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, err := h.service.Messages(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleStream drains the event channel into Anthropic SSE framing: a
// message_start/content_block_start prelude, one content_block_delta per
// fragment, then the closing delta/stop frames.
func (h *MessagesHandler) handleStream(c *gin.Context, req *api.MessagesRequest) {
	stream, err := h.service.StreamMessages(c.Request.Context(), req)
	if err != nil {
		h.streamOpenError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	messageID := "msg_" + uuid.NewString()
	writeEvent(c.Writer, "message_start", gin.H{
		"type": "message_start",
		"message": gin.H{
			"id":      messageID,
			"type":    "message",
			"role":    "assistant",
			"model":   req.Model,
			"content": []gin.H{},
			"usage":   gin.H{"input_tokens": 0, "output_tokens": 0},
		},
	})
	writeEvent(c.Writer, "content_block_start", gin.H{
		"type":          "content_block_start",
		"index":         0,
		"content_block": gin.H{"type": "text", "text": ""},
	})

	stopReason := ""
	outputTokens := 0
	inputTokens := 0

	for result := range stream {
		if result.Err != nil {
			kind := gateway.KindOf(result.Err)
			if kind == "" {
				kind = "api_error"
			}
			writeEvent(c.Writer, "error", gin.H{
				"type": "error",
				"error": api.ErrorBody{
					Type:    string(kind),
					Message: result.Err.Error(),
				},
			})
			break
		}

		ev := result.Event
		if ev.Done() {
			stopReason = "end_turn"
			inputTokens = ev.Terminal.PromptEvalCount
			outputTokens = ev.Terminal.EvalCount
			continue
		}

		writeEvent(c.Writer, "content_block_delta", gin.H{
			"type":  "content_block_delta",
			"index": 0,
			"delta": gin.H{"type": "text_delta", "text": ev.Delta},
		})
	}

	// End of input without a terminal line is implicit completion: close the
	// frames without fabricating usage.
	writeEvent(c.Writer, "content_block_stop", gin.H{
		"type":  "content_block_stop",
		"index": 0,
	})
	if stopReason != "" {
		writeEvent(c.Writer, "message_delta", gin.H{
			"type":  "message_delta",
			"delta": gin.H{"stop_reason": stopReason},
			"usage": gin.H{"input_tokens": inputTokens, "output_tokens": outputTokens},
		})
	}
	writeEvent(c.Writer, "message_stop", gin.H{"type": "message_stop"})
}

// streamOpenError answers a failure that happened before any SSE frame went
// out, in the Anthropic error envelope.
func (h *MessagesHandler) streamOpenError(c *gin.Context, err error) {
	kind := gateway.KindOf(err)
	if kind == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"type":  "error",
			"error": api.ErrorBody{Type: "api_error", Message: err.Error()},
		})
		return
	}
	c.JSON(middleware.StatusForKind(kind), gin.H{
		"type":  "error",
		"error": api.ErrorBody{Type: string(kind), Message: err.Error()},
	})
}

func writeEvent(w gin.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.Flush()
}
