package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ollama-bridge/internal/gateway"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

func (h *ModelHandler) ListModels(c *gin.Context) {
	models, err := h.service.Models(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   models,
	})
}
