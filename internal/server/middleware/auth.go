package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ollama-bridge/pkg/api"
)

// Auth checks the request against the bridge's own static keys. Anthropic
// clients send x-api-key, OpenAI clients a Bearer token; both are accepted.
// An empty key list leaves the bridge open.
func Auth(staticKeys []string) gin.HandlerFunc {
	if len(staticKeys) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	keys := make(map[string]bool, len(staticKeys))
	for _, k := range staticKeys {
		keys[k] = true
	}

	return func(c *gin.Context) {
		token := c.GetHeader("x-api-key")
		if token == "" {
			header := c.GetHeader("Authorization")
			if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" || !keys[token] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorBody{
				Type:    "authentication_error",
				Message: "missing or invalid api key",
			})
			return
		}

		c.Next()
	}
}
