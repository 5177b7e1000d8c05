package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ollama-bridge/internal/gateway"
	"github.com/nulzo/ollama-bridge/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler maps errors attached by handlers to HTTP responses. Typed
// gateway errors become a {type, message} body with a status derived from the
// error kind; Problems serialize as RFC 9457.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var problem *api.Problem
		if errors.As(err, &problem) {
			if problem.Log != nil {
				logger.Error("request failed", zap.Error(problem.Log))
			}
			c.JSON(problem.Status, problem)
			c.Abort()
			return
		}

		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			logger.Warn("upstream exchange failed",
				zap.String("kind", string(gerr.Kind)),
				zap.Error(gerr))
			c.JSON(StatusForKind(gerr.Kind), api.ErrorBody{
				Type:    string(gerr.Kind),
				Message: gerr.Error(),
			})
			c.Abort()
			return
		}

		logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.NewError(
			http.StatusInternalServerError,
			"Internal Server Error",
			"An unexpected error occurred.",
		))
		c.Abort()
	}
}

// StatusForKind maps a gateway error kind to the status the bridge answers
// with. Upstream credential exhaustion and network trouble are gateway
// failures from the caller's point of view.
func StatusForKind(kind gateway.ErrorKind) int {
	switch kind {
	case gateway.KindRateLimit:
		return http.StatusTooManyRequests
	case gateway.KindConfiguration:
		return http.StatusInternalServerError
	case gateway.KindAuthentication, gateway.KindTransient, gateway.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
