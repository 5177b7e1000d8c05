package server

import (
	"github.com/nulzo/ollama-bridge/internal/server/middleware"
	v1 "github.com/nulzo/ollama-bridge/internal/server/v1"
	"github.com/nulzo/ollama-bridge/internal/server/validator"
)

func (s *Server) SetupRoutes() {
	// Global Middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Tracing("ollama-bridge"))
	s.router.Use(middleware.ErrorHandler(s.logger))

	// Health Check (Public)
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	// API V1 Group
	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
	api.Use(limiter.Middleware())
	{
		v := validator.New()

		messagesHandler := v1.NewMessagesHandler(s.service, v)
		api.POST("/messages", messagesHandler.CreateMessage)

		completionsHandler := v1.NewCompletionsHandler(s.service, v)
		api.POST("/chat/completions", completionsHandler.CreateCompletion)

		modelsHandler := v1.NewModelHandler(s.service)
		api.GET("/models", modelsHandler.ListModels)
	}
}
