package gateway

import (
	"context"
	"time"

	"github.com/nulzo/ollama-bridge/internal/store/cache"
	"github.com/nulzo/ollama-bridge/internal/translate"
	"github.com/nulzo/ollama-bridge/pkg/api"
	"go.uber.org/zap"
)

const modelListCacheKey = "models:list"

// Service is the translate-dispatch-translate surface consumed by the HTTP
// front door.
type Service interface {
	Messages(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error)
	StreamMessages(ctx context.Context, req *api.MessagesRequest) (<-chan StreamResult, error)
	ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error)
	StreamChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (<-chan StreamResult, error)
	Models(ctx context.Context) ([]api.Model, error)
}

type service struct {
	client   *Client
	cache    cache.CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService wires the transport behind the translation layer. cache may be
// nil when no cache backend is configured.
func NewService(client *Client, c cache.CacheService, cacheTTL time.Duration, logger *zap.Logger) Service {
	return &service{
		client:   client,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (s *service) Messages(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	start := time.Now()

	resp, err := s.client.Chat(ctx, translate.FromAnthropic(req, false))
	if err != nil {
		return nil, err
	}

	s.logger.Info("completed messages exchange",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)))

	return translate.ToMessagesResponse(resp, req.Model), nil
}

func (s *service) StreamMessages(ctx context.Context, req *api.MessagesRequest) (<-chan StreamResult, error) {
	return s.client.Stream(ctx, translate.FromAnthropic(req, true))
}

func (s *service) ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	start := time.Now()

	resp, err := s.client.Chat(ctx, translate.FromOpenAI(req, false))
	if err != nil {
		return nil, err
	}

	s.logger.Info("completed chat completion exchange",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)))

	return translate.ToChatCompletion(resp, req.Model), nil
}

func (s *service) StreamChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (<-chan StreamResult, error) {
	return s.client.Stream(ctx, translate.FromOpenAI(req, true))
}

func (s *service) Models(ctx context.Context) ([]api.Model, error) {
	if s.cache != nil {
		var cached []api.Model
		if err := s.cache.Get(ctx, modelListCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	tags, err := s.client.Tags(ctx)
	if err != nil {
		return nil, err
	}
	models := translate.ToModelList(tags)

	if s.cache != nil {
		if err := s.cache.Set(ctx, modelListCacheKey, models, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache model list", zap.Error(err))
		}
	}

	return models, nil
}
