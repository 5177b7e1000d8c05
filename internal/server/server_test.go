package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ollama-bridge/internal/config"
	"github.com/nulzo/ollama-bridge/internal/gateway"
	"github.com/nulzo/ollama-bridge/internal/keypool"
	"github.com/nulzo/ollama-bridge/internal/server"
	"github.com/nulzo/ollama-bridge/pkg/api"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newBridge(t *testing.T, upstream http.HandlerFunc, bridgeKeys []string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := httptest.NewServer(upstream)
	t.Cleanup(mock.Close)

	pool, err := keypool.New([]string{"upstream-key"})
	assert.NoError(t, err)

	client := gateway.NewClient(gateway.ClientConfig{
		BaseURL:        mock.URL,
		MaxAttempts:    1,
		BaseDelay:      time.Millisecond,
		RotationPause:  time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, pool, zap.NewNop())

	service := gateway.NewService(client, nil, time.Minute, zap.NewNop())

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "test", APIKeys: bridgeKeys},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	srv := httptest.NewServer(server.New(cfg, zap.NewNop(), service).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func mockUpstream(unaryBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			_, _ = w.Write([]byte(unaryBody))
		case "/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3","modified_at":"2025-03-01T00:00:00Z"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newBridge(t, mockUpstream(`{"done":true}`), nil)

	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateMessage(t *testing.T) {
	srv := newBridge(t, mockUpstream(
		`{"message":{"role":"assistant","content":"Hello!"},"done":true,"prompt_eval_count":7,"eval_count":2}`,
	), nil)

	body := `{"model":"llama3","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.MessagesResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "llama3", out.Model)
	assert.Equal(t, "Hello!", out.Content[0].Text)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 7, out.Usage.InputTokens)
	assert.Equal(t, 2, out.Usage.OutputTokens)
}

func TestCreateMessage_ValidationFailure(t *testing.T) {
	srv := newBridge(t, mockUpstream(`{"done":true}`), nil)

	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(`{"model":"llama3"}`))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCompletion(t *testing.T) {
	srv := newBridge(t, mockUpstream(
		`{"message":{"role":"assistant","content":"Hello!"},"done":true,"prompt_eval_count":7,"eval_count":2}`,
	), nil)

	body := `{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.ChatCompletionResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "chat.completion", out.Object)
	assert.Equal(t, "Hello!", out.Choices[0].Message.Content.Text)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Equal(t, 9, out.Usage.TotalTokens)
}

func TestListModels(t *testing.T) {
	srv := newBridge(t, mockUpstream(`{"done":true}`), nil)

	resp, err := http.Get(srv.URL + "/v1/models")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Object string      `json:"object"`
		Data   []api.Model `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "list", out.Object)
	assert.Len(t, out.Data, 1)
	assert.Equal(t, "llama3", out.Data[0].ID)
}

func TestAuth_RejectsMissingKey(t *testing.T) {
	srv := newBridge(t, mockUpstream(`{"done":true}`), []string{"bridge-key"})

	resp, err := http.Get(srv.URL + "/v1/models")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_AcceptsAnthropicAndOpenAIHeaders(t *testing.T) {
	srv := newBridge(t, mockUpstream(`{"done":true}`), []string{"bridge-key"})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/models", nil)
	req.Header.Set("x-api-key", "bridge-key")
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/models", nil)
	req.Header.Set("Authorization", "Bearer bridge-key")
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpstreamRateLimitMapsTo429(t *testing.T) {
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	body := `{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var out api.ErrorBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "rate_limit_error", out.Type)
}

func TestStreamMessages_SSEFraming(t *testing.T) {
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		body := "{\"message\":{\"content\":\"Hel\"},\"done\":false}\n" +
			"{\"message\":{\"content\":\"lo\"},\"done\":false}\n" +
			"{\"done\":true,\"prompt_eval_count\":4,\"eval_count\":2}\n"
		_, _ = w.Write([]byte(body))
	}, nil)

	body := `{"model":"llama3","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw := readAll(t, resp)
	assert.Contains(t, raw, "event: message_start")
	assert.Contains(t, raw, "event: content_block_start")
	assert.Contains(t, raw, `"text":"Hel"`)
	assert.Contains(t, raw, `"text":"lo"`)
	assert.Contains(t, raw, "event: content_block_stop")
	assert.Contains(t, raw, `"stop_reason":"end_turn"`)
	assert.Contains(t, raw, `"output_tokens":2`)
	assert.Contains(t, raw, "event: message_stop")
}

func TestStreamCompletions_ChunksAndDone(t *testing.T) {
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		body := "{\"message\":{\"content\":\"Hi\"},\"done\":false}\n" +
			"{\"done\":true,\"prompt_eval_count\":4,\"eval_count\":1}\n"
		_, _ = w.Write([]byte(body))
	}, nil)

	body := `{"model":"llama3","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw := readAll(t, resp)
	assert.Contains(t, raw, `"object":"chat.completion.chunk"`)
	assert.Contains(t, raw, `"role":"assistant"`)
	assert.Contains(t, raw, `"finish_reason":"stop"`)
	assert.Contains(t, raw, `"total_tokens":5`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(raw), "data: [DONE]"))
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			return b.String()
		}
	}
}
