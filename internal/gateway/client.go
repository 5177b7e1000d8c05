package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/ollama-bridge/internal/httpclient"
	"github.com/nulzo/ollama-bridge/internal/keypool"
	"github.com/nulzo/ollama-bridge/internal/ollama"
	"github.com/nulzo/ollama-bridge/internal/translate"
	"go.uber.org/zap"
)

const maxErrorBodyBytes = 32 * 1024

// ClientConfig tunes the resilient transport.
type ClientConfig struct {
	BaseURL        string
	MaxAttempts    int           // outer retry envelope for non-streaming calls
	BaseDelay      time.Duration // backoff unit for the outer envelope and transient rotation
	RotationPause  time.Duration // pause before retrying after a 429-triggered rotation
	RequestTimeout time.Duration // overall budget for non-streaming requests
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "https://ollama.com/api",
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		RotationPause:  time.Second,
		RequestTimeout: 120 * time.Second,
	}
}

// Client executes request-reply and request-stream exchanges against the
// upstream API, rotating credentials on 401/429 and retrying transient
// network failures. The only mutable state it shares across exchanges is the
// key pool's rotation cursor.
type Client struct {
	cfg       ClientConfig
	pool      *keypool.Pool
	unary     *http.Client
	streaming *http.Client
	logger    *zap.Logger
}

func NewClient(cfg ClientConfig, pool *keypool.Pool, logger *zap.Logger) *Client {
	unaryCfg := httpclient.DefaultConfig()
	unaryCfg.Timeout = cfg.RequestTimeout

	// The streaming client carries no overall timeout: a generation can
	// legitimately outlive any fixed budget. Dial/TLS/header phases stay capped.
	streamCfg := httpclient.DefaultConfig()
	streamCfg.Timeout = 0

	return &Client{
		cfg:       cfg,
		pool:      pool,
		unary:     httpclient.NewClient(unaryCfg),
		streaming: httpclient.NewClient(streamCfg),
		logger:    logger,
	}
}

// StreamResult is one element of a streaming exchange.
type StreamResult struct {
	Event *translate.StreamEvent
	Err   error
}

func (c *Client) chatURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat"
}

func (c *Client) tagsURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/tags"
}

func (c *Client) headers(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

// Chat performs one non-streaming exchange: the per-key rotation loop wrapped
// in the outer retry envelope. Rate limits wait Retry-After when the upstream
// names it, else a linearly growing delay; transient failures wait the base
// delay; anything else exits immediately.
func (c *Client) Chat(ctx context.Context, req *ollama.ChatRequest) (*ollama.ChatResponse, error) {
	req.Stream = false

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		var resp ollama.ChatResponse
		err := c.dispatch(ctx, http.MethodPost, c.chatURL(), req, &resp)
		if err == nil {
			if resp.Error != "" {
				return nil, &Error{Kind: KindUpstream, Body: resp.Error, Err: fmt.Errorf("upstream error field: %s", resp.Error)}
			}
			return &resp, nil
		}
		lastErr = err

		switch KindOf(err) {
		case KindRateLimit:
			delay := c.cfg.BaseDelay * time.Duration(attempt+1)
			var upstream *httpclient.UpstreamError
			if errors.As(err, &upstream) {
				if ra := upstream.RetryAfterDelay(); ra > 0 {
					delay = ra
				}
			}
			c.logger.Warn("rate limited, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if serr := sleepCtx(ctx, delay); serr != nil {
				return nil, lastErr
			}
		case KindTransient:
			c.logger.Warn("transient upstream failure, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if serr := sleepCtx(ctx, c.cfg.BaseDelay); serr != nil {
				return nil, lastErr
			}
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// Tags fetches the upstream model listing through the same rotating dispatch.
func (c *Client) Tags(ctx context.Context) (*ollama.TagsResponse, error) {
	var tags ollama.TagsResponse
	if err := c.dispatch(ctx, http.MethodGet, c.tagsURL(), nil, &tags); err != nil {
		return nil, err
	}
	return &tags, nil
}

// dispatch runs the per-key rotation state machine for one logical call:
// 401 rotates immediately, 429 rotates after a short pause when a spare key
// exists, transient network failures rotate after the base delay. The loop
// fails once rotation attempts reach the pool size.
func (c *Client) dispatch(ctx context.Context, method, url string, body, out interface{}) error {
	var lastErr error
	for attempts := 0; attempts < c.pool.Len(); attempts++ {
		key := c.pool.Current()
		err := httpclient.SendRequest(ctx, c.unary, method, url, c.headers(key), body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var upstream *httpclient.UpstreamError
		if errors.As(err, &upstream) {
			switch upstream.StatusCode {
			case http.StatusUnauthorized:
				c.logger.Warn("upstream rejected credential, rotating",
					zap.Int("key_index", c.pool.Index()))
				c.pool.Rotate()
				continue
			case http.StatusTooManyRequests:
				if c.pool.Len() > 1 {
					c.pool.Rotate()
					if serr := sleepCtx(ctx, c.cfg.RotationPause); serr != nil {
						return lastErr
					}
					continue
				}
				return newError(KindRateLimit, err)
			default:
				return newError(KindUpstream, err)
			}
		}

		if isTransient(err) {
			if c.pool.Len() > 1 {
				c.pool.Rotate()
				if serr := sleepCtx(ctx, c.cfg.BaseDelay); serr != nil {
					return lastErr
				}
				continue
			}
			return newError(KindTransient, err)
		}

		// Non-transient, non-HTTP failure surfaces untouched after one attempt.
		return err
	}
	return c.exhausted(lastErr)
}

// exhausted converts the last observed error into the terminal typed error
// once every key has been tried.
func (c *Client) exhausted(lastErr error) error {
	if lastErr == nil {
		return &Error{Kind: KindAuthentication, Err: errors.New("all keys exhausted")}
	}
	var upstream *httpclient.UpstreamError
	if errors.As(lastErr, &upstream) {
		switch upstream.StatusCode {
		case http.StatusUnauthorized:
			return newError(KindAuthentication, lastErr)
		case http.StatusTooManyRequests:
			return newError(KindRateLimit, lastErr)
		}
	}
	if isTransient(lastErr) {
		return newError(KindTransient, lastErr)
	}
	return lastErr
}

// Stream opens a streaming exchange. The rotation loop runs until a
// successful status is obtained or the pool is exhausted; once the stream is
// open no further rotation happens — a mid-stream failure terminates the
// stream with an error instead of reconnecting. Events arrive on the returned
// channel in wire order; the channel closes when the upstream does.
func (c *Client) Stream(ctx context.Context, req *ollama.ChatRequest) (<-chan StreamResult, error) {
	req.Stream = true

	resp, err := c.openStream(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamResult)
	go func() {
		defer close(ch)
		defer func() {
			_ = resp.Body.Close()
		}()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 || line[0] == ':' {
				continue
			}
			event, ok := translate.EventFromLine(line)
			if !ok {
				continue
			}
			select {
			case ch <- StreamResult{Event: event}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			streamErr := err
			if isTransient(err) {
				streamErr = newError(KindTransient, err)
			}
			select {
			case ch <- StreamResult{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (c *Client) openStream(ctx context.Context, req *ollama.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var lastErr error
	for attempts := 0; attempts < c.pool.Len(); attempts++ {
		key := c.pool.Current()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/x-ndjson")
		httpReq.Header.Set("Authorization", "Bearer "+key)

		resp, err := c.streaming.Do(httpReq)
		if err != nil {
			lastErr = err
			if isTransient(err) {
				if c.pool.Len() > 1 {
					c.pool.Rotate()
					if serr := sleepCtx(ctx, c.cfg.BaseDelay); serr != nil {
						return nil, lastErr
					}
					continue
				}
				return nil, newError(KindTransient, err)
			}
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		upstream := &httpclient.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			URL:        c.chatURL(),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
		lastErr = upstream

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.logger.Warn("upstream rejected credential, rotating",
				zap.Int("key_index", c.pool.Index()))
			c.pool.Rotate()
		case http.StatusTooManyRequests:
			if c.pool.Len() == 1 {
				return nil, newError(KindRateLimit, upstream)
			}
			c.pool.Rotate()
			if serr := sleepCtx(ctx, c.cfg.RotationPause); serr != nil {
				return nil, lastErr
			}
		default:
			return nil, newError(KindUpstream, upstream)
		}
	}
	return nil, c.exhausted(lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
