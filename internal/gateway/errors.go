package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/nulzo/ollama-bridge/internal/httpclient"
)

// ErrorKind discriminates upstream failures so callers can switch on kind
// instead of matching message text.
type ErrorKind string

const (
	// KindAuthentication: every configured key was rejected with 401.
	KindAuthentication ErrorKind = "authentication_error"
	// KindRateLimit: 429 survived both the rotation loop and the retry budget.
	KindRateLimit ErrorKind = "rate_limit_error"
	// KindTransient: a retryable network failure exhausted its retries.
	KindTransient ErrorKind = "transient_network_error"
	// KindUpstream: any other non-2xx status, carrying status and raw body.
	KindUpstream ErrorKind = "upstream_protocol_error"
	// KindConfiguration: no key configured at all.
	KindConfiguration ErrorKind = "configuration_error"
)

// Error is the typed failure surfaced by the transport.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, or empty for untyped errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func newError(kind ErrorKind, err error) *Error {
	out := &Error{Kind: kind, Err: err}
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		out.StatusCode = upstream.StatusCode
		out.Body = string(upstream.Body)
	}
	return out
}

// isTransient recognizes the network failures considered safe to retry:
// connection refused, DNS failure, timeout, mid-stream socket reset, and the
// generic transport-level fetch failure. Context cancellation is never
// transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// http.Client wraps everything in *url.Error; anything left at this point
	// is the generic fetch failure class.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
