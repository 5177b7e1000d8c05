package httpclient

import (
	"fmt"
	"strconv"
	"time"
)

// UpstreamError represents a non-2xx response from an upstream service
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
	RetryAfter string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// RetryAfterDelay parses the Retry-After header as a second count. Zero means
// the header was absent or unusable.
func (e *UpstreamError) RetryAfterDelay() time.Duration {
	if e.RetryAfter == "" {
		return 0
	}
	secs, err := strconv.Atoi(e.RetryAfter)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
