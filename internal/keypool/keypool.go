// Package keypool owns the rotation cursor over the configured upstream
// credentials. The cursor is a monotonically increasing atomic counter taken
// modulo the pool size, so concurrent exchanges may rotate without locking and
// the active index stays valid at all times.
package keypool

import (
	"errors"
	"strings"
	"sync/atomic"
)

var ErrNoKeys = errors.New("keypool: no api keys configured")

type Pool struct {
	keys   []string
	cursor atomic.Uint64
}

// New builds a pool from the configured credential list. Blank entries are
// dropped; an empty result is a configuration error, not a valid pool.
func New(keys []string) (*Pool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoKeys
	}
	return &Pool{keys: cleaned}, nil
}

// Current returns the credential under the cursor.
func (p *Pool) Current() string {
	return p.keys[p.Index()]
}

// Rotate advances the cursor one position and returns the newly active
// credential. next = (current + 1) mod len.
func (p *Pool) Rotate() string {
	n := p.cursor.Add(1)
	return p.keys[int(n%uint64(len(p.keys)))]
}

// Index reports the active position, for logging and tests.
func (p *Pool) Index() int {
	return int(p.cursor.Load() % uint64(len(p.keys)))
}

func (p *Pool) Len() int {
	return len(p.keys)
}
