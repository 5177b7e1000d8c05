package keypool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDropsBlankKeys(t *testing.T) {
	pool, err := New([]string{" ", "key-a", "", "key-b "})
	assert.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, "key-a", pool.Current())
}

func TestNewEmptyIsError(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = New([]string{"", "  "})
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestRotateIsModuloCycle(t *testing.T) {
	pool, err := New([]string{"k0", "k1", "k2"})
	assert.NoError(t, err)

	// after n rotations over a pool of size k, index == n mod k
	for n := 1; n <= 10; n++ {
		pool.Rotate()
		assert.Equal(t, n%3, pool.Index())
	}
}

func TestRotateSingleKey(t *testing.T) {
	pool, err := New([]string{"only"})
	assert.NoError(t, err)

	assert.Equal(t, "only", pool.Rotate())
	assert.Equal(t, "only", pool.Current())
	assert.Equal(t, 0, pool.Index())
}

func TestConcurrentRotationKeepsCursorValid(t *testing.T) {
	pool, err := New([]string{"a", "b", "c", "d", "e"})
	assert.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				pool.Rotate()
			}
		}()
	}
	wg.Wait()

	// 8000 total rotations over 5 keys
	assert.Equal(t, 8000%5, pool.Index())
}
