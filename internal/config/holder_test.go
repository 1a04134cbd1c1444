package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_UpdateAndPath(t *testing.T) {
	first := &Resolved{LogLevel: "info"}
	h := NewHolder(first, "/etc/dashsync/config.toml")

	require.Same(t, first, h.Config())
	assert.Equal(t, "/etc/dashsync/config.toml", h.Path())

	second := &Resolved{LogLevel: "debug"}
	h.Update(second)

	assert.Same(t, second, h.Config())
	assert.Equal(t, "/etc/dashsync/config.toml", h.Path())
}

func TestHolder_ConcurrentReadWrite(t *testing.T) {
	h := NewHolder(&Resolved{}, "/tmp/config.toml")

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				assert.NotNil(t, h.Config())
			}
		}()
	}

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				h.Update(&Resolved{LogLevel: "warn"})
			}
		}()
	}

	wg.Wait()
}
