package auth

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStateUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		s, err := GenerateState()
		require.NoError(t, err)
		_, dup := seen[s]
		require.False(t, dup, "duplicate state after %d generations", i)
		seen[s] = struct{}{}
	}
}

func TestGenerateStateAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		s, err := GenerateState()
		require.NoError(t, err)
		require.Len(t, s, StateLength)
		assert.Regexp(t, `^[A-Za-z0-9]+$`, s)
	}
}

func TestGenerateStateConcurrent(t *testing.T) {
	const workers, each = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*each)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				s, err := GenerateState()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}
