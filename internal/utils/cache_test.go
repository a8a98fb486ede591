package utils

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_BasicOperations(t *testing.T) {
	cache := NewCache[string, int]()

	cache.Set("key1", 42)
	value, exists := cache.Get("key1")
	require.True(t, exists)
	assert.Equal(t, 42, value)

	_, exists = cache.Get("nonexistent")
	assert.False(t, exists)

	cache.Delete("key1")
	_, exists = cache.Get("key1")
	assert.False(t, exists)
	assert.Equal(t, 0, cache.Size())
}

func TestCache_GetOrComputeRunsOnce(t *testing.T) {
	cache := NewCache[string, int]()
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCompute("answer", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"answer"}, cache.Keys())
}

func TestCache_GetOrComputeErrorNotCached(t *testing.T) {
	cache := NewCache[string, int]()
	boom := errors.New("boom")

	_, err := cache.GetOrCompute("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := cache.GetOrCompute("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
