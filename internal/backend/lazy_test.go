package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazy_ConstructsOnceUnderContention(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy(func(context.Context) (*int, error) {
		calls.Add(1)
		v := 42
		return &v, nil
	})

	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.True(t, l.Loaded())
}

func TestLazy_FailureNotCached(t *testing.T) {
	fail := true
	l := NewLazy(func(context.Context) (string, error) {
		if fail {
			return "", errors.New("backend down")
		}
		return "ready", nil
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	assert.False(t, l.Loaded())

	fail = false
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}
