package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/embedding/hashing"
	"studyrag/internal/logger"
)

// fakeRedis implements only the commands the cache uses.
type fakeRedis struct {
	redis.Cmdable
	data    map[string]string
	gets    int
	sets    int
	failGet bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingEmbedder struct {
	*hashing.Embedder
	queries int
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queries++
	return c.Embedder.EmbedQuery(ctx, text)
}

func TestEmbedQuery_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{Embedder: hashing.NewEmbedder(32)}
	rdb := newFakeRedis()
	e := New(inner, rdb, time.Minute, logger.Nop())
	ctx := context.Background()

	first, err := e.EmbedQuery(ctx, "what is osmosis")
	require.NoError(t, err)
	second, err := e.EmbedQuery(ctx, "what is osmosis")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.queries)
	assert.Equal(t, 1, rdb.sets)
	assert.Equal(t, 2, rdb.gets)
}

func TestEmbedQuery_ReadFailureFallsThrough(t *testing.T) {
	inner := &countingEmbedder{Embedder: hashing.NewEmbedder(32)}
	rdb := newFakeRedis()
	rdb.failGet = true
	e := New(inner, rdb, 0, logger.Nop())

	v, err := e.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 32)
	assert.Equal(t, 1, inner.queries)
}

func TestKey_DependsOnModelAndText(t *testing.T) {
	a := New(hashing.NewEmbedder(8), newFakeRedis(), 0, logger.Nop())
	assert.NotEqual(t, a.Key("x"), a.Key("y"))
	assert.Equal(t, a.Key("x"), a.Key("x"))
	assert.Contains(t, a.Key("x"), "studyrag:qemb:")
}

func TestDial_Live(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	rdb, err := Dial(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	e := New(hashing.NewEmbedder(16), rdb, time.Minute, logger.Nop())
	_, err = e.EmbedQuery(context.Background(), "live cache check")
	require.NoError(t, err)
}
