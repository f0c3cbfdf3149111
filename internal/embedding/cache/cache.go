package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/logger"
)

// Embedder caches query embeddings in Redis in front of another Embedder.
// Document embeddings pass straight through; they are persisted by the index.
// Cache failures are logged and never fail the call.
type Embedder struct {
	next   domain.Embedder
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// New wraps next. ttl <= 0 keeps entries for 24 hours.
func New(next domain.Embedder, rdb redis.Cmdable, ttl time.Duration, log *logger.Logger) *Embedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Embedder{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: "studyrag:qemb:",
		log:    log.With("component", "EmbeddingCache"),
	}
}

func (e *Embedder) Name() string   { return e.next.Name() }
func (e *Embedder) Dimension() int { return e.next.Dimension() }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.EmbedDocuments(ctx, texts)
}

// EmbedQuery serves from Redis when possible and populates it on a miss.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.Key(text)
	raw, err := e.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, decErr := embedding.DecodeVector(raw); decErr == nil && len(vec) > 0 {
			return vec, nil
		}
	case !errors.Is(err, redis.Nil):
		e.log.Warn("query embedding cache read failed", "error", err)
	}

	vec, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.rdb.Set(ctx, key, embedding.EncodeVector(vec), e.ttl).Err(); err != nil {
		e.log.Warn("query embedding cache write failed", "error", err)
	}
	return vec, nil
}

// Key returns the Redis key for text under the wrapped model.
func (e *Embedder) Key(text string) string {
	h := sha256.Sum256([]byte(e.next.Name() + "\x00" + text))
	return e.prefix + hex.EncodeToString(h[:16])
}

// Dial connects to Redis from a redis:// URL or host:port address and pings it.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var rdb *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(opt)
	} else {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
