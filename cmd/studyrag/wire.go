package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"studyrag/internal/answer"
	"studyrag/internal/backend"
	"studyrag/internal/chunker"
	"studyrag/internal/config"
	"studyrag/internal/domain"
	"studyrag/internal/embedding/cache"
	geminiembed "studyrag/internal/embedding/gemini"
	"studyrag/internal/embedding/hashing"
	openaiembed "studyrag/internal/embedding/openai"
	geminigen "studyrag/internal/generation/gemini"
	openaigen "studyrag/internal/generation/openai"
	"studyrag/internal/generation/resilient"
	"studyrag/internal/index"
	"studyrag/internal/logger"
	"studyrag/internal/quiz"
	"studyrag/internal/retrieval"
	"studyrag/internal/service"
	"studyrag/internal/sqlitedb"
	"studyrag/internal/store"
	storemem "studyrag/internal/store/memory"
	storesql "studyrag/internal/store/sqlite"
	"studyrag/internal/summarizer"
	"studyrag/internal/vectorstore"
	vecmem "studyrag/internal/vectorstore/memory"
	"studyrag/internal/vectorstore/qdrant"
	vecsql "studyrag/internal/vectorstore/sqlite"
)

// app holds the assembled service and everything that must be closed on exit.
type app struct {
	svc *service.RAGService
	log *logger.Logger

	mu      sync.Mutex
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

func (a *app) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.log.Sync()
	return errors.Join(errs...)
}

func newApp(log *logger.Logger) *app { return &app{log: log} }

// build assembles the service. Resources opened before a failure stay registered,
// so Close releases them either way.
func (a *app) build(ctx context.Context, cfg *config.AppConfig) error {
	log := a.log

	var db *sql.DB
	openDB := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = sqlitedb.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.onClose(db.Close)
		return db, nil
	}

	var (
		docs    store.DocumentStore
		quizzes store.QuizStore
	)
	switch cfg.Storage.Type {
	case "memory":
		docs, quizzes = storemem.NewDocuments(), storemem.NewQuizzes()
	case "sqlite":
		conn, err := openDB()
		if err != nil {
			return err
		}
		docs, quizzes = storesql.NewDocuments(conn), storesql.NewQuizzes(conn)
	default:
		return fmt.Errorf("unknown storage: %s", cfg.Storage.Type)
	}

	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory":
		st = vecmem.NewStorage()
	case "sqlite":
		conn, err := openDB()
		if err != nil {
			return err
		}
		st = vecsql.NewStorage(conn)
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return errors.New("qdrant config missing")
		}
		q, err := qdrant.Dial(qdrant.Config{
			Addr:       cfg.VectorStore.Qdrant.Addr,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
		})
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		st = q
	default:
		return fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	a.onClose(st.Close)

	emb, err := a.embedder(ctx, cfg, log)
	if err != nil {
		return err
	}
	gen, err := a.generator(cfg, log)
	if err != nil {
		return err
	}

	ix := index.New(emb, st, log)
	a.svc = service.NewRAGService(service.Deps{
		Chunker: chunker.NewFixedSizeChunker(cfg.Chunker.Size),
		Index:   ix,
		Context: retrieval.NewBuilder(ix, cfg.Retrieval.K, log),
		Answers: answer.NewGenerator(gen, answer.Config{
			Timeout:         cfg.ChatTimeout(),
			MaxContextRunes: cfg.Retrieval.MaxContextRunes,
		}, log),
		Quizzes: quiz.NewGenerator(gen, quizzes, quiz.Config{
			Questions:     cfg.Quiz.Questions,
			Attempts:      cfg.Quiz.Attempts,
			MaxInputRunes: cfg.Quiz.MaxInputRunes,
		}, log),
		Documents:        docs,
		QuizStore:        quizzes,
		Summarizer:       summarizer.NewFrequencySummarizer(),
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, log)
	return nil
}

// embedder builds the process-wide embedder. Remote clients are created on first use.
func (a *app) embedder(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Dimension)
	case "openai":
		o := cfg.Embedder.OpenAI
		emb = backend.NewEmbedder("openai:"+o.Model, func(context.Context) (domain.Embedder, error) {
			c, err := openaiembed.NewClient(openaiembed.Config{
				BaseURL:     o.BaseURL,
				APIKeyEnv:   o.APIKeyEnv,
				Model:       o.Model,
				Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
				BatchSize:   o.BatchSize,
				Concurrency: o.Concurrency,
				MaxRetries:  o.MaxRetries,
				Dimension:   cfg.Embedder.Dimension,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	case "gemini":
		g := cfg.Embedder.Gemini
		emb = backend.NewEmbedder("gemini:"+g.Model, func(ctx context.Context) (domain.Embedder, error) {
			e, err := geminiembed.NewEmbedder(ctx, geminiembed.Config{
				APIKey:    os.Getenv(g.APIKeyEnv),
				Model:     g.Model,
				Dimension: cfg.Embedder.Dimension,
			})
			if err != nil {
				return nil, err
			}
			a.onClose(e.Close)
			return e, nil
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	if cfg.Cache.RedisURL == "" {
		return emb, nil
	}
	rdb, err := cache.Dial(ctx, cfg.Cache.RedisURL, "", 0)
	if err != nil {
		log.Warn("embedding cache disabled", "error", err)
		return emb, nil
	}
	a.onClose(rdb.Close)
	return cache.New(emb, rdb, time.Duration(cfg.Cache.TTLSecs)*time.Second, log), nil
}

// generator builds the process-wide generation backend behind a rate limiter and breaker.
func (a *app) generator(cfg *config.AppConfig, log *logger.Logger) (domain.Generator, error) {
	g := cfg.Generator
	var lazy *backend.Generator
	switch g.Type {
	case "openai":
		o := g.OpenAI
		lazy = backend.NewGenerator(func(context.Context) (domain.Generator, error) {
			c, err := openaigen.NewClient(openaigen.Config{
				BaseURL:     o.BaseURL,
				APIKey:      os.Getenv(o.APIKeyEnv),
				ChatModel:   o.ChatModel,
				JSONModel:   o.JSONModel,
				ChatTimeout: cfg.ChatTimeout(),
				JSONTimeout: cfg.JSONTimeout(),
				Referer:     o.Referer,
				Title:       o.Title,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	case "gemini":
		gm := g.Gemini
		lazy = backend.NewGenerator(func(ctx context.Context) (domain.Generator, error) {
			c, err := geminigen.NewClient(ctx, geminigen.Config{
				APIKey:      os.Getenv(gm.APIKeyEnv),
				Model:       gm.Model,
				ChatTimeout: cfg.ChatTimeout(),
				JSONTimeout: cfg.JSONTimeout(),
			})
			if err != nil {
				return nil, err
			}
			a.onClose(c.Close)
			return c, nil
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", g.Type)
	}
	return resilient.New(lazy, resilient.Config{
		Name:              g.Type,
		RequestsPerMinute: g.RequestsPerMinute,
		OpenTimeout:       time.Duration(g.BreakerOpenSecs) * time.Second,
	}, log), nil
}
