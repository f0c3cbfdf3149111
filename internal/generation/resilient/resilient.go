// Package resilient wraps a Generator with client-side rate limiting and a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
)

var _ domain.Generator = (*Generator)(nil)

// Config tunes the limiter and breaker. Zero values use the defaults.
type Config struct {
	Name string
	// RequestsPerMinute caps outgoing calls; <= 0 disables limiting.
	RequestsPerMinute int
	// Burst defaults to a tenth of RequestsPerMinute, at least 1.
	Burst int
	// FailureRatio trips the breaker once MinRequests calls have been seen.
	FailureRatio float64
	MinRequests  uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	HalfOpenMax uint32
	Interval    time.Duration
}

type Generator struct {
	next    domain.Generator
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

func New(next domain.Generator, cfg Config, log *logger.Logger) *Generator {
	if cfg.Name == "" {
		cfg.Name = "generation"
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	log = log.With("component", "ResilientGenerator", "backend", cfg.Name)

	g := &Generator{next: next, log: log}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RequestsPerMinute / 10
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// Caller cancellation says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return g
}

// State reports the breaker state.
func (g *Generator) State() gobreaker.State { return g.breaker.State() }

func (g *Generator) CompleteChat(ctx context.Context, messages []domain.Message) (string, error) {
	return g.call(ctx, "chat", func(ctx context.Context) (string, error) {
		return g.next.CompleteChat(ctx, messages)
	})
}

func (g *Generator) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return g.call(ctx, "json", func(ctx context.Context) (string, error) {
		return g.next.CompleteJSON(ctx, prompt)
	})
}

func (g *Generator) call(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			return "", domain.OpError(domain.ErrGenerationTimeout, op, "rate limit wait", err)
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", domain.OpError(domain.ErrGenerationProvider, op, "circuit open", err)
		}
		return "", err
	}
	return out.(string), nil
}
