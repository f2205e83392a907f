package embedder

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// BreakerConfig configures a circuit breaker around a Backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32 // requests allowed while half-open
	Interval         time.Duration
	Timeout          time.Duration // time spent open before probing again
	ReadyToTripRatio float64
	MinRequests      uint32
}

// Breaker stops calling a failing Backend until it recovers.
type Breaker struct {
	backend Backend
	cb      *gobreaker.CircuitBreaker
}

// NewBreaker wraps backend with a circuit breaker.
func NewBreaker(backend Backend, cfg BreakerConfig, log *logger.Logger) *Breaker {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Embedding circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Breaker{
		backend: backend,
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// EmbedBatch implements Backend.
func (b *Breaker) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.backend.EmbedBatch(ctx, texts)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.Wrap(errors.CodeUnavailable, "embedding backend unavailable", err)
		}
		return nil, err
	}
	return resp.([][]float32), nil
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
