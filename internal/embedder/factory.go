package embedder

import (
	"fmt"
	"time"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// NewBackend builds the configured provider wrapped with the optional breaker and cache.
// metrics may be nil.
func NewBackend(cfg config.EmbedderConfig, log *logger.Logger, metrics CacheMetrics) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	var backend Backend
	switch cfg.Provider {
	case "ollama":
		backend = NewOllama(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case "openai":
		o, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = o
	default:
		return nil, errors.ConfigurationError(fmt.Sprintf("unknown embedder provider: %s", cfg.Provider))
	}

	if cfg.Breaker.Enabled {
		backend = NewBreaker(backend, BreakerConfig{
			Name:             cfg.Provider + "/" + cfg.Model,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         time.Duration(cfg.Breaker.IntervalSecs) * time.Second,
			Timeout:          time.Duration(cfg.Breaker.TimeoutSecs) * time.Second,
			ReadyToTripRatio: cfg.Breaker.ReadyToTripRatio,
		}, log)
	}

	if cfg.CacheSize > 0 {
		cache := NewCache(cfg.CacheSize)
		if metrics != nil {
			cache.SetMetrics(metrics)
		}
		backend = NewCachedBackend(backend, cache)
	}

	return backend, nil
}

// NewFromConfig builds a ready-to-use batching embedder.
func NewFromConfig(cfg config.EmbedderConfig, log *logger.Logger, metrics CacheMetrics) (*Batcher, error) {
	backend, err := NewBackend(cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	log.Info("Embedder configured",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"concurrency", cfg.Concurrency,
		"cache_size", cfg.CacheSize,
		"breaker", cfg.Breaker.Enabled,
	)

	return NewBatcher(backend,
		WithConcurrency(cfg.Concurrency),
		WithRateLimit(cfg.RateLimit),
		WithNormalize(cfg.Normalize),
		WithBatchLogger(log),
	), nil
}
