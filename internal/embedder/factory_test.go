package embedder

import (
	"testing"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

func TestNewBackend(t *testing.T) {
	base := config.EmbedderConfig{Provider: "ollama", Model: "nomic-embed-text", Concurrency: 2}

	tests := []struct {
		name   string
		modify func(*config.EmbedderConfig)
		check  func(t *testing.T, b Backend)
	}{
		{
			name: "ollama",
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*Ollama); !ok {
					t.Errorf("backend = %T, want *Ollama", b)
				}
			},
		},
		{
			name: "openai",
			modify: func(c *config.EmbedderConfig) {
				c.Provider = "openai"
				c.APIKey = "key"
			},
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*OpenAI); !ok {
					t.Errorf("backend = %T, want *OpenAI", b)
				}
			},
		},
		{
			name: "breaker",
			modify: func(c *config.EmbedderConfig) {
				c.Breaker = config.BreakerConfig{Enabled: true, MaxRequests: 1, ReadyToTripRatio: 0.5}
			},
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*Breaker); !ok {
					t.Errorf("backend = %T, want *Breaker", b)
				}
			},
		},
		{
			name:   "cache outermost",
			modify: func(c *config.EmbedderConfig) { c.CacheSize = 10; c.Breaker.Enabled = true },
			check: func(t *testing.T, b Backend) {
				cb, ok := b.(*CachedBackend)
				if !ok {
					t.Fatalf("backend = %T, want *CachedBackend", b)
				}
				if _, ok := cb.backend.(*Breaker); !ok {
					t.Errorf("inner backend = %T, want *Breaker", cb.backend)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			b, err := NewBackend(cfg, logger.Discard(), nil)
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			tt.check(t, b)
		})
	}
}

func TestNewBackend_UnknownProvider(t *testing.T) {
	_, err := NewBackend(config.EmbedderConfig{Provider: "onnx"}, logger.Discard(), nil)
	if !errors.IsConfiguration(err) {
		t.Errorf("NewBackend() error = %v, want configuration error", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	b, err := NewFromConfig(config.EmbedderConfig{Provider: "ollama", Concurrency: 3, RateLimit: 5}, logger.Discard(), nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if b.concurrency != 3 || b.limiter == nil {
		t.Errorf("batcher = %+v", b)
	}
}
