package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// Batcher splits texts into batches and sends them to a Backend.
type Batcher struct {
	backend     Backend
	concurrency int
	limiter     *rate.Limiter
	normalize   bool
	log         *logger.Logger
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithConcurrency sets how many batches may be in flight at once.
func WithConcurrency(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRateLimit caps backend requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64) BatcherOption {
	return func(b *Batcher) {
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithNormalize enables L2 normalisation of every returned vector.
func WithNormalize(enabled bool) BatcherOption {
	return func(b *Batcher) {
		b.normalize = enabled
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(log *logger.Logger) BatcherOption {
	return func(b *Batcher) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBatcher creates a Batcher for backend.
func NewBatcher(backend Backend, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		backend:     backend,
		concurrency: 1,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ evaluation.Embedder = (*Batcher)(nil)

// Embed implements evaluation.Embedder. Output order matches texts.
func (b *Batcher) Embed(ctx context.Context, texts []string, batchSize int) ([]evaluation.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	out := make([]evaluation.Embedding, len(texts))
	batches := (len(texts) + batchSize - 1) / batchSize
	b.log.Debug("Embedding texts", "texts", len(texts), "batches", batches, "concurrency", b.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			vectors, err := b.backend.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return errors.EmbeddingError("backend returned wrong number of vectors",
					fmt.Errorf("expected %d, got %d", end-start, len(vectors)))
			}

			for i, v := range vectors {
				if b.normalize {
					v = l2Normalize(v)
				}
				out[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
