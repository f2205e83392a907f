package vectorstore

import (
	"context"
	"fmt"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// VectorStore is the subset of Store used by Embedder.
type VectorStore interface {
	Lookup(ctx context.Context, texts []string) ([][]float32, error)
	Upsert(ctx context.Context, texts []string, vectors [][]float32) error
	EnsureCollection(ctx context.Context, dim int) error
}

// Embedder serves embeddings from a VectorStore. Misses go to the fallback embedder and are
// written back; without a fallback a miss is an error. With a fallback, a collection that
// does not exist yet counts as all misses and is created on write-back.
type Embedder struct {
	store    VectorStore
	fallback evaluation.Embedder
	log      *logger.Logger
}

// NewEmbedder creates a store-backed embedder. fallback may be nil.
func NewEmbedder(store VectorStore, fallback evaluation.Embedder, log *logger.Logger) *Embedder {
	if log == nil {
		log = logger.Discard()
	}
	return &Embedder{store: store, fallback: fallback, log: log}
}

var _ evaluation.Embedder = (*Embedder)(nil)

// Embed implements evaluation.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string, batchSize int) ([]evaluation.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	stored, err := e.store.Lookup(ctx, texts)
	if err != nil {
		if e.fallback == nil || !missingCollection(err) {
			return nil, err
		}
		e.log.Info("Vector store collection missing; embedding everything with the fallback")
		stored = make([][]float32, len(texts))
	}

	out := make([]evaluation.Embedding, len(texts))
	var missTexts []string
	var missIdx []int
	for i, vec := range stored {
		if vec == nil {
			missTexts = append(missTexts, texts[i])
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = vec
	}

	e.log.Debug("Vector store lookup", "texts", len(texts), "misses", len(missTexts))
	if len(missTexts) == 0 {
		return out, nil
	}
	if e.fallback == nil {
		return nil, errors.EmbeddingError("embeddings missing from vector store",
			fmt.Errorf("%d of %d texts not indexed", len(missTexts), len(texts)))
	}

	fresh, err := e.fallback.Embed(ctx, missTexts, batchSize)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, errors.EmbeddingError("fallback embedder returned wrong number of vectors",
			fmt.Errorf("expected %d, got %d", len(missTexts), len(fresh)))
	}

	vectors := make([][]float32, len(fresh))
	for j, vec := range fresh {
		out[missIdx[j]] = vec
		vectors[j] = vec
	}

	if err := e.writeBack(ctx, missTexts, vectors); err != nil {
		// Results are still valid; only the write-back failed.
		e.log.WithError(err).Warn("Failed to write embeddings back to vector store", "texts", len(missTexts))
	}
	return out, nil
}

func missingCollection(err error) bool {
	return errors.IsNotFound(err) || isNotFound(err)
}

func (e *Embedder) writeBack(ctx context.Context, texts []string, vectors [][]float32) error {
	if err := e.store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	return e.store.Upsert(ctx, texts, vectors)
}

// Index embeds texts with embedder and stores the vectors.
func Index(ctx context.Context, store *Store, embedder evaluation.Embedder, texts []string, batchSize int) error {
	if len(texts) == 0 {
		return nil
	}

	embeddings, err := embedder.Embed(ctx, texts, batchSize)
	if err != nil {
		return err
	}
	if len(embeddings) != len(texts) {
		return errors.EmbeddingError("embedder returned wrong number of vectors",
			fmt.Errorf("expected %d, got %d", len(texts), len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		vectors[i] = e
	}

	if err := store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	return store.Upsert(ctx, texts, vectors)
}
