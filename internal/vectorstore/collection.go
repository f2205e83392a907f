package vectorstore

import (
	"context"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// EnsureCollection creates the collection for vectors of size dim if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.ValidationError("vector dimension must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return storeErr("collection check", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
		OnDiskPayload: qdrant.PtrOf(true),
	})
	if err != nil {
		return storeErr("create collection", err)
	}
	return nil
}

// DeleteCollection drops the collection. Deleting a missing collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return storeErr("collection check", err)
	}
	if !exists {
		return nil
	}

	if err := s.client.DeleteCollection(ctx, s.collection); err != nil && !isNotFound(err) {
		return storeErr("delete collection", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, storeErr("count", err)
	}
	return count, nil
}
