package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/hash"
)

// DefaultBatchSize bounds the number of points per Qdrant request.
const DefaultBatchSize = 256

// Upsert stores vectors[i] for texts[i]. The point id is derived from the text, so
// re-indexing the same text overwrites its vector.
func (s *Store) Upsert(ctx context.Context, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return errors.ValidationError(fmt.Sprintf("got %d texts and %d vectors", len(texts), len(vectors)))
	}

	for start := 0; start < len(texts); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(texts))
		if err := s.upsertBatch(ctx, texts[start:end], vectors[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, texts []string, vectors [][]float32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, len(texts))
	for i, text := range texts {
		points[i] = toPoint(text, vectors[i])
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// Lookup returns the stored vector for each text, or nil where none is stored.
func (s *Store) Lookup(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(texts))
		if err := s.lookupBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) lookupBatch(ctx context.Context, texts []string, out [][]float32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	ids := make([]*qdrant.PointId, 0, len(texts))
	positions := make(map[string][]int, len(texts))
	for i, text := range texts {
		id := hash.TextUUID(text)
		if _, seen := positions[id]; !seen {
			ids = append(ids, qdrant.NewIDUUID(id))
		}
		positions[id] = append(positions[id], i)
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return storeErr("get points", err)
	}

	for _, p := range points {
		vec := pointVector(p)
		for _, i := range positions[p.GetId().GetUuid()] {
			out[i] = vec
		}
	}
	return nil
}

func toPoint(text string, vector []float32) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(hash.TextUUID(text)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{payloadText: text}),
	}
}

func pointVector(p *qdrant.RetrievedPoint) []float32 {
	v := p.GetVectors().GetVector()
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}
