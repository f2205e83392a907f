package vectorstore

import (
	"context"
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

type memoryStore struct {
	vectors   map[string][]float32
	upserted  []string
	upsertErr error
	lookupErr error
	ensured   []int
}

func (m *memoryStore) Lookup(_ context.Context, texts []string) ([][]float32, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectors[t]
	}
	return out, nil
}

func (m *memoryStore) Upsert(_ context.Context, texts []string, vectors [][]float32) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for i, t := range texts {
		m.vectors[t] = vectors[i]
	}
	m.upserted = append(m.upserted, texts...)
	return nil
}

func (m *memoryStore) EnsureCollection(_ context.Context, dim int) error {
	m.ensured = append(m.ensured, dim)
	return nil
}

func constantEmbedder(calls *[]string) evaluation.EmbedderFunc {
	return func(_ context.Context, texts []string, _ int) ([]evaluation.Embedding, error) {
		*calls = append(*calls, texts...)
		out := make([]evaluation.Embedding, len(texts))
		for i := range out {
			out[i] = evaluation.Embedding{9, 9}
		}
		return out, nil
	}
}

func TestEmbedder_AllStored(t *testing.T) {
	store := &memoryStore{vectors: map[string][]float32{"a": {1, 0}, "b": {0, 1}}}
	e := NewEmbedder(store, nil, logger.Discard())

	got, err := e.Embed(context.Background(), []string{"b", "a"}, 8)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got[0][1] != 1 || got[1][0] != 1 {
		t.Errorf("Embed() = %v", got)
	}
}

func TestEmbedder_MissWithoutFallback(t *testing.T) {
	store := &memoryStore{vectors: map[string][]float32{"a": {1, 0}}}
	e := NewEmbedder(store, nil, logger.Discard())

	_, err := e.Embed(context.Background(), []string{"a", "missing"}, 8)
	if !errors.IsEmbedding(err) {
		t.Errorf("Embed() error = %v, want embedding error", err)
	}
}

func TestEmbedder_FallbackWritesBack(t *testing.T) {
	store := &memoryStore{vectors: map[string][]float32{"a": {1, 0}}}
	var calls []string
	e := NewEmbedder(store, constantEmbedder(&calls), logger.Discard())

	got, err := e.Embed(context.Background(), []string{"x", "a", "y"}, 8)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got[0][0] != 9 || got[1][0] != 1 || got[2][0] != 9 {
		t.Errorf("Embed() = %v", got)
	}
	if len(calls) != 2 || calls[0] != "x" || calls[1] != "y" {
		t.Errorf("fallback called with %v, want [x y]", calls)
	}
	if len(store.upserted) != 2 {
		t.Errorf("upserted %v, want two texts", store.upserted)
	}

	// Second call is served from the store.
	calls = nil
	if _, err := e.Embed(context.Background(), []string{"x", "y"}, 8); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("fallback called again with %v", calls)
	}
}

func TestEmbedder_WriteBackFailureIsNotFatal(t *testing.T) {
	store := &memoryStore{vectors: map[string][]float32{}, upsertErr: stderrors.New("read only")}
	var calls []string
	e := NewEmbedder(store, constantEmbedder(&calls), logger.Discard())

	got, err := e.Embed(context.Background(), []string{"x"}, 8)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Embed() = %v", got)
	}
}

func TestEmbedder_MissingCollection(t *testing.T) {
	grpcNotFound := status.Error(codes.NotFound, "Collection `rice_eval_embeddings` doesn't exist!")

	tests := []struct {
		name      string
		lookupErr error
	}{
		{"grpc status", grpcNotFound},
		{"wrapped by store", storeErr("get points", grpcNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{vectors: map[string][]float32{}, lookupErr: tt.lookupErr}
			var calls []string
			e := NewEmbedder(store, constantEmbedder(&calls), logger.Discard())

			got, err := e.Embed(context.Background(), []string{"x", "y"}, 8)
			if err != nil {
				t.Fatalf("Embed() error = %v", err)
			}
			if len(got) != 2 || got[0][0] != 9 {
				t.Errorf("Embed() = %v", got)
			}
			if len(calls) != 2 {
				t.Errorf("fallback called with %v, want every text", calls)
			}
			if len(store.ensured) != 1 || store.ensured[0] != 2 {
				t.Errorf("EnsureCollection dims = %v, want [2]", store.ensured)
			}
			if len(store.upserted) != 2 {
				t.Errorf("upserted %v, want two texts", store.upserted)
			}
		})
	}
}

func TestEmbedder_MissingCollectionWithoutFallback(t *testing.T) {
	store := &memoryStore{lookupErr: status.Error(codes.NotFound, "missing")}
	e := NewEmbedder(store, nil, logger.Discard())

	if _, err := e.Embed(context.Background(), []string{"x"}, 8); err == nil {
		t.Error("Embed() should fail without a fallback")
	}
}

func TestEmbedder_LookupErrorPropagates(t *testing.T) {
	boom := stderrors.New("connection refused")
	store := &memoryStore{lookupErr: boom}
	var calls []string
	e := NewEmbedder(store, constantEmbedder(&calls), logger.Discard())

	if _, err := e.Embed(context.Background(), []string{"x"}, 8); !stderrors.Is(err, boom) {
		t.Errorf("Embed() error = %v, want %v", err, boom)
	}
	if len(calls) != 0 {
		t.Errorf("fallback should not run on other errors, got %v", calls)
	}
}

func TestStoreErr(t *testing.T) {
	if err := storeErr("get points", status.Error(codes.NotFound, "missing")); !errors.IsNotFound(err) {
		t.Errorf("storeErr(NotFound) = %v, want not found code", err)
	}
	if err := storeErr("upsert", status.Error(codes.Unavailable, "down")); errors.Code(err) != errors.CodeStore {
		t.Errorf("storeErr(Unavailable) = %v, want store error", err)
	}
}

func TestCollectionName(t *testing.T) {
	if got := collectionName("msmarco"); got != "rice_eval_msmarco" {
		t.Errorf("collectionName() = %q", got)
	}
}

func TestToPoint(t *testing.T) {
	p := toPoint("hello", []float32{1, 2})
	if p.GetId().GetUuid() == "" {
		t.Fatal("point id should be a UUID")
	}
	if toPoint("hello", nil).GetId().GetUuid() != p.GetId().GetUuid() {
		t.Error("point id should depend only on the text")
	}
	if got := p.GetPayload()[payloadText].GetStringValue(); got != "hello" {
		t.Errorf("payload text = %q", got)
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.Host != DefaultHost || cfg.Port != DefaultPort || cfg.Timeout != DefaultTimeout {
		t.Errorf("DefaultClientConfig() = %+v", cfg)
	}
}

func TestNew_RequiresCollection(t *testing.T) {
	if _, err := New(DefaultClientConfig(), ""); !errors.IsConfiguration(err) {
		t.Errorf("New() error = %v, want configuration error", err)
	}
}
