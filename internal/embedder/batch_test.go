package embedder

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// indexBackend returns vectors encoding the text length and records batch sizes.
type indexBackend struct {
	mu      sync.Mutex
	batches []int
	delay   time.Duration
}

func (b *indexBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	b.batches = append(b.batches, len(texts))
	b.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestBatcher_PreservesOrder(t *testing.T) {
	backend := &indexBackend{}
	b := NewBatcher(backend, WithConcurrency(3))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg"}
	got, err := b.Embed(context.Background(), texts, 2)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(got) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(got), len(texts))
	}
	for i, v := range got {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("embedding %d = %v, want length marker %d", i, v, len(texts[i]))
		}
	}

	total := 0
	for _, n := range backend.batches {
		if n > 2 {
			t.Errorf("batch of %d exceeds batch size 2", n)
		}
		total += n
	}
	if len(backend.batches) != 4 || total != len(texts) {
		t.Errorf("batches = %v, want 4 batches covering %d texts", backend.batches, len(texts))
	}
}

func TestBatcher_Empty(t *testing.T) {
	called := false
	b := NewBatcher(BackendFunc(func(context.Context, []string) ([][]float32, error) {
		called = true
		return nil, nil
	}))

	got, err := b.Embed(context.Background(), nil, 16)
	if err != nil || got != nil {
		t.Errorf("Embed(nil) = %v, %v", got, err)
	}
	if called {
		t.Error("backend should not be called for empty input")
	}
}

func TestBatcher_Normalize(t *testing.T) {
	b := NewBatcher(BackendFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{3, 4}
		}
		return out, nil
	}), WithNormalize(true))

	got, err := b.Embed(context.Background(), []string{"x"}, 1)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if math.Abs(float64(got[0][0])-0.6) > 1e-6 || math.Abs(float64(got[0][1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", got[0])
	}
}

func TestBatcher_ErrorCancelsOthers(t *testing.T) {
	boom := stderrors.New("backend down")
	var calls atomic.Int32
	b := NewBatcher(BackendFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithConcurrency(4))

	_, err := b.Embed(context.Background(), []string{"a", "b", "c", "d"}, 1)
	if !stderrors.Is(err, boom) {
		t.Errorf("Embed() error = %v, want %v", err, boom)
	}
}

func TestBatcher_CountMismatch(t *testing.T) {
	b := NewBatcher(BackendFunc(func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}))

	if _, err := b.Embed(context.Background(), []string{"a", "b"}, 2); err == nil {
		t.Error("expected error for short backend response")
	}
}

func TestBatcher_RateLimit(t *testing.T) {
	backend := &indexBackend{}
	b := NewBatcher(backend, WithRateLimit(20))

	start := time.Now()
	if _, err := b.Embed(context.Background(), []string{"a", "b", "c"}, 1); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	// burst of one, then two waits of 50ms
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed %v, expected rate limiting", elapsed)
	}
}

func TestL2Normalize_Zero(t *testing.T) {
	v := l2Normalize([]float32{0, 0})
	if v[0] != 0 || v[1] != 0 {
		t.Errorf("zero vector changed: %v", v)
	}
}
