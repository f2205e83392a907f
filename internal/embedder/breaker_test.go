package embedder

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

func TestBreaker_Trips(t *testing.T) {
	boom := stderrors.New("down")
	calls := 0
	backend := BackendFunc(func(context.Context, []string) ([][]float32, error) {
		calls++
		return nil, boom
	})

	b := NewBreaker(backend, BreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Timeout:          time.Minute,
		ReadyToTripRatio: 0.5,
	}, logger.Discard())

	for i := 0; i < 3; i++ {
		if _, err := b.EmbedBatch(context.Background(), []string{"a"}); !stderrors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want %v", i, err, boom)
		}
	}

	_, err := b.EmbedBatch(context.Background(), []string{"a"})
	if errors.Code(err) != errors.CodeUnavailable {
		t.Errorf("error = %v, want unavailable", err)
	}
	if calls != 3 {
		t.Errorf("backend called %d times, want 3", calls)
	}
	if b.State() != "open" {
		t.Errorf("State() = %q, want open", b.State())
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	b := NewBreaker(BackendFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}), BreakerConfig{Name: "ok", ReadyToTripRatio: 0.5}, nil)

	got, err := b.EmbedBatch(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(got) != 1 || got[0][1] != 2 {
		t.Errorf("EmbedBatch() = %v", got)
	}
}
