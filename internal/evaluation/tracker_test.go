package evaluation

import (
	"context"
	stderrors "errors"
	"testing"
)

type scriptedScorer struct {
	scores []float64
	infos  []RunInfo
	err    error
}

func (s *scriptedScorer) Evaluate(_ context.Context, _ Embedder, info RunInfo) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.infos = append(s.infos, info)
	score := s.scores[0]
	s.scores = s.scores[1:]
	return score, nil
}

func TestTracker_Step(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.3, 0.5, 0.4, 0.5, 0.8}}
	tracker := NewTracker(scorer, "/tmp/out")

	var callbacks int
	tracker.Callback = func(float64, int, int) { callbacks++ }

	var saved []float64
	tracker.OnImprove = func(_ context.Context, score float64, _, _ int) error {
		saved = append(saved, score)
		return nil
	}

	if _, _, _, ok := tracker.Best(); ok {
		t.Error("Best() should report no score before the first step")
	}

	wantImproved := []bool{true, true, false, false, true}
	for i, want := range wantImproved {
		_, improved, err := tracker.Step(context.Background(), nil, 0, (i+1)*100)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if improved != want {
			t.Errorf("step %d improved = %v, want %v", i, improved, want)
		}
	}

	if callbacks != 5 {
		t.Errorf("callback ran %d times, want 5", callbacks)
	}
	if len(saved) != 3 {
		t.Errorf("OnImprove ran %d times, want 3", len(saved))
	}

	score, epoch, steps, ok := tracker.Best()
	if !ok || score != 0.8 || epoch != 0 || steps != 500 {
		t.Errorf("Best() = %v, %d, %d, %v", score, epoch, steps, ok)
	}
	if scorer.infos[0].OutputPath != "/tmp/out" || scorer.infos[2].Steps != 300 {
		t.Errorf("unexpected run info %+v", scorer.infos)
	}
}

func TestTracker_ErrorsPropagate(t *testing.T) {
	boom := stderrors.New("boom")
	tracker := NewTracker(&scriptedScorer{err: boom}, "")

	if _, _, err := tracker.Step(context.Background(), nil, 1, -1); !stderrors.Is(err, boom) {
		t.Errorf("Step() error = %v, want %v", err, boom)
	}
	if _, _, _, ok := tracker.Best(); ok {
		t.Error("failed step should not record a best score")
	}
}
