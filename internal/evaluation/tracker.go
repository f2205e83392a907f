package evaluation

import (
	"context"
	"math"
	"sync"
)

// Scorer produces a single quality score for one evaluation call.
type Scorer interface {
	Evaluate(ctx context.Context, embedder Embedder, info RunInfo) (float64, error)
}

// Tracker runs a Scorer at training checkpoints and remembers the best score.
type Tracker struct {
	scorer     Scorer
	outputPath string

	mu        sync.Mutex
	best      float64
	bestEpoch int
	bestSteps int
	seen      bool

	// Callback runs after every evaluation.
	Callback func(score float64, epoch, steps int)

	// OnImprove runs when a score beats every previous one, e.g. to save the model.
	OnImprove func(ctx context.Context, score float64, epoch, steps int) error
}

// NewTracker creates a tracker writing reports to outputPath (empty disables the CSV).
func NewTracker(scorer Scorer, outputPath string) *Tracker {
	return &Tracker{
		scorer:     scorer,
		outputPath: outputPath,
		best:       math.Inf(-1),
		bestEpoch:  -1,
		bestSteps:  -1,
	}
}

// Step evaluates at the given checkpoint and reports whether the score improved.
func (t *Tracker) Step(ctx context.Context, embedder Embedder, epoch, steps int) (float64, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	score, err := t.scorer.Evaluate(ctx, embedder, RunInfo{Epoch: epoch, Steps: steps, OutputPath: t.outputPath})
	if err != nil {
		return 0, false, err
	}

	if t.Callback != nil {
		t.Callback(score, epoch, steps)
	}

	if t.seen && score <= t.best {
		return score, false, nil
	}

	t.seen = true
	t.best = score
	t.bestEpoch = epoch
	t.bestSteps = steps

	if t.OnImprove != nil {
		if err := t.OnImprove(ctx, score, epoch, steps); err != nil {
			return score, true, err
		}
	}
	return score, true, nil
}

// Best returns the best score and where it was reached. ok is false before the first Step.
func (t *Tracker) Best() (score float64, epoch, steps int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best, t.bestEpoch, t.bestSteps, t.seen
}
