package evaluation

import (
	"math"
	"testing"
)

func TestDCG(t *testing.T) {
	tests := []struct {
		name       string
		relevances []int
		k          int
		want       float64
	}{
		{"empty", nil, 10, 0},
		{"first relevant", []int{1, 0, 0}, 3, 1},
		{"second relevant", []int{0, 1}, 2, 1 / math.Log2(3)},
		{"truncated", []int{0, 0, 1}, 2, 0},
		{"k beyond hits", []int{1, 1}, 10, 1 + 1/math.Log2(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DCG(tt.relevances, tt.k); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("DCG() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNDCG(t *testing.T) {
	tests := []struct {
		name          string
		relevances    []int
		k             int
		totalRelevant int
		want          float64
	}{
		{"perfect", []int{1, 1, 0}, 3, 2, 1},
		{"no relevant", []int{1}, 1, 0, 0},
		{"none retrieved", []int{0, 0}, 2, 3, 0},
		// More relevant documents than k: the ideal ranking is all ones truncated to k.
		{"relevant exceeds k", []int{1, 1}, 2, 5, 1},
		{"relevant below k", []int{0, 1, 0}, 3, 1, 1 / math.Log2(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NDCG(tt.relevances, tt.k, tt.totalRelevant); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("NDCG() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdealDCGMatchesDCG(t *testing.T) {
	for total := 0; total < 20; total++ {
		ones := make([]int, total)
		for i := range ones {
			ones[i] = 1
		}
		for k := 1; k < 25; k++ {
			if got, want := idealDCG(total, k), DCG(ones, k); got != want {
				t.Errorf("idealDCG(%d, %d) = %v, want %v", total, k, got, want)
			}
		}
	}
}

// referenceNDCG is the textbook binary NDCG@k: ideal DCG over min(|relevant|, k) ranks.
func referenceNDCG(hits []int, k, totalRelevant int) float64 {
	var dcg, ideal float64
	for i := 0; i < k && i < len(hits); i++ {
		dcg += float64(hits[i]) / math.Log2(float64(i)+2)
	}
	for i := 0; i < min(totalRelevant, k); i++ {
		ideal += 1 / math.Log2(float64(i)+2)
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

func TestNDCG_ReferenceValues(t *testing.T) {
	hitSets := [][]int{
		{1, 0, 1, 0, 0, 1},
		{0, 0, 0, 1},
		{1, 1, 1},
		{0, 1, 0, 1, 0, 1, 0, 1, 0, 1},
	}
	for _, hits := range hitSets {
		relevantInHits := 0
		for _, h := range hits {
			relevantInHits += h
		}
		for k := 1; k <= 12; k++ {
			for total := relevantInHits; total <= relevantInHits+8; total++ {
				got, want := NDCG(hits, k, total), referenceNDCG(hits, k, total)
				if math.Abs(got-want) > 1e-12 {
					t.Errorf("NDCG(%v, %d, %d) = %v, want %v", hits, k, total, got, want)
				}
			}
		}
	}
}

func TestPrecisionRecall(t *testing.T) {
	relevances := []int{1, 0, 1}

	if got := Precision(relevances, 3); math.Abs(got-2.0/3) > 1e-12 {
		t.Errorf("Precision@3 = %v, want 2/3", got)
	}
	// Fewer hits than k still divides by k.
	if got := Precision(relevances, 10); got != 0.2 {
		t.Errorf("Precision@10 = %v, want 0.2", got)
	}
	if got := Precision(relevances, 0); got != 0 {
		t.Errorf("Precision@0 = %v, want 0", got)
	}
	if got := Recall(relevances, 1, 4); got != 0.25 {
		t.Errorf("Recall@1 = %v, want 0.25", got)
	}
	if got := Recall(relevances, 3, 0); got != 0 {
		t.Errorf("Recall with no relevant = %v, want 0", got)
	}
}

func TestAccuracyAndReciprocalRank(t *testing.T) {
	relevances := []int{0, 0, 1, 1}

	if Accuracy(relevances, 2) != 0 {
		t.Error("Accuracy@2 should be 0")
	}
	if Accuracy(relevances, 3) != 1 {
		t.Error("Accuracy@3 should be 1")
	}
	if got := ReciprocalRank(relevances, 2); got != 0 {
		t.Errorf("RR@2 = %v, want 0", got)
	}
	if got := ReciprocalRank(relevances, 10); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("RR@10 = %v, want 1/3", got)
	}
}

func TestAccumulators(t *testing.T) {
	cfg := testConfig(1, 2)
	acc := newAccumulators(cfg)
	acc.add([]int{1, 0}, 1)
	acc.add([]int{0, 1}, 2)

	r := &Result{}
	acc.finish(r, 2)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"accuracy@1", r.Accuracy[1], 0.5},
		{"accuracy@2", r.Accuracy[2], 1},
		{"precision@1", r.Precision[1], 0.5},
		{"precision@2", r.Precision[2], 0.5},
		{"recall@2", r.Recall[2], 0.75},
		{"mrr@2", r.MRR[2], 0.75},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-12 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestAccumulators_Empty(t *testing.T) {
	acc := newAccumulators(testConfig(5))
	r := &Result{}
	acc.finish(r, 0)

	if r.Accuracy[5] != 0 || r.Precision[5] != 0 || r.Recall[5] != 0 || r.MRR[5] != 0 || r.NDCG[5] != 0 {
		t.Errorf("expected zeros, got %+v", r)
	}
}

func TestAveragePrecision(t *testing.T) {
	tests := []struct {
		name          string
		relevances    []int
		k             int
		totalRelevant int
		want          float64
	}{
		{"none retrieved", []int{0, 0, 0}, 3, 2, 0},
		{"perfect", []int{1, 1, 0}, 3, 2, 1},
		{"second and third", []int{0, 1, 1}, 3, 2, (1.0/2 + 2.0/3) / 2},
		{"truncated to k", []int{0, 1, 1}, 2, 2, 0.5 / 2},
		// The denominator uses k even when fewer hits were retrieved.
		{"k beyond hits", []int{1}, 5, 3, 1.0 / 3},
		{"more relevant than k", []int{1, 0}, 2, 10, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AveragePrecision(tt.relevances, tt.k, tt.totalRelevant); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("AveragePrecision() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccumulators_MAP(t *testing.T) {
	cfg := testConfig()
	cfg.MAPAtK = []int{2}
	acc := newAccumulators(cfg)
	acc.add([]int{1, 0}, 1)
	acc.add([]int{0, 1}, 1)

	r := &Result{}
	acc.finish(r, 2)

	if got := r.MAP[2]; math.Abs(got-0.75) > 1e-12 {
		t.Errorf("MAP@2 = %v, want 0.75", got)
	}
	if len(r.Accuracy) != 0 {
		t.Errorf("accuracy should be empty, got %v", r.Accuracy)
	}
}
