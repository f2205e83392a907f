package evaluation

import (
	"math"
)

// The functions below take a hit vector: relevances[i] is the gain of the hit at
// rank i (1 or 0 for binary judgments), best hit first.

// DCG calculates Discounted Cumulative Gain over the first k positions.
func DCG(relevances []int, k int) float64 {
	if k > len(relevances) {
		k = len(relevances)
	}

	dcg := 0.0
	for i := 0; i < k; i++ {
		dcg += float64(relevances[i]) / math.Log2(float64(i+2))
	}
	return dcg
}

// idealDCG is the DCG of totalRelevant ones truncated to k.
func idealDCG(totalRelevant, k int) float64 {
	if k > totalRelevant {
		k = totalRelevant
	}

	idcg := 0.0
	for i := 0; i < k; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}
	return idcg
}

// NDCG calculates binary Normalized Discounted Cumulative Gain at K.
// The ideal ranking places all totalRelevant documents first.
func NDCG(relevances []int, k, totalRelevant int) float64 {
	idcg := idealDCG(totalRelevant, k)
	if idcg == 0 {
		return 0
	}
	return DCG(relevances, k) / idcg
}

// Accuracy returns 1 if any of the first k hits is relevant.
func Accuracy(relevances []int, k int) float64 {
	if k > len(relevances) {
		k = len(relevances)
	}

	for i := 0; i < k; i++ {
		if relevances[i] > 0 {
			return 1
		}
	}
	return 0
}

// countRelevant counts relevant hits among the first k.
func countRelevant(relevances []int, k int) int {
	if k > len(relevances) {
		k = len(relevances)
	}

	n := 0
	for i := 0; i < k; i++ {
		if relevances[i] > 0 {
			n++
		}
	}
	return n
}

// Precision calculates Precision at K. The denominator is always k, even when
// fewer than k hits were retrieved.
func Precision(relevances []int, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(countRelevant(relevances, k)) / float64(k)
}

// Recall calculates Recall at K against the number of relevant documents.
func Recall(relevances []int, k, totalRelevant int) float64 {
	if totalRelevant == 0 {
		return 0
	}
	return float64(countRelevant(relevances, k)) / float64(totalRelevant)
}

// ReciprocalRank returns 1/rank of the first relevant hit within the first k, else 0.
func ReciprocalRank(relevances []int, k int) float64 {
	if k > len(relevances) {
		k = len(relevances)
	}

	for i := 0; i < k; i++ {
		if relevances[i] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// AveragePrecision calculates Average Precision at K: the precision at every relevant
// rank within the first k, divided by min(k, totalRelevant).
func AveragePrecision(relevances []int, k, totalRelevant int) float64 {
	n := min(k, len(relevances))

	relevant := 0
	sumPrecision := 0.0
	for i := 0; i < n; i++ {
		if relevances[i] > 0 {
			relevant++
			sumPrecision += float64(relevant) / float64(i+1)
		}
	}

	if relevant == 0 {
		return 0
	}
	return sumPrecision / float64(min(k, totalRelevant))
}

// accumulators collects per-query metric contributions for one evaluation call.
type accumulators struct {
	cfg     Config
	queries int

	hits      map[int]int
	precision map[int][]float64
	recall    map[int][]float64
	mrr       map[int]float64
	ndcg      map[int][]float64
	ap        map[int][]float64
}

func newAccumulators(cfg Config) *accumulators {
	a := &accumulators{
		cfg:       cfg,
		hits:      make(map[int]int, len(cfg.AccuracyAtK)),
		precision: make(map[int][]float64, len(cfg.PrecisionRecallAtK)),
		recall:    make(map[int][]float64, len(cfg.PrecisionRecallAtK)),
		mrr:       make(map[int]float64, len(cfg.MRRAtK)),
		ndcg:      make(map[int][]float64, len(cfg.NDCGAtK)),
		ap:        make(map[int][]float64, len(cfg.MAPAtK)),
	}
	for _, k := range cfg.AccuracyAtK {
		a.hits[k] = 0
	}
	for _, k := range cfg.PrecisionRecallAtK {
		a.precision[k] = nil
		a.recall[k] = nil
	}
	for _, k := range cfg.MRRAtK {
		a.mrr[k] = 0
	}
	for _, k := range cfg.NDCGAtK {
		a.ndcg[k] = nil
	}
	for _, k := range cfg.MAPAtK {
		a.ap[k] = nil
	}
	return a
}

// add records one query. relevances is its hit vector over the sorted top hits.
func (a *accumulators) add(relevances []int, totalRelevant int) {
	a.queries++

	for k := range a.hits {
		if Accuracy(relevances, k) > 0 {
			a.hits[k]++
		}
	}

	for k := range a.precision {
		a.precision[k] = append(a.precision[k], Precision(relevances, k))
		a.recall[k] = append(a.recall[k], Recall(relevances, k, totalRelevant))
	}

	for k := range a.mrr {
		a.mrr[k] += ReciprocalRank(relevances, k)
	}

	for k := range a.ndcg {
		a.ndcg[k] = append(a.ndcg[k], NDCG(relevances, k, totalRelevant))
	}

	for k := range a.ap {
		a.ap[k] = append(a.ap[k], AveragePrecision(relevances, k, totalRelevant))
	}
}

// finish averages the collected values into r.
func (a *accumulators) finish(r *Result, queries int) {
	n := float64(queries)

	r.Accuracy = make(map[int]float64, len(a.hits))
	for k, hits := range a.hits {
		r.Accuracy[k] = ratio(float64(hits), n)
	}

	r.Precision = make(map[int]float64, len(a.precision))
	r.Recall = make(map[int]float64, len(a.recall))
	for k := range a.precision {
		r.Precision[k] = mean(a.precision[k])
		r.Recall[k] = mean(a.recall[k])
	}

	r.MRR = make(map[int]float64, len(a.mrr))
	for k, sum := range a.mrr {
		r.MRR[k] = ratio(sum, n)
	}

	r.NDCG = make(map[int]float64, len(a.ndcg))
	for k := range a.ndcg {
		r.NDCG[k] = mean(a.ndcg[k])
	}

	r.MAP = make(map[int]float64, len(a.ap))
	for k := range a.ap {
		r.MAP[k] = mean(a.ap[k])
	}
}

func ratio(sum, n float64) float64 {
	if n == 0 {
		return 0
	}
	return sum / n
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
