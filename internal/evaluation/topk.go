package evaluation

import (
	"container/heap"
	"slices"
)

// better orders hits by descending score, then by corpus position.
func better(a, b ScoredHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.index < b.index
}

func compareHits(a, b ScoredHit) int {
	switch {
	case better(a, b):
		return -1
	case better(b, a):
		return 1
	default:
		return 0
	}
}

// hitHeap is a min-heap on better: the root is the weakest kept hit.
type hitHeap []ScoredHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(ScoredHit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// selector extracts the k best columns of a score row. Its buffer is reused across rows.
type selector struct {
	k   int
	buf hitHeap
}

func newSelector(k int) *selector {
	return &selector{k: k, buf: make(hitHeap, 0, k)}
}

// appendTopK appends, in no particular order, the k best hits of row to dst.
// offset is the corpus position of row[0].
func (s *selector) appendTopK(dst []ScoredHit, row []float64, offset int, corpusIDs []string) []ScoredHit {
	s.buf = s.buf[:0]
	for j, score := range row {
		hit := ScoredHit{Score: score, index: offset + j}
		if len(s.buf) < s.k {
			heap.Push(&s.buf, hit)
			continue
		}
		if better(hit, s.buf[0]) {
			s.buf[0] = hit
			heap.Fix(&s.buf, 0)
		}
	}
	for _, hit := range s.buf {
		hit.CorpusID = corpusIDs[hit.index]
		dst = append(dst, hit)
	}
	return dst
}

// sortHits orders candidates best first and keeps at most k of them.
func sortHits(hits []ScoredHit, k int) []ScoredHit {
	slices.SortFunc(hits, compareHits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
