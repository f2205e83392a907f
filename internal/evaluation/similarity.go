package evaluation

import "math"

// norms returns the L2 norm of every embedding.
func norms(embeddings []Embedding) []float64 {
	out := make([]float64, len(embeddings))
	for i, e := range embeddings {
		var sum float64
		for _, x := range e {
			sum += float64(x) * float64(x)
		}
		out[i] = math.Sqrt(sum)
	}
	return out
}

// cosineMatrix fills dst (row-major, len(queries) x len(docs)) with pairwise cosine
// similarities. Non-finite scores, such as those produced by zero vectors, become 0.
func cosineMatrix(dst []float64, queries []Embedding, queryNorms []float64, docs []Embedding, docNorms []float64) []float64 {
	cols := len(docs)
	dst = dst[:len(queries)*cols]
	for i, q := range queries {
		row := dst[i*cols : (i+1)*cols]
		for j, d := range docs {
			row[j] = finite(dot(q, d) / (queryNorms[i] * docNorms[j]))
		}
	}
	return dst
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when it is undefined.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) {
		return 0
	}
	n := norms([]Embedding{a, b})
	return finite(dot(a, b) / (n[0] * n[1]))
}

func dot(a, b Embedding) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
