package memory

import (
	"math"
	"sort"
)

type scoredPassage struct {
	text  string
	score float64
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// is empty, zero-length, or the dimensions do not match (e.g. after an
// embedding model change).
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK returns the texts of the k highest-scoring passages, best first.
// The sort is stable so equal scores keep insertion order.
func topK(passages []scoredPassage, k int) []string {
	if k <= 0 {
		return nil
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].score > passages[j].score
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		out = append(out, p.text)
	}
	return out
}
