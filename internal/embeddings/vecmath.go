package embeddings

import (
	"cmp"
	"math"

	"golang.org/x/exp/slices"
)

// CosineSimilarity computes dot(a,b)/(|a|·|b|) in float64 from float32 inputs.
// Mismatched lengths, empty vectors and zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

// TopK returns the indices of the k highest scores, best first. Equal scores
// keep their input order.
func TopK(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	if k >= 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
