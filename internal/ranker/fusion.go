package ranker

import (
	"github.com/lox/bill-relevance-ranker/internal/types"
	"golang.org/x/exp/slices"
)

// Fuse linearly combines a semantic and a boost score
func Fuse(semantic, boost float64, w Weights) float64 {
	return semantic*w.Semantic + boost*w.Keyword
}

// Select returns the indices of records that passed the threshold, ordered by
// descending score with ties kept in corpus order, truncated to topK when
// topK is positive
func Select(records []types.ScoreRecord, topK int, order Order) []int {
	selected := make([]int, 0, len(records))
	for i, r := range records {
		if r.Passed {
			selected = append(selected, i)
		}
	}

	key := func(r types.ScoreRecord) float64 { return r.Fused }
	if order == OrderSemantic {
		key = func(r types.ScoreRecord) float64 { return r.Semantic }
	}
	slices.SortStableFunc(selected, func(a, b int) int {
		ka, kb := key(records[a]), key(records[b])
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		}
		return 0
	})

	if topK > 0 && len(selected) > topK {
		selected = selected[:topK]
	}
	return selected
}
