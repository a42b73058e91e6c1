package vocab

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/exp/slices"
)

// Match is a vocabulary term and its similarity to a query
type Match struct {
	Term       string
	Similarity float32
}

// Index answers nearest-term queries over a vocabulary
type Index struct {
	collection *chromem.Collection
	terms      []string
}

// NewIndex loads the vocabulary into an in-memory chromem collection
func NewIndex(ctx context.Context, v *Vocabulary) (*Index, error) {
	db := chromem.NewDB()
	// vectors are always supplied, the embedding func is never called
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("vocabulary index does not embed text")
	}
	collection, err := db.CreateCollection("vocabulary", nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, v.Len())
	for i, term := range v.Terms {
		docs = append(docs, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   term,
			Embedding: v.Vectors[i],
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to index vocabulary: %w", err)
		}
	}
	return &Index{collection: collection, terms: v.Terms}, nil
}

// TargetTags returns up to topN terms most similar to query whose similarity is
// strictly greater than cutoff, most similar first
func (idx *Index) TargetTags(ctx context.Context, query []float32, topN int, cutoff float32) ([]Match, error) {
	count := idx.collection.Count()
	if count == 0 || topN <= 0 {
		return nil, nil
	}
	results, err := idx.collection.QueryEmbedding(ctx, query, min(topN, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query vocabulary: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Similarity > cutoff {
			matches = append(matches, Match{Term: r.Content, Similarity: r.Similarity})
		}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})
	return matches, nil
}
