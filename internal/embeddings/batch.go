package embeddings

import (
	"context"
	"fmt"

	"github.com/lox/bill-relevance-ranker/internal/progress"
)

// DefaultBatchSize is the number of texts sent per provider call
const DefaultBatchSize = 32

// EmbedBatched embeds texts in batches of batchSize, one blocking provider call per
// batch, and checks that every batch comes back with one vector per input.
// The returned slice is aligned with texts.
func EmbedBatched(
	ctx context.Context,
	provider EmbeddingProvider,
	texts []string,
	batchSize int,
	tracker progress.Progress,
) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if tracker == nil {
		tracker = progress.NewNoopProgress()
	}
	model := provider.GetEmbeddingModelName()
	vectors := make([][]float32, 0, len(texts))
	dims := -1

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		out, err := provider.GenerateEmbeddings(ctx, batch)
		if err != nil {
			return nil, &ProviderError{Model: model, Offset: start, Expected: len(batch), Err: err}
		}
		if len(out) != len(batch) {
			return nil, &ProviderError{Model: model, Offset: start, Expected: len(batch), Got: len(out)}
		}
		for i, v := range out {
			if dims == -1 {
				dims = len(v)
			}
			if len(v) == 0 || len(v) != dims {
				return nil, &ProviderError{
					Model:    model,
					Offset:   start + i,
					Expected: len(batch),
					Got:      len(out),
					Err:      fmt.Errorf("vector has %d dimensions, expected %d", len(v), dims),
				}
			}
		}
		vectors = append(vectors, out...)

		if err := tracker.Add(len(batch)); err != nil {
			return nil, fmt.Errorf("error updating progress: %w", err)
		}
	}
	return vectors, nil
}
