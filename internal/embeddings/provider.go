package embeddings

import (
	"context"
	"fmt"
)

// EmbeddingProvider is an interface for generating embeddings from text
type EmbeddingProvider interface {
	// GenerateEmbedding generates a vector embedding for a single text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// GenerateEmbeddings generates one embedding per input text, in input order
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	// GetEmbeddingModelName returns the model identifier, used to key caches
	GetEmbeddingModelName() string
}

// ProviderError is returned when a provider call fails or returns a result whose
// shape does not match the request. It is never retried by the ranking core.
type ProviderError struct {
	Model    string
	Offset   int
	Expected int
	Got      int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding provider %q failed for batch at offset %d: %v", e.Model, e.Offset, e.Err)
	}
	return fmt.Sprintf("embedding provider %q returned %d vectors for %d inputs at offset %d", e.Model, e.Got, e.Expected, e.Offset)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
