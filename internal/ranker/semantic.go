package ranker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/textnorm"
	"github.com/lox/bill-relevance-ranker/internal/types"
)

// SemanticScorer embeds normalized bill summaries and scores them against a query
type SemanticScorer struct {
	provider embeddings.EmbeddingProvider
	cache    *cache.EmbeddingCache
	logger   *log.Logger
}

func NewSemanticScorer(provider embeddings.EmbeddingProvider, embeddingCache *cache.EmbeddingCache, logger *log.Logger) *SemanticScorer {
	return &SemanticScorer{provider: provider, cache: embeddingCache, logger: logger}
}

func (s *SemanticScorer) cacheKey(normalizer *textnorm.Normalizer) string {
	return cache.SummaryKey(s.provider.GetEmbeddingModelName()) + ":" + normalizer.Fingerprint()
}

// CorpusMatrix returns one summary embedding per bill, aligned with bills. A
// cached matrix is reused only when its row count equals the corpus size;
// otherwise the matrix is recomputed and replaces the cached one.
func (s *SemanticScorer) CorpusMatrix(
	ctx context.Context,
	bills []types.Bill,
	normalizer *textnorm.Normalizer,
	batchSize int,
	tracker progress.Progress,
) ([][]float32, error) {
	key := s.cacheKey(normalizer)
	vectors, err := s.cache.Load(ctx, key, len(bills))
	switch {
	case err == nil:
		s.logger.Debug("Using cached summary embeddings", "key", key, "rows", len(vectors))
		return vectors, nil
	case errors.Is(err, cache.ErrMiss):
		s.logger.Debug("No cached summary embeddings", "key", key)
	case errors.Is(err, cache.ErrMismatch):
		s.logger.Debug("Discarding stale summary embeddings", "key", key, "reason", err)
	default:
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	texts := make([]string, len(bills))
	for i, b := range bills {
		texts[i] = normalizer.Normalize(b.Summary)
	}

	s.logger.Info("Embedding bill summaries", "bills", len(bills), "model", s.provider.GetEmbeddingModelName())
	vectors, err = embeddings.EmbedBatched(ctx, s.provider, texts, batchSize, tracker)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Save(ctx, key, vectors); err != nil {
		return nil, fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return vectors, nil
}

// EmbedQuery embeds the normalized query, falling back to the trimmed raw query
// when normalization leaves nothing
func (s *SemanticScorer) EmbedQuery(ctx context.Context, query string, normalizer *textnorm.Normalizer) ([]float32, error) {
	text := normalizer.Normalize(query)
	if text == "" {
		text = strings.TrimSpace(query)
	}
	if text == "" {
		return nil, ErrEmptyQuery
	}
	vector, err := s.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, &embeddings.ProviderError{
			Model:    s.provider.GetEmbeddingModelName(),
			Expected: 1,
			Err:      err,
		}
	}
	if len(vector) == 0 {
		return nil, &embeddings.ProviderError{Model: s.provider.GetEmbeddingModelName(), Expected: 1}
	}
	return vector, nil
}
