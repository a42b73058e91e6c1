package ranker

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/lox/bill-relevance-ranker/internal/vocab"
	"golang.org/x/sync/errgroup"
)

// Ranker scores a corpus against queries using the hybrid semantic and keyword score
type Ranker struct {
	semantic   *SemanticScorer
	vocabulary *vocab.Vocabulary
	index      *vocab.Index
	logger     *log.Logger
}

// New creates a Ranker. A nil vocabulary disables the keyword boost.
func New(
	ctx context.Context,
	provider embeddings.EmbeddingProvider,
	embeddingCache *cache.EmbeddingCache,
	vocabulary *vocab.Vocabulary,
	logger *log.Logger,
) (*Ranker, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if embeddingCache == nil {
		return nil, ErrCacheRequired
	}
	if vocabulary == nil {
		vocabulary = &vocab.Vocabulary{}
	}
	index, err := vocab.NewIndex(ctx, vocabulary)
	if err != nil {
		return nil, fmt.Errorf("failed to index vocabulary: %w", err)
	}
	return &Ranker{
		semantic:   NewSemanticScorer(provider, embeddingCache, logger),
		vocabulary: vocabulary,
		index:      index,
		logger:     logger,
	}, nil
}

// Rank scores every bill against cfg.Query and returns the selected bills best
// first. An empty corpus yields empty results, not an error.
func (r *Ranker) Rank(ctx context.Context, bills []types.Bill, cfg Config) (types.RankResults, error) {
	if err := cfg.Validate(); err != nil {
		return types.RankResults{}, fmt.Errorf("invalid ranking config: %w", err)
	}
	if err := types.ValidateCorpus(bills); err != nil {
		return types.RankResults{}, err
	}
	if len(bills) == 0 {
		r.logger.Debug("Empty corpus, nothing to rank")
		return types.RankResults{Results: []types.RankedBill{}}, nil
	}

	startTime := time.Now()
	r.logger.Info("Ranking bills",
		"query", cfg.Query,
		"bills", len(bills),
		"threshold", cfg.Threshold,
		"top_k", cfg.TopK,
		"order", cfg.Order)

	matrix, err := r.semantic.CorpusMatrix(ctx, bills, cfg.Normalizer, cfg.BatchSize, cfg.Progress)
	if err != nil {
		return types.RankResults{}, err
	}
	queryVector, err := r.semantic.EmbedQuery(ctx, cfg.Query, cfg.Normalizer)
	if err != nil {
		return types.RankResults{}, err
	}

	targets, err := r.TargetTags(ctx, queryVector, cfg)
	if err != nil {
		return types.RankResults{}, err
	}
	r.logger.Debug("Selected target tags", "tags", targets)

	records, err := r.score(ctx, bills, matrix, queryVector, NewBoostScorer(targets), cfg)
	if err != nil {
		return types.RankResults{}, err
	}

	passed := 0
	for _, rec := range records {
		if rec.Passed {
			passed++
		}
	}

	selected := Select(records, cfg.TopK, cfg.Order)
	results := make([]types.RankedBill, 0, len(selected))
	for _, i := range selected {
		results = append(results, types.RankedBill{Bill: bills[i], Scores: records[i]})
	}

	r.logger.Info("Ranking completed",
		"scored", len(records),
		"passed", passed,
		"selected", len(results),
		"duration", time.Since(startTime))

	return types.RankResults{
		Results:    results,
		Scored:     len(records),
		Passed:     passed,
		TargetTags: targets,
	}, nil
}

// TargetTags returns the vocabulary terms close enough to the query vector to
// boost bills tagged with them
func (r *Ranker) TargetTags(ctx context.Context, queryVector []float32, cfg Config) ([]string, error) {
	if r.vocabulary.Len() == 0 {
		return nil, nil
	}
	matches, err := r.index.TargetTags(ctx, queryVector, cfg.TargetTopN, float32(cfg.TargetCutoff))
	if err != nil {
		return nil, err
	}
	tags := make([]string, len(matches))
	for i, m := range matches {
		tags[i] = m.Term
	}
	return tags, nil
}

// score computes the score record of every bill. Bills are split into
// contiguous chunks scored in parallel; each worker writes only its own slots.
func (r *Ranker) score(
	ctx context.Context,
	bills []types.Bill,
	matrix [][]float32,
	queryVector []float32,
	boost *BoostScorer,
	cfg Config,
) ([]types.ScoreRecord, error) {
	records := make([]types.ScoreRecord, len(bills))
	chunk := (len(bills) + cfg.Concurrency - 1) / cfg.Concurrency

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for start := 0; start < len(bills); start += chunk {
		end := min(start+chunk, len(bills))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				semantic := embeddings.CosineSimilarity(queryVector, matrix[i])
				b := boost.Score(bills[i])
				fused := Fuse(semantic, b, cfg.Weights)
				records[i] = types.ScoreRecord{
					BillID:   bills[i].ID,
					Semantic: semantic,
					Boost:    b,
					Fused:    fused,
					Passed:   fused >= cfg.Threshold,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring interrupted: %w", err)
	}
	return records, nil
}
