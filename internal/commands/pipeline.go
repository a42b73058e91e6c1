package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/db"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/ranker"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/lox/bill-relevance-ranker/internal/vocab"
)

// Pipeline wires the corpus database, the embedding provider and the cache
// into ranking runs
type Pipeline struct {
	DB        *db.DB
	Provider  embeddings.EmbeddingProvider
	Store     cache.Store
	BatchSize int
	Logger    *log.Logger
}

// SetupPipeline opens every component of a ranking run
func SetupPipeline(ctx context.Context, common CommonConfig, emb EmbeddingConfig, logger *log.Logger) (*Pipeline, error) {
	database, err := db.New(ctx, common.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	provider, err := SetupEmbeddingProvider(ctx, emb, logger)
	if err != nil {
		database.Close()
		return nil, err
	}

	store, err := SetupCacheStore(ctx, common.CacheBackend, common.DataDir, database, logger)
	if err != nil {
		CloseEmbeddingProvider(provider, logger)
		database.Close()
		return nil, err
	}

	return &Pipeline{
		DB:        database,
		Provider:  provider,
		Store:     store,
		BatchSize: emb.EmbeddingBatchSize,
		Logger:    logger,
	}, nil
}

// Close releases every component
func (p *Pipeline) Close() {
	if err := p.Store.Close(); err != nil {
		p.Logger.Warn("Failed to close cache", "error", err)
	}
	CloseEmbeddingProvider(p.Provider, p.Logger)
	if err := p.DB.Close(); err != nil {
		p.Logger.Warn("Failed to close database", "error", err)
	}
}

// Vocabulary loads or rebuilds the tag vocabulary of bills
func (p *Pipeline) Vocabulary(ctx context.Context, bills []types.Bill, rc RankingConfig, showProgress bool) (*vocab.Vocabulary, error) {
	tracker := progress.New(showProgress, -1, "Embedding vocabulary")
	defer tracker.Close()
	cfg, err := rc.ToVocabConfig(p.BatchSize, tracker)
	if err != nil {
		return nil, err
	}
	return vocab.NewBuilder(p.Provider, p.Store, p.Logger).Load(ctx, bills, cfg)
}

// Rank ranks the stored corpus against rc.Query
func (p *Pipeline) Rank(ctx context.Context, rc RankingConfig, showProgress bool) (types.RankResults, error) {
	bills, err := p.DB.ListBills(ctx)
	if err != nil {
		return types.RankResults{}, err
	}
	if len(bills) == 0 {
		p.Logger.Warn("Corpus is empty, run collect first")
		return types.RankResults{Results: []types.RankedBill{}}, nil
	}

	v, err := p.Vocabulary(ctx, bills, rc, showProgress)
	if err != nil {
		return types.RankResults{}, err
	}

	r, err := ranker.New(ctx, p.Provider, cache.NewEmbeddingCache(p.Store), v, p.Logger)
	if err != nil {
		return types.RankResults{}, err
	}

	tracker := progress.New(showProgress, len(bills), "Embedding summaries")
	defer tracker.Close()

	cfg, err := rc.ToRankerConfig(p.BatchSize, tracker)
	if err != nil {
		return types.RankResults{}, err
	}
	return r.Rank(ctx, bills, cfg)
}
