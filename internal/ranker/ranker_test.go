package ranker

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/lox/bill-relevance-ranker/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider embeds known texts to fixed vectors and everything else to a
// vector orthogonal to the query axis
type fakeProvider struct {
	vectors  map[string][]float32
	embedded []string
	fail     bool
}

func (p *fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	p.embedded = append(p.embedded, text)
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (p *fakeProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *fakeProvider) GetEmbeddingModelName() string { return "fake" }

// withSimilarity returns a unit vector whose cosine with (1, 0) is s
func withSimilarity(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

const query = "inteligência artificial"

func newProvider() *fakeProvider {
	return &fakeProvider{vectors: map[string][]float32{
		"inteligencia artificial": {1, 0},
		"receitas culinarias":     withSimilarity(0.10),
		"sistemas autonomos":      withSimilarity(0.30),
		"redes neurais":           withSimilarity(0.50),
		"robotica":                withSimilarity(0.80),
	}}
}

func newVocabulary() *vocab.Vocabulary {
	return &vocab.Vocabulary{
		Terms:   []string{"CULINARIA", "INTELIGENCIA ARTIFICIAL"},
		Vectors: [][]float32{{0, 1}, {1, 0}},
	}
}

func newRanker(t *testing.T, provider embeddings.EmbeddingProvider, store cache.Store) *Ranker {
	t.Helper()
	r, err := New(context.Background(), provider, cache.NewEmbeddingCache(store), newVocabulary(), log.New(io.Discard))
	require.NoError(t, err)
	return r
}

func TestRankUnrelatedBillExcluded(t *testing.T) {
	r := newRanker(t, newProvider(), cache.NewMemoryStore())
	bills := []types.Bill{{ID: "1", Summary: "Receitas culinárias", Keywords: "Culinária"}}

	results, err := r.Rank(context.Background(), bills, DefaultConfig(query))
	require.NoError(t, err)

	assert.Empty(t, results.Results)
	assert.Equal(t, 1, results.Scored)
	assert.Equal(t, 0, results.Passed)
	assert.Equal(t, []string{"INTELIGENCIA ARTIFICIAL"}, results.TargetTags)
}

func TestRankBoostOutranksSemantic(t *testing.T) {
	r := newRanker(t, newProvider(), cache.NewMemoryStore())
	bills := []types.Bill{
		{ID: "semantic", Summary: "Redes neurais"},
		{ID: "boosted", Summary: "Sistemas autônomos", Indexing: "Tecnologia, Inteligência Artificial"},
	}

	cfg := DefaultConfig(query)
	results, err := r.Rank(context.Background(), bills, cfg)
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, "boosted", results.Results[0].ID)
	assert.InDelta(t, 0.65, results.Results[0].Scores.Fused, 1e-6)
	assert.Equal(t, 1.0, results.Results[0].Scores.Boost)

	cfg.Threshold = 0
	results, err = r.Rank(context.Background(), bills, cfg)
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, "boosted", results.Results[0].ID)
	assert.Equal(t, "semantic", results.Results[1].ID)
	assert.InDelta(t, 0.25, results.Results[1].Scores.Fused, 1e-6)
}

func TestRankTopKOrders(t *testing.T) {
	bills := []types.Bill{
		{ID: "a", Summary: "Redes neurais"},
		{ID: "b", Summary: "Sistemas autônomos", Keywords: "Inteligência artificial"},
		{ID: "c", Summary: "Robótica"},
		{ID: "d", Summary: "Receitas culinárias"},
	}

	tests := []struct {
		name  string
		order Order
		topK  int
		want  []string
	}{
		{"fused unbounded", OrderFused, 0, []string{"b", "c", "a", "d"}},
		{"fused top two", OrderFused, 2, []string{"b", "c"}},
		{"semantic top two", OrderSemantic, 2, []string{"c", "a"}},
		{"top-k larger than corpus", OrderFused, 10, []string{"b", "c", "a", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRanker(t, newProvider(), cache.NewMemoryStore())
			cfg := DefaultConfig(query)
			cfg.Threshold = 0
			cfg.TopK = tt.topK
			cfg.Order = tt.order

			results, err := r.Rank(context.Background(), bills, cfg)
			require.NoError(t, err)

			var ids []string
			for i, rb := range results.Results {
				ids = append(ids, rb.ID)
				assert.GreaterOrEqual(t, rb.Scores.Fused, cfg.Threshold)
				if i > 0 && tt.order == OrderFused {
					assert.GreaterOrEqual(t, results.Results[i-1].Scores.Fused, rb.Scores.Fused)
				}
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRankTiesKeepCorpusOrder(t *testing.T) {
	r := newRanker(t, newProvider(), cache.NewMemoryStore())
	bills := []types.Bill{
		{ID: "first", Summary: "Robótica"},
		{ID: "second", Summary: "Robótica"},
		{ID: "third", Summary: "Robótica"},
	}
	cfg := DefaultConfig(query)
	cfg.Threshold = 0.3
	cfg.Concurrency = 3

	results, err := r.Rank(context.Background(), bills, cfg)
	require.NoError(t, err)
	require.Len(t, results.Results, 3)
	assert.Equal(t, "first", results.Results[0].ID)
	assert.Equal(t, "second", results.Results[1].ID)
	assert.Equal(t, "third", results.Results[2].ID)
}

func TestRankMissingIdentifier(t *testing.T) {
	r := newRanker(t, newProvider(), cache.NewMemoryStore())
	bills := []types.Bill{{ID: "1", Summary: "Robótica"}, {ID: " ", Summary: "Redes neurais"}}

	_, err := r.Rank(context.Background(), bills, DefaultConfig(query))
	var missing *types.MissingIdentifierError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, missing.Index)
}

func TestRankEmptyCorpus(t *testing.T) {
	provider := newProvider()
	r := newRanker(t, provider, cache.NewMemoryStore())

	results, err := r.Rank(context.Background(), nil, DefaultConfig(query))
	require.NoError(t, err)
	assert.NotNil(t, results.Results)
	assert.Empty(t, results.Results)
	assert.Empty(t, provider.embedded)
}

func TestRankProviderFailure(t *testing.T) {
	provider := newProvider()
	provider.fail = true
	r := newRanker(t, provider, cache.NewMemoryStore())

	_, err := r.Rank(context.Background(), []types.Bill{{ID: "1", Summary: "Robótica"}}, DefaultConfig(query))
	var providerErr *embeddings.ProviderError
	assert.ErrorAs(t, err, &providerErr)
}

func TestRankInvalidConfig(t *testing.T) {
	r := newRanker(t, newProvider(), cache.NewMemoryStore())
	bills := []types.Bill{{ID: "1", Summary: "Robótica"}}

	_, err := r.Rank(context.Background(), bills, DefaultConfig(""))
	assert.ErrorIs(t, err, ErrEmptyQuery)

	cfg := DefaultConfig(query)
	cfg.Threshold = 1.5
	_, err = r.Rank(context.Background(), bills, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig(query)
	cfg.Order = "random"
	_, err = r.Rank(context.Background(), bills, cfg)
	assert.Error(t, err)
}

func TestSemanticCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	provider := newProvider()
	r := newRanker(t, provider, store)
	cfg := DefaultConfig(query)
	require.NoError(t, cfg.Validate())

	// a stale matrix describing a single-bill corpus
	key := r.semantic.cacheKey(cfg.Normalizer)
	require.NoError(t, cache.NewEmbeddingCache(store).Save(ctx, key, [][]float32{{1, 0}}))

	bills := []types.Bill{
		{ID: "1", Summary: "Robótica"},
		{ID: "2", Summary: "Redes neurais"},
	}
	matrix, err := r.semantic.CorpusMatrix(ctx, bills, cfg.Normalizer, 0, nil)
	require.NoError(t, err)
	require.Len(t, matrix, 2)
	assert.Equal(t, []string{"robotica", "redes neurais"}, provider.embedded)

	// the recomputed matrix replaced the stale one and is reused
	provider.embedded = nil
	_, err = r.semantic.CorpusMatrix(ctx, bills, cfg.Normalizer, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, provider.embedded)
}

func TestEmbedQueryFallsBackToRawQuery(t *testing.T) {
	provider := newProvider()
	r := newRanker(t, provider, cache.NewMemoryStore())
	cfg := DefaultConfig("Dispõe sobre")
	require.NoError(t, cfg.Validate())

	_, err := r.semantic.EmbedQuery(context.Background(), cfg.Query, cfg.Normalizer)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dispõe sobre"}, provider.embedded)
}

func TestBoostScorer(t *testing.T) {
	s := NewBoostScorer([]string{"INTELIGENCIA ARTIFICIAL"})

	assert.Equal(t, 1.0, s.Score(types.Bill{Keywords: "Uso de Inteligência Artificial"}))
	assert.Equal(t, 1.0, s.Score(types.Bill{Keywords: "Saúde", Indexing: "inteligencia artificial"}))
	assert.Equal(t, 0.0, s.Score(types.Bill{Keywords: "Inteligência"}))
	assert.Equal(t, 0.0, s.Score(types.Bill{}))
	assert.Equal(t, 0.0, NewBoostScorer(nil).Score(types.Bill{Keywords: "qualquer"}))

	// a bill always matches the vocabulary terms built from its own tags
	bill := types.Bill{ID: "1", Keywords: "Inteligência  Artificial;\tTecnologia"}
	terms := vocab.BuildTerms([]types.Bill{bill}, nil, vocab.DefaultMinLength)
	require.Equal(t, []string{"INTELIGENCIA ARTIFICIAL", "TECNOLOGIA"}, terms)
	for _, term := range terms {
		assert.Equal(t, 1.0, NewBoostScorer([]string{term}).Score(bill), "term %q", term)
	}
}

func TestFuseAndSelect(t *testing.T) {
	w := Weights{Semantic: 0.5, Keyword: 0.5}
	assert.InDelta(t, 0.05, Fuse(0.10, 0, w), 1e-9)
	assert.InDelta(t, 0.65, Fuse(0.30, 1, w), 1e-9)
	assert.InDelta(t, 1.3, Fuse(0.30, 1, Weights{Semantic: 1, Keyword: 1}), 1e-9)

	records := []types.ScoreRecord{
		{BillID: "a", Semantic: 0.9, Fused: 0.45, Passed: true},
		{BillID: "b", Semantic: 0.1, Fused: 0.55, Passed: true},
		{BillID: "c", Semantic: 0.8, Fused: 0.40, Passed: false},
		{BillID: "d", Semantic: 0.2, Fused: 0.55, Passed: true},
	}
	assert.Equal(t, []int{1, 3, 0}, Select(records, 0, OrderFused))
	assert.Equal(t, []int{1}, Select(records, 1, OrderFused))
	assert.Equal(t, []int{0, 3}, Select(records, 2, OrderSemantic))
	assert.Empty(t, Select(nil, 5, OrderFused))
}
