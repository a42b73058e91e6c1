package vocab

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/textnorm"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider returns deterministic vectors and records how many texts it embedded
type countingProvider struct {
	model    string
	embedded int
	vectors  map[string][]float32
}

func (p *countingProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	p.embedded++
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (p *countingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = p.GenerateEmbedding(ctx, t)
	}
	return out, nil
}

func (p *countingProvider) GetEmbeddingModelName() string { return p.model }

func TestBuildTerms(t *testing.T) {
	bills := []types.Bill{
		{ID: "1", Keywords: "Inteligência Artificial; inteligencia  artificial , ALGORITMO"},
		{ID: "2", Indexing: " INTELIGÊNCIA ARTIFICIAL;Lei;Projeto;TI;Saúde"},
		// keywords win over indexing
		{ID: "3", Keywords: "Educação", Indexing: "Ignorado"},
		{ID: "4"},
	}

	terms := BuildTerms(bills, textnorm.DefaultTagBlacklist, DefaultMinLength)
	assert.Equal(t, []string{"ALGORITMO", "EDUCACAO", "INTELIGENCIA ARTIFICIAL", "SAUDE"}, terms)
}

func TestBuildTermsBlacklist(t *testing.T) {
	bills := []types.Bill{{ID: "1", Keywords: "Federal; Nacional; Alteração; Transporte"}}

	assert.Equal(t, []string{"TRANSPORTE"}, BuildTerms(bills, textnorm.DefaultTagBlacklist, 3))
	assert.Equal(t, []string{"ALTERACAO", "FEDERAL", "NACIONAL", "TRANSPORTE"}, BuildTerms(bills, nil, 3))
}

func TestBuilderCaching(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{model: "m1"}
	store := cache.NewMemoryStore()
	builder := NewBuilder(provider, store, log.New(io.Discard))

	bills := []types.Bill{
		{ID: "1", Keywords: "Saúde; Educação"},
		{ID: "2", Keywords: "Transporte"},
	}

	v, err := builder.Load(ctx, bills, Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"EDUCACAO", "SAUDE", "TRANSPORTE"}, v.Terms)
	assert.Len(t, v.Vectors, 3)
	assert.Equal(t, 3, provider.embedded)

	t.Run("reuses cache for same corpus", func(t *testing.T) {
		v, err := builder.Load(ctx, bills, Config{})
		require.NoError(t, err)
		assert.Equal(t, 3, v.Len())
		assert.Equal(t, 3, provider.embedded)
	})

	t.Run("rebuilds when corpus size changes", func(t *testing.T) {
		grown := append(bills, types.Bill{ID: "3", Keywords: "Segurança"})
		v, err := builder.Load(ctx, grown, Config{})
		require.NoError(t, err)
		assert.Contains(t, v.Terms, "SEGURANCA")
		assert.Equal(t, 3+4, provider.embedded)
	})

	t.Run("rebuilds when forced", func(t *testing.T) {
		before := provider.embedded
		_, err := builder.Load(ctx, bills, Config{Rebuild: true})
		require.NoError(t, err)
		assert.Equal(t, before+3, provider.embedded)
	})

	t.Run("rebuilds when model changes", func(t *testing.T) {
		other := &countingProvider{model: "m2"}
		v, err := NewBuilder(other, store, log.New(io.Discard)).Load(ctx, bills, Config{})
		require.NoError(t, err)
		assert.Equal(t, "m2", v.Model)
		assert.Equal(t, 3, other.embedded)
	})
}

func TestBuilderRebuildsOnFilterChange(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{model: "m1"}
	builder := NewBuilder(provider, cache.NewMemoryStore(), log.New(io.Discard))

	bills := []types.Bill{
		{ID: "1", Keywords: "Federal; Transporte"},
		{ID: "2", Keywords: "Rio"},
	}

	v, err := builder.Load(ctx, bills, Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FEDERAL", "TRANSPORTE"}, v.Terms)

	v, err = builder.Load(ctx, bills, Config{Blacklist: []string{"federal"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"TRANSPORTE"}, v.Terms)

	// same blacklist spelled differently is the same filter
	embedded := provider.embedded
	_, err = builder.Load(ctx, bills, Config{Blacklist: []string{" Federal ", "federal"}})
	require.NoError(t, err)
	assert.Equal(t, embedded, provider.embedded)

	v, err = builder.Load(ctx, bills, Config{Blacklist: []string{"federal"}, MinLength: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"RIO", "TRANSPORTE"}, v.Terms)

	// zero means the default minimum length
	_, err = builder.Load(ctx, bills, Config{MinLength: DefaultMinLength})
	require.NoError(t, err)
	embedded = provider.embedded
	_, err = builder.Load(ctx, bills, Config{})
	require.NoError(t, err)
	assert.Equal(t, embedded, provider.embedded)
}

func TestTargetTags(t *testing.T) {
	ctx := context.Background()
	v := &Vocabulary{
		Terms: []string{"ALGORITMO", "INTELIGENCIA ARTIFICIAL", "SAUDE", "TRANSPORTE"},
		Vectors: [][]float32{
			{0.8, 0.6, 0},
			{1, 0, 0},
			{0, 1, 0},
			{0.6, 0.8, 0},
		},
	}
	idx, err := NewIndex(ctx, v)
	require.NoError(t, err)

	matches, err := idx.TargetTags(ctx, []float32{1, 0, 0}, 30, 0.65)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "INTELIGENCIA ARTIFICIAL", matches[0].Term)
	assert.Equal(t, "ALGORITMO", matches[1].Term)
	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-5)

	matches, err = idx.TargetTags(ctx, []float32{1, 0, 0}, 1, 0.65)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "INTELIGENCIA ARTIFICIAL", matches[0].Term)
}

func TestTargetTagsEmptyVocabulary(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(ctx, &Vocabulary{})
	require.NoError(t, err)

	matches, err := idx.TargetTags(ctx, []float32{1, 0}, 30, 0.65)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
