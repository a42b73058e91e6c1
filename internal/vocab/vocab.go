package vocab

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/textnorm"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"golang.org/x/exp/slices"
)

// CacheKey is the single slot the vocabulary occupies in a cache.Store
const CacheKey = "vocabulary"

// DefaultMinLength drops terms of this many characters or fewer
const DefaultMinLength = 3

var termSeparator = regexp.MustCompile(`[;,]`)

// Vocabulary is the deduplicated set of normalized tags of a corpus, each with
// its embedding. Terms and Vectors are aligned by index.
type Vocabulary struct {
	Terms      []string
	Vectors    [][]float32
	CorpusSize int
	Model      string
	// Filter fingerprints the blacklist and minimum length the terms were built with
	Filter string
}

// Len returns the number of terms
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Terms)
}

// Config controls how terms are extracted and when a cached vocabulary is reused
type Config struct {
	Blacklist []string
	MinLength int
	BatchSize int
	// Rebuild ignores any cached vocabulary
	Rebuild  bool
	Progress progress.Progress
}

func (c Config) minLength() int {
	if c.MinLength <= 0 {
		return DefaultMinLength
	}
	return c.MinLength
}

// filter identifies the term filters, so a cached vocabulary built with other
// filters is rebuilt
func (c Config) filter() string {
	words := make([]string, 0, len(c.Blacklist))
	for _, w := range c.Blacklist {
		words = append(words, strings.ToLower(textnorm.NormalizeBasic(strings.TrimSpace(w))))
	}
	slices.Sort(words)
	words = slices.Compact(words)
	sum := sha256.Sum256([]byte(strconv.Itoa(c.minLength()) + "\n" + strings.Join(words, "\n")))
	return hex.EncodeToString(sum[:6])
}

// BuildTerms extracts the sorted set of normalized, upper-cased tags from the
// tag field of every bill. Terms with minLength or fewer characters, or whose
// lower-cased form is blacklisted, are dropped.
func BuildTerms(bills []types.Bill, blacklist []string, minLength int) []string {
	banned := make(map[string]struct{}, len(blacklist))
	for _, w := range blacklist {
		banned[strings.ToLower(textnorm.NormalizeBasic(strings.TrimSpace(w)))] = struct{}{}
	}

	set := make(map[string]struct{})
	for _, b := range bills {
		field := b.TagField()
		if field == "" {
			continue
		}
		for _, raw := range termSeparator.Split(field, -1) {
			term := strings.ToUpper(textnorm.NormalizeBasic(strings.TrimSpace(raw)))
			term = strings.Join(strings.Fields(term), " ")
			if utf8.RuneCountInString(term) <= minLength {
				continue
			}
			if _, ok := banned[strings.ToLower(term)]; ok {
				continue
			}
			set[term] = struct{}{}
		}
	}

	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms
}

// Builder produces vocabularies, reusing the cached one while it still describes
// the corpus
type Builder struct {
	provider embeddings.EmbeddingProvider
	store    cache.Store
	logger   *log.Logger
}

func NewBuilder(provider embeddings.EmbeddingProvider, store cache.Store, logger *log.Logger) *Builder {
	return &Builder{provider: provider, store: store, logger: logger}
}

type storedVocabulary struct {
	Model      string   `json:"model"`
	CorpusSize int      `json:"corpus_size"`
	Filter     string   `json:"filter"`
	Terms      []string `json:"terms"`
	Matrix     []byte   `json:"matrix"`
}

// Load returns the vocabulary for the corpus. The cached vocabulary is reused
// unless it was built for a different model, corpus size or term filters, or
// cfg.Rebuild is set.
func (b *Builder) Load(ctx context.Context, bills []types.Bill, cfg Config) (*Vocabulary, error) {
	model := b.provider.GetEmbeddingModelName()
	if !cfg.Rebuild {
		v, err := b.cached(ctx)
		switch {
		case err != nil:
			b.logger.Warn("Ignoring unreadable vocabulary cache", "error", err)
		case v == nil:
			b.logger.Debug("No cached vocabulary")
		case v.Model != model || v.CorpusSize != len(bills) || v.Filter != cfg.filter():
			b.logger.Info("Cached vocabulary is stale, rebuilding",
				"cached_model", v.Model, "model", model,
				"cached_corpus_size", v.CorpusSize, "corpus_size", len(bills),
				"filters_changed", v.Filter != cfg.filter())
		default:
			b.logger.Debug("Using cached vocabulary", "terms", v.Len())
			return v, nil
		}
	}
	return b.Build(ctx, bills, cfg)
}

// Build extracts and embeds the vocabulary of bills and overwrites the cache
func (b *Builder) Build(ctx context.Context, bills []types.Bill, cfg Config) (*Vocabulary, error) {
	terms := BuildTerms(bills, cfg.Blacklist, cfg.minLength())
	b.logger.Info("Building vocabulary", "terms", len(terms), "bills", len(bills))

	var vectors [][]float32
	if len(terms) > 0 {
		var err error
		vectors, err = embeddings.EmbedBatched(ctx, b.provider, terms, cfg.BatchSize, cfg.Progress)
		if err != nil {
			return nil, fmt.Errorf("failed to embed vocabulary: %w", err)
		}
	}

	v := &Vocabulary{
		Terms:      terms,
		Vectors:    vectors,
		CorpusSize: len(bills),
		Model:      b.provider.GetEmbeddingModelName(),
		Filter:     cfg.filter(),
	}
	if err := b.save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (b *Builder) cached(ctx context.Context) (*Vocabulary, error) {
	data, ok, err := b.store.Get(ctx, CacheKey)
	if err != nil || !ok {
		return nil, err
	}
	var stored storedVocabulary
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	vectors, err := cache.DecodeMatrix(stored.Matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary vectors: %w", err)
	}
	if len(vectors) != len(stored.Terms) {
		return nil, errors.Join(cache.ErrMismatch,
			fmt.Errorf("%d terms but %d vectors", len(stored.Terms), len(vectors)))
	}
	return &Vocabulary{
		Terms:      stored.Terms,
		Vectors:    vectors,
		CorpusSize: stored.CorpusSize,
		Model:      stored.Model,
		Filter:     stored.Filter,
	}, nil
}

func (b *Builder) save(ctx context.Context, v *Vocabulary) error {
	matrix, err := cache.EncodeMatrix(v.Vectors)
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary vectors: %w", err)
	}
	data, err := json.Marshal(storedVocabulary{
		Model:      v.Model,
		CorpusSize: v.CorpusSize,
		Filter:     v.Filter,
		Terms:      v.Terms,
		Matrix:     matrix,
	})
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}
	if err := b.store.Put(ctx, CacheKey, data); err != nil {
		return fmt.Errorf("failed to store vocabulary: %w", err)
	}
	return nil
}
