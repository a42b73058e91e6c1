package ranker

import (
	"errors"
	"fmt"

	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/textnorm"
)

// Order selects the score used to order selected bills
type Order string

const (
	// OrderFused orders by fused score, so the keyword boost counts before top-K truncation
	OrderFused Order = "fused"
	// OrderSemantic orders by raw semantic score
	OrderSemantic Order = "semantic"
)

const (
	DefaultThreshold    = 0.45
	DefaultTargetTopN   = 30
	DefaultTargetCutoff = 0.65
)

var (
	ErrProviderRequired = errors.New("embedding provider is required")
	ErrCacheRequired    = errors.New("embedding cache is required")
	ErrEmptyQuery       = errors.New("query is empty")
)

// Weights are the coefficients of the linear score fusion. They are not
// required to sum to one.
type Weights struct {
	Semantic float64
	Keyword  float64
}

// Config is everything a ranking run depends on
type Config struct {
	Query     string
	Weights   Weights
	Threshold float64
	// TopK bounds the number of results; zero means unbounded
	TopK  int
	Order Order

	BatchSize    int
	TargetTopN   int
	TargetCutoff float64
	Concurrency  int

	Normalizer *textnorm.Normalizer
	Progress   progress.Progress
}

// DefaultConfig returns the threshold-only configuration for query
func DefaultConfig(query string) Config {
	return Config{
		Query:        query,
		Weights:      Weights{Semantic: 0.5, Keyword: 0.5},
		Threshold:    DefaultThreshold,
		Order:        OrderFused,
		TargetTopN:   DefaultTargetTopN,
		TargetCutoff: DefaultTargetCutoff,
	}
}

// Validate checks the configuration and fills unset optional fields
func (c *Config) Validate() error {
	if c.Query == "" {
		return ErrEmptyQuery
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top-k must not be negative, got %d", c.TopK)
	}
	switch c.Order {
	case "":
		c.Order = OrderFused
	case OrderFused, OrderSemantic:
	default:
		return fmt.Errorf("unknown order %q", c.Order)
	}
	if c.TargetTopN < 0 {
		return fmt.Errorf("target tag count must not be negative, got %d", c.TargetTopN)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Normalizer == nil {
		c.Normalizer = textnorm.Default()
	}
	if c.Progress == nil {
		c.Progress = progress.NewNoopProgress()
	}
	return nil
}
