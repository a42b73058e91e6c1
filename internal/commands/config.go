package commands

import (
	"fmt"
	"time"

	"github.com/lox/bill-relevance-ranker/internal/camara"
	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/ranker"
	"github.com/lox/bill-relevance-ranker/internal/textnorm"
	"github.com/lox/bill-relevance-ranker/internal/vocab"
)

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir holds the SQLite database and the embedding cache
	DataDir string `help:"Path to data directory" default:"./data" env:"BILL_RANKER_DATA_DIR"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
	// CacheBackend selects where embedding matrices and the vocabulary are cached
	CacheBackend string `help:"Embedding cache backend" default:"badger" enum:"badger,sqlite,memory" env:"BILL_RANKER_CACHE"`
}

// EmbeddingConfig contains common flag definitions for embedding configuration
type EmbeddingConfig struct {
	Provider string `help:"Embedding provider to use" default:"ollama" enum:"llamacpp,gemini,openai,lmstudio,ollama" env:"EMBEDDING_PROVIDER"`

	LlamaCppModel string `help:"LLaMA.cpp embedding model name" env:"LLAMACPP_EMBEDDING_MODEL"`
	LlamaCppURL   string `help:"LLaMA.cpp server URL" env:"LLAMACPP_URL"`

	GeminiAPIKey string `help:"Google Gemini API key" env:"GEMINI_API_KEY"`
	GeminiModel  string `help:"Gemini embedding model" env:"GEMINI_EMBEDDING_MODEL"`

	OpenAIAPIKey   string `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	OpenAIModel    string `help:"OpenAI embedding model" default:"text-embedding-3-small" env:"OPENAI_EMBEDDING_MODEL"`
	OpenAIEndpoint string `help:"OpenAI-compatible API endpoint" env:"OPENAI_ENDPOINT"`

	LMStudioModel    string `help:"LM Studio embedding model" default:"text-embedding-paraphrase-multilingual-minilm-l12-v2" env:"LMSTUDIO_EMBEDDING_MODEL"`
	LMStudioEndpoint string `help:"LM Studio endpoint" default:"http://localhost:1234/v1" env:"LMSTUDIO_ENDPOINT"`

	OllamaModel string `help:"Ollama embedding model" default:"nomic-embed-text" env:"OLLAMA_EMBEDDING_MODEL"`
	OllamaURL   string `help:"Ollama server URL" default:"http://localhost:11434" env:"OLLAMA_URL"`

	EmbeddingBatchSize int `help:"Number of texts per embedding request" default:"32"`
}

// RankingConfig contains the flags of a ranking run
type RankingConfig struct {
	Query          string  `help:"What the bills should be about" required:""`
	SemanticWeight float64 `help:"Weight of the semantic similarity" default:"0.5"`
	KeywordWeight  float64 `help:"Weight of the keyword tag boost" default:"0.5"`
	Threshold      float64 `help:"Minimum fused score (0.0-1.0)" default:"0.45"`
	TopK           int     `help:"Maximum number of results, 0 for no limit" default:"0"`
	Order          string  `help:"Score used to order results" default:"fused" enum:"fused,semantic"`

	TargetTopN   int     `help:"Number of nearest vocabulary tags considered for boosting" default:"30"`
	TargetCutoff float64 `help:"Minimum similarity of a boosting tag" default:"0.65"`
	Concurrency  int     `help:"Number of parallel scoring workers" default:"4"`

	StopwordsFile     string `help:"Newline separated boilerplate phrases replacing the built-in list" type:"existingfile"`
	TagBlacklistFile  string `help:"Newline separated tag blacklist replacing the built-in list" type:"existingfile"`
	MinTermLength     int    `help:"Vocabulary terms of this many characters or fewer are dropped" default:"3"`
	RebuildVocabulary bool   `help:"Rebuild the tag vocabulary even if a cached one matches"`
}

// StopPhrases returns the configured boilerplate phrases
func (c RankingConfig) StopPhrases() ([]string, error) {
	if c.StopwordsFile == "" {
		return textnorm.DefaultStopPhrases, nil
	}
	return ReadList(c.StopwordsFile)
}

// TagBlacklist returns the configured vocabulary blacklist
func (c RankingConfig) TagBlacklist() ([]string, error) {
	if c.TagBlacklistFile == "" {
		return textnorm.DefaultTagBlacklist, nil
	}
	return ReadList(c.TagBlacklistFile)
}

// ToRankerConfig builds the explicit configuration of a ranking run
func (c RankingConfig) ToRankerConfig(batchSize int, tracker progress.Progress) (ranker.Config, error) {
	phrases, err := c.StopPhrases()
	if err != nil {
		return ranker.Config{}, err
	}
	return ranker.Config{
		Query:        c.Query,
		Weights:      ranker.Weights{Semantic: c.SemanticWeight, Keyword: c.KeywordWeight},
		Threshold:    c.Threshold,
		TopK:         c.TopK,
		Order:        ranker.Order(c.Order),
		BatchSize:    batchSize,
		TargetTopN:   c.TargetTopN,
		TargetCutoff: c.TargetCutoff,
		Concurrency:  c.Concurrency,
		Normalizer:   textnorm.New(phrases),
		Progress:     tracker,
	}, nil
}

// ToVocabConfig builds the vocabulary extraction configuration
func (c RankingConfig) ToVocabConfig(batchSize int, tracker progress.Progress) (vocab.Config, error) {
	blacklist, err := c.TagBlacklist()
	if err != nil {
		return vocab.Config{}, err
	}
	return vocab.Config{
		Blacklist: blacklist,
		MinLength: c.MinTermLength,
		BatchSize: batchSize,
		Rebuild:   c.RebuildVocabulary,
		Progress:  tracker,
	}, nil
}

// DefaultRankingConfig mirrors the flag defaults for callers that do not parse flags
func DefaultRankingConfig(query string) RankingConfig {
	return RankingConfig{
		Query:          query,
		SemanticWeight: 0.5,
		KeywordWeight:  0.5,
		Threshold:      ranker.DefaultThreshold,
		Order:          string(ranker.OrderFused),
		TargetTopN:     ranker.DefaultTargetTopN,
		TargetCutoff:   ranker.DefaultTargetCutoff,
		Concurrency:    4,
		MinTermLength:  vocab.DefaultMinLength,
	}
}

// CollectConfig selects the propositions to collect
type CollectConfig struct {
	From       string   `help:"First presentation date (YYYY-MM-DD)" default:"2023-01-01"`
	To         string   `help:"Last presentation date (YYYY-MM-DD), defaults to today"`
	Types      []string `help:"Proposition type codes" default:"PL,PLP,PEC"`
	WindowDays int      `help:"Days per listing request" default:"60"`
	Workers    int      `help:"Number of concurrent detail requests" default:"4"`
	APIURL     string   `help:"Chamber open data API base URL" default:"https://dadosabertos.camara.leg.br/api/v2" env:"CAMARA_API_URL"`
}

// ToCollectOptions parses the date range, using now when To is unset
func (c CollectConfig) ToCollectOptions(now time.Time, tracker progress.Progress) (camara.CollectOptions, error) {
	start, err := time.Parse(time.DateOnly, c.From)
	if err != nil {
		return camara.CollectOptions{}, fmt.Errorf("invalid --from date: %w", err)
	}
	end := now
	if c.To != "" {
		end, err = time.Parse(time.DateOnly, c.To)
		if err != nil {
			return camara.CollectOptions{}, fmt.Errorf("invalid --to date: %w", err)
		}
	}
	return camara.CollectOptions{
		Start:      start,
		End:        end,
		TypeCodes:  c.Types,
		WindowDays: c.WindowDays,
		Workers:    c.Workers,
		Progress:   tracker,
	}, nil
}
