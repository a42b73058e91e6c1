package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaConfig holds configuration for an Ollama embedding server
type OllamaConfig struct {
	URL       string
	ModelName string
	BatchSize int
	Logger    *log.Logger
}

func NewOllamaConfig() OllamaConfig {
	return OllamaConfig{
		URL:       "http://localhost:11434",
		ModelName: "nomic-embed-text",
		BatchSize: DefaultBatchSize,
	}
}

func (c OllamaConfig) WithURL(url string) OllamaConfig {
	c.URL = url
	return c
}
func (c OllamaConfig) WithModelName(modelName string) OllamaConfig {
	c.ModelName = modelName
	return c
}
func (c OllamaConfig) WithBatchSize(size int) OllamaConfig {
	c.BatchSize = size
	return c
}
func (c OllamaConfig) WithLogger(logger *log.Logger) OllamaConfig {
	c.Logger = logger
	return c
}

func (c OllamaConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("ollama URL is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// OllamaEmbeddingProvider implements EmbeddingProvider on top of the langchaingo
// Ollama client
type OllamaEmbeddingProvider struct {
	config   OllamaConfig
	embedder lcembeddings.Embedder
	logger   *log.Logger
}

func NewOllamaEmbeddingProvider(config OllamaConfig) (*OllamaEmbeddingProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	llm, err := ollama.New(
		ollama.WithServerURL(config.URL),
		ollama.WithModel(config.ModelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	embedder, err := lcembeddings.NewEmbedder(llm,
		lcembeddings.WithBatchSize(config.BatchSize),
		lcembeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama embedder: %w", err)
	}
	return &OllamaEmbeddingProvider{
		config:   config,
		embedder: embedder,
		logger:   config.Logger,
	}, nil
}

func (p *OllamaEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embedding, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to get Ollama embedding: %w", err)
	}
	return embedding, nil
}

func (p *OllamaEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to get Ollama embeddings: %w", err)
	}
	p.logger.Debug("Generated Ollama embeddings", "count", len(vectors), "model", p.config.ModelName, "duration", time.Since(start))
	return vectors, nil
}

func (p *OllamaEmbeddingProvider) GetEmbeddingModelName() string {
	return p.config.ModelName
}
