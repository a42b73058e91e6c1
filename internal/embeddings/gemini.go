package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig holds configuration for the Gemini embedding service
type GeminiConfig struct {
	APIKey        string
	ModelName     string
	RetryAttempts uint
	Logger        *log.Logger
}

func NewGeminiConfig() GeminiConfig {
	return GeminiConfig{
		ModelName:     "text-embedding-004",
		RetryAttempts: 3,
	}
}

func (c GeminiConfig) WithAPIKey(apiKey string) GeminiConfig {
	c.APIKey = apiKey
	return c
}
func (c GeminiConfig) WithModelName(modelName string) GeminiConfig {
	c.ModelName = modelName
	return c
}
func (c GeminiConfig) WithRetryAttempts(attempts uint) GeminiConfig {
	c.RetryAttempts = attempts
	return c
}
func (c GeminiConfig) WithLogger(logger *log.Logger) GeminiConfig {
	c.Logger = logger
	return c
}

func (c GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("gemini api key is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

type GeminiEmbeddingProvider struct {
	config GeminiConfig
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *log.Logger
}

func NewGeminiEmbeddingProvider(ctx context.Context, config GeminiConfig) (*GeminiEmbeddingProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.EmbeddingModel(config.ModelName)
	// summaries, tags and queries are all compared with each other
	model.TaskType = genai.TaskTypeSemanticSimilarity
	return &GeminiEmbeddingProvider{
		config: config,
		client: client,
		model:  model,
		logger: config.Logger,
	}, nil
}

func (p *GeminiEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// geminiMaxBatch is the most contents BatchEmbedContents accepts per request
const geminiMaxBatch = 100

// GenerateEmbeddings embeds texts in as many requests as the API batch limit requires
func (p *GeminiEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, chunk := range splitBatches(texts, geminiMaxBatch) {
		out, err := p.embedBatch(ctx, chunk)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

// splitBatches cuts texts into consecutive slices of at most size elements
func splitBatches(texts []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(texts); start += size {
		batches = append(batches, texts[start:min(start+size, len(texts))])
	}
	return batches
}

func (p *GeminiEmbeddingProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	start := time.Now()
	err := retry.Do(
		func() error {
			batch := p.model.NewBatch()
			for _, t := range texts {
				batch = batch.AddContent(genai.Text(t))
			}
			result, err := p.model.BatchEmbedContents(ctx, batch)
			if err != nil {
				return fmt.Errorf("failed to batch embed: %w", err)
			}
			if result == nil || len(result.Embeddings) != len(texts) {
				return retry.Unrecoverable(fmt.Errorf("gemini returned a batch of the wrong size"))
			}
			out := make([][]float32, len(result.Embeddings))
			for i, e := range result.Embeddings {
				if e == nil {
					return retry.Unrecoverable(fmt.Errorf("gemini returned no embedding at position %d", i))
				}
				out[i] = e.Values
			}
			vectors = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("Retrying Gemini batch embedding request", "attempt", n+1, "max_attempts", p.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get Gemini embeddings: %w", err)
	}
	p.logger.Debug("Generated Gemini embeddings", "count", len(vectors), "model", p.config.ModelName, "duration", time.Since(start))
	return vectors, nil
}

func (p *GeminiEmbeddingProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GeminiEmbeddingProvider) GetEmbeddingModelName() string {
	return p.config.ModelName
}
