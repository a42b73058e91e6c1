package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI embedding service
type OpenAIConfig struct {
	APIKey        string
	Endpoint      string // e.g. https://api.openai.com/v1
	ModelName     string
	Timeout       time.Duration
	RetryAttempts uint
	Logger        *log.Logger
}

func NewOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Endpoint:      "https://api.openai.com/v1",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
	}
}

func (c OpenAIConfig) WithAPIKey(apiKey string) OpenAIConfig {
	c.APIKey = apiKey
	return c
}
func (c OpenAIConfig) WithEndpoint(endpoint string) OpenAIConfig {
	c.Endpoint = endpoint
	return c
}
func (c OpenAIConfig) WithModelName(modelName string) OpenAIConfig {
	c.ModelName = modelName
	return c
}
func (c OpenAIConfig) WithTimeout(timeout time.Duration) OpenAIConfig {
	c.Timeout = timeout
	return c
}
func (c OpenAIConfig) WithRetryAttempts(attempts uint) OpenAIConfig {
	c.RetryAttempts = attempts
	return c
}
func (c OpenAIConfig) WithLogger(logger *log.Logger) OpenAIConfig {
	c.Logger = logger
	return c
}

func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai api key is required")
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

// OpenAIEmbeddingProvider implements EmbeddingProvider using OpenAI-compatible API
// (including OpenAI, OpenRouter, LMStudio, etc)
type OpenAIEmbeddingProvider struct {
	config OpenAIConfig
	client *openai.Client
	logger *log.Logger
}

func NewOpenAIEmbeddingProvider(config OpenAIConfig) (*OpenAIEmbeddingProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = config.Endpoint
	return &OpenAIEmbeddingProvider{
		config: config,
		client: openai.NewClientWithConfig(cfg),
		logger: config.Logger,
	}, nil
}

func (p *OpenAIEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	// the API rejects empty strings
	input := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	var vectors [][]float32
	start := time.Now()
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
			resp, err := p.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(p.config.ModelName),
				Input: input,
			})
			if err != nil {
				return fmt.Errorf("failed to create embeddings: %w", err)
			}
			if len(resp.Data) != len(input) {
				return retry.Unrecoverable(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(input)))
			}
			out := make([][]float32, len(input))
			for _, d := range resp.Data {
				if d.Index < 0 || d.Index >= len(out) {
					return retry.Unrecoverable(fmt.Errorf("embedding index %d out of range", d.Index))
				}
				out[d.Index] = d.Embedding
			}
			vectors = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("Retrying OpenAI embedding request", "attempt", n+1, "max_attempts", p.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get OpenAI embeddings: %w", err)
	}
	p.logger.Debug("Generated OpenAI embeddings", "count", len(vectors), "model", p.config.ModelName, "duration", time.Since(start))
	return vectors, nil
}

func (p *OpenAIEmbeddingProvider) GetEmbeddingModelName() string {
	return p.config.ModelName
}
