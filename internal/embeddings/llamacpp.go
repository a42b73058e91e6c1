package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
)

// LlamaCppConfig holds configuration for the llama.cpp embedding server
type LlamaCppConfig struct {
	URL           string
	Timeout       time.Duration
	RetryAttempts uint
	ModelName     string
	Logger        *log.Logger
}

func NewLlamaCppConfig() LlamaCppConfig {
	return LlamaCppConfig{
		URL:           "http://localhost:8080",
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
	}
}

func (c LlamaCppConfig) WithURL(url string) LlamaCppConfig {
	c.URL = url
	return c
}
func (c LlamaCppConfig) WithTimeout(timeout time.Duration) LlamaCppConfig {
	c.Timeout = timeout
	return c
}
func (c LlamaCppConfig) WithRetryAttempts(attempts uint) LlamaCppConfig {
	c.RetryAttempts = attempts
	return c
}
func (c LlamaCppConfig) WithModelName(modelName string) LlamaCppConfig {
	c.ModelName = modelName
	return c
}
func (c LlamaCppConfig) WithLogger(logger *log.Logger) LlamaCppConfig {
	c.Logger = logger
	return c
}

func (c LlamaCppConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("embedding service URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

type LlamaCppEmbeddingProvider struct {
	config     LlamaCppConfig
	httpClient *http.Client
	endpoint   string
	logger     *log.Logger
}

// llama.cpp's /embedding accepts a list of contents and answers with one
// entry per content, each holding the pooled vector as its only row
type llamaCppEmbeddingRequest struct {
	Content []string `json:"content"`
}

type llamaCppEmbeddingResponse []struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"`
}

func NewLlamaCppEmbeddingProvider(config LlamaCppConfig) (*LlamaCppEmbeddingProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &LlamaCppEmbeddingProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		endpoint:   baseURL.JoinPath("embedding").String(),
		logger:     config.Logger,
	}, nil
}

func (p *LlamaCppEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings embeds texts in a single request, returning vectors in
// input order
func (p *LlamaCppEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(llamaCppEmbeddingRequest{Content: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var vectors [][]float32
	err = retry.Do(
		func() error {
			resp, err := p.post(ctx, body)
			if err != nil {
				return err
			}
			vectors, err = orderedVectors(resp, len(texts))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(p.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("Retrying llama.cpp embedding request", "attempt", n+1, "max_attempts", p.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings: %w", err)
	}
	p.logger.Debug("Generated llama.cpp embeddings", "count", len(vectors), "model", p.config.ModelName, "duration", time.Since(start))
	return vectors, nil
}

func (p *LlamaCppEmbeddingProvider) post(ctx context.Context, body []byte) (llamaCppEmbeddingResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, data)
	default:
		return nil, retry.Unrecoverable(fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, data))
	}

	var out llamaCppEmbeddingResponse
	if err := json.Unmarshal(data, &out); err != nil {
		p.logger.Debug("Failed to unmarshal embedding response", "body", string(data), "error", err)
		return nil, retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return out, nil
}

// orderedVectors places each pooled vector at its index and checks that every
// input got one
func orderedVectors(resp llamaCppEmbeddingResponse, n int) ([][]float32, error) {
	if len(resp) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(resp))
	}
	vectors := make([][]float32, n)
	for _, e := range resp {
		if e.Index < 0 || e.Index >= n {
			return nil, fmt.Errorf("embedding index %d out of range", e.Index)
		}
		if len(e.Embedding) == 0 || len(e.Embedding[0]) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", e.Index)
		}
		vectors[e.Index] = e.Embedding[0]
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

func (p *LlamaCppEmbeddingProvider) GetEmbeddingModelName() string {
	return p.config.ModelName
}
