package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/embeddings"
	"golang.org/x/exp/slices"
)

type providerFactory func(ctx context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error)

var providerFactories = map[string]providerFactory{
	"gemini":   newGeminiProvider,
	"llamacpp": newLlamaCppProvider,
	"lmstudio": newLMStudioProvider,
	"ollama":   newOllamaProvider,
	"openai":   newOpenAIProvider,
}

// ProviderNames lists the accepted --provider values
func ProviderNames() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetupEmbeddingProvider creates the provider selected by config.Provider
func SetupEmbeddingProvider(ctx context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	factory, ok := providerFactories[config.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (want one of %s)", config.Provider, strings.Join(ProviderNames(), ", "))
	}
	provider, err := factory(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedding provider: %w", config.Provider, err)
	}
	logger.Info("Embedding provider ready", "provider", config.Provider, "model", provider.GetEmbeddingModelName())
	return provider, nil
}

func newGeminiProvider(ctx context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("a Gemini API key is required (GEMINI_API_KEY)")
	}
	c := embeddings.NewGeminiConfig().WithAPIKey(config.GeminiAPIKey).WithLogger(logger)
	if config.GeminiModel != "" {
		c = c.WithModelName(config.GeminiModel)
	}
	return embeddings.NewGeminiEmbeddingProvider(ctx, c)
}

func newLlamaCppProvider(_ context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	if config.LlamaCppModel == "" {
		return nil, fmt.Errorf("a llama.cpp model name is required (LLAMACPP_EMBEDDING_MODEL)")
	}
	c := embeddings.NewLlamaCppConfig().WithModelName(config.LlamaCppModel).WithLogger(logger)
	if config.LlamaCppURL != "" {
		c = c.WithURL(config.LlamaCppURL)
	}
	return embeddings.NewLlamaCppEmbeddingProvider(c)
}

// LM Studio serves an OpenAI-compatible API that ignores the key
func newLMStudioProvider(_ context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	return embeddings.NewOpenAIEmbeddingProvider(embeddings.NewOpenAIConfig().
		WithAPIKey("lm-studio").
		WithEndpoint(config.LMStudioEndpoint).
		WithModelName(config.LMStudioModel).
		WithLogger(logger))
}

func newOllamaProvider(_ context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	c := embeddings.NewOllamaConfig().
		WithURL(config.OllamaURL).
		WithModelName(config.OllamaModel).
		WithLogger(logger)
	if config.EmbeddingBatchSize > 0 {
		c = c.WithBatchSize(config.EmbeddingBatchSize)
	}
	return embeddings.NewOllamaEmbeddingProvider(c)
}

func newOpenAIProvider(_ context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.EmbeddingProvider, error) {
	if config.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("an OpenAI API key is required (OPENAI_API_KEY)")
	}
	c := embeddings.NewOpenAIConfig().
		WithAPIKey(config.OpenAIAPIKey).
		WithModelName(config.OpenAIModel).
		WithLogger(logger)
	if config.OpenAIEndpoint != "" {
		c = c.WithEndpoint(config.OpenAIEndpoint)
	}
	return embeddings.NewOpenAIEmbeddingProvider(c)
}

// CloseEmbeddingProvider closes providers holding a client connection
func CloseEmbeddingProvider(provider embeddings.EmbeddingProvider, logger *log.Logger) {
	closer, ok := provider.(interface{ Close() error })
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("Failed to close embedding provider", "error", err)
	}
}
