package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmbeddingService = errors.New("embedding service error")
	ErrUnknownProvider  = errors.New("unknown embedding provider")
)

type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderOllama  Provider = "ollama"
	ProviderHashing Provider = "hashing"
)

// Embedder maps texts to vectors, one per input and in input order. The
// vector length is fixed for the lifetime of an Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

type Middleware func(Embedder) Embedder

type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"baseDelay"`
	MaxDelay  time.Duration `yaml:"maxDelay"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	Provider  Provider        `yaml:"provider"`
	Model     string          `yaml:"model"`
	BaseURL   string          `yaml:"baseURL"`
	APIKeyEnv string          `yaml:"apiKeyEnv"`
	Dimension int             `yaml:"dimension"`
	Timeout   time.Duration   `yaml:"timeout"`
	BatchSize int             `yaml:"batchSize"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

func (cfg Config) Validate() error {
	switch cfg.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderHashing:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.Dimension < 0 {
		return fmt.Errorf("embedder dimension must not be negative, got %d", cfg.Dimension)
	}

	if cfg.BatchSize < 0 {
		return fmt.Errorf("embedder batch size must not be negative, got %d", cfg.BatchSize)
	}

	if cfg.Retry.Attempts < 0 {
		return fmt.Errorf("retry attempts must not be negative, got %d", cfg.Retry.Attempts)
	}

	return nil
}

// Check verifies that an embedder kept its contract for a batch: one
// vector per text, all of the same non-zero length. It returns that length.
func Check(texts []string, vectors [][]float32) (int, error) {
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingService, len(vectors), len(texts))
	}

	if len(vectors) == 0 {
		return 0, nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has length %d, expected %d", ErrEmbeddingService, i, len(v), dim)
		}
	}

	return dim, nil
}
