// Package ollama embeds texts with a local or remote Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/flarexio/ragblade/embedding"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewEmbedder(cfg Config) (embedding.Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}

	client := api.NewClient(base, &http.Client{
		Timeout: cfg.Timeout,
	})

	return &embedder{client, cfg.Model}, nil
}

type embedder struct {
	client *api.Client
	model  string
}

func (e *embedder) Name() string {
	return "ollama:" + e.model
}

func (e *embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	}

	resp, err := e.client.Embed(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: ollama: %w", embedding.ErrEmbeddingService, err)
	}

	if _, err := embedding.Check(texts, resp.Embeddings); err != nil {
		return nil, err
	}

	return resp.Embeddings, nil
}
