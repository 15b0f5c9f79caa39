package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/embedding/hashing"
	"github.com/flarexio/ragblade/embedding/ollama"
	"github.com/flarexio/ragblade/embedding/openai"
	"github.com/flarexio/ragblade/persistence/chromem"
	"github.com/flarexio/ragblade/persistence/flat"
	"github.com/flarexio/ragblade/persistence/qdrant"
	"github.com/flarexio/ragblade/vector"
)

// loadConfig reads <path>/config.yaml over the defaults. A missing file
// leaves the defaults in place. Variables from .env files in the working
// directory and in path are loaded first; existing variables win.
func loadConfig(path string) (ragblade.Config, error) {
	for _, name := range []string{".env", filepath.Join(path, ".env")} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ragblade.Config{}, err
		}
	}

	cfg := ragblade.DefaultConfig()

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):

	case err != nil:
		return cfg, err

	default:
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%w: %w", ragblade.ErrInvalidConfig, err)
		}
	}

	cfg.Resolve(path)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func newEmbedder(cfg embedding.Config) (embedding.Embedder, error) {
	var (
		e   embedding.Embedder
		err error
	)

	switch cfg.Provider {
	case embedding.ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.Config{
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimension,
		})

	case embedding.ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case embedding.ProviderHashing:
		e = hashing.NewEmbedder(cfg.Dimension)

	default:
		err = fmt.Errorf("%w: %q", embedding.ErrUnknownProvider, cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	e = embedding.RateLimitMiddleware(cfg.RateLimit)(e)
	e = embedding.RetryMiddleware(cfg.Retry)(e)

	return e, nil
}

func newStore(cfg vector.Config) (vector.Store, error) {
	switch cfg.Backend {
	case vector.BackendFlat:
		return flat.NewStore(flat.Options{
			Metric:   cfg.Metric,
			Compress: cfg.Compress,
		})

	case vector.BackendChromem:
		return chromem.NewStore(cfg.Compress), nil

	case vector.BackendQdrant:
		store, err := qdrant.NewStore(cfg.Qdrant, cfg.Metric)
		if err != nil {
			return nil, err
		}

		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", vector.ErrUnknownBackend, cfg.Backend)
	}
}

func newService(ctx context.Context, cfg ragblade.Config) (ragblade.Service, error) {
	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	store, err := newStore(cfg.Index)
	if err != nil {
		return nil, err
	}

	return ragblade.NewService(ctx, cfg, ragblade.Components{
		Embedder: embedder,
		Store:    store,
	})
}
