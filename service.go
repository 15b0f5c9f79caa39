package ragblade

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/document"
)

// Service defines the core logic of RAGBlade.
type Service interface {

	// Close stops background work and releases loaded indexes.
	Close() error

	// Ingest replaces the index with the chunks of the given documents.
	// An empty path list ingests the configured default documents.
	Ingest(ctx context.Context, paths []string) (int, error)

	// Retrieve returns the k passages most similar to query.
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)

	// SearchCompanyPolicy implements the search_company_policy tool.
	SearchCompanyPolicy(ctx context.Context, query string, limit int) (string, error)
}

type ServiceMiddleware func(Service) Service

func NewService(ctx context.Context, cfg Config, c Components) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if c.Embedder == nil || c.Store == nil {
		return nil, fmt.Errorf("%w: embedder and index store are required", ErrInvalidConfig)
	}

	if c.Splitter == nil {
		splitter, err := document.NewSplitter(cfg.Chunker.Size, cfg.Chunker.Overlap)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		c.Splitter = splitter
	}

	c.init()

	log := zap.L().With(
		zap.String("service", "ragblade"),
	)

	ctx, cancel := context.WithCancel(ctx)

	svc := &service{
		pipeline:  NewPipeline(c, cfg.Index.Location, cfg.Embedder.BatchSize),
		retriever: NewRetriever(c, cfg.Index.Location),
		c:         c,

		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Ingest.Watch {
		w, err := newWatcher(svc, cfg.Ingest.Paths, cfg.Ingest.Debounce.Duration())
		if err != nil {
			cancel()
			return nil, err
		}

		svc.watcher = w
		go w.run(ctx)
	}

	return svc, nil
}

type service struct {
	pipeline  *Pipeline
	retriever *Retriever
	watcher   *watcher
	c         Components

	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func (svc *service) Close() error {
	if svc.cancel != nil {
		svc.cancel()
		svc.cancel = nil
	}

	var errs []error

	if svc.watcher != nil {
		errs = append(errs, svc.watcher.Close())
	}

	errs = append(errs, svc.c.Cache.Close())

	if closer, ok := svc.c.Store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}

	return errors.Join(errs...)
}

func (svc *service) Ingest(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		paths = svc.cfg.Ingest.Paths
	}

	return svc.pipeline.Ingest(ctx, paths)
}

func (svc *service) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = svc.cfg.Retriever.DefaultLimit
	}

	return svc.retriever.Retrieve(ctx, query, k)
}

func (svc *service) SearchCompanyPolicy(ctx context.Context, query string, limit int) (string, error) {
	passages, err := svc.Retrieve(ctx, query, limit)
	if err != nil {
		return "", err
	}

	return FormatPassages(passages), nil
}
