package ragblade

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/vector"
)

// Components are the collaborators shared by the pipeline and the retriever.
// Cache and Locker are created on demand when left nil.
type Components struct {
	Loader   document.Loader
	Splitter *document.Splitter
	Embedder embedding.Embedder
	Store    vector.Store
	Cache    *vector.Cache
	Locker   *vector.Locker
}

func (c *Components) init() {
	if c.Loader == nil {
		c.Loader = document.NewLoader()
	}

	if c.Cache == nil {
		c.Cache = vector.NewCache(c.Store)
	}

	if c.Locker == nil {
		c.Locker = vector.NewLocker()
	}
}

type Pipeline struct {
	loader    document.Loader
	splitter  *document.Splitter
	embedder  embedding.Embedder
	store     vector.Store
	cache     *vector.Cache
	locker    *vector.Locker
	location  string
	batchSize int
	log       *zap.Logger
}

// NewPipeline builds the ingestion pipeline writing to location. A
// batchSize of zero embeds every chunk of a run in a single call.
func NewPipeline(c Components, location string, batchSize int) *Pipeline {
	c.init()

	return &Pipeline{
		loader:    c.Loader,
		splitter:  c.Splitter,
		embedder:  c.Embedder,
		store:     c.Store,
		cache:     c.Cache,
		locker:    c.Locker,
		location:  location,
		batchSize: batchSize,
		log: zap.L().With(
			zap.String("component", "pipeline"),
			zap.String("location", location),
		),
	}
}

// Ingest loads, chunks and embeds every path, then replaces the index at
// the pipeline's location. Nothing is written unless every stage succeeds.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, ErrNoDocuments
	}

	log := p.log.With(
		zap.String("run_id", uuid.NewString()),
	)

	var docs []document.Document
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}

		loaded, err := p.loader.Load(ctx, path)
		if err != nil {
			return 0, err
		}

		log.Debug("document loaded",
			zap.String("source", path),
			zap.Int("documents", len(loaded)),
		)

		docs = append(docs, loaded...)
	}

	chunks := p.splitter.Split(docs)
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	records := make([]vector.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vector.Record{
			Vector:     vectors[i],
			Text:       chunk.Text,
			Metadata:   chunk.Metadata,
			ChunkIndex: chunk.ChunkIndex,
		}
	}

	if err := p.replace(ctx, records); err != nil {
		return 0, err
	}

	log.Info("stored chunks",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(records)),
		zap.String("embedder", p.embedder.Name()),
	)

	return len(records), nil
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	size := p.batchSize
	if size <= 0 {
		size = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, size) {
		out, err := p.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, err
		}

		if _, err := embedding.Check(batch, out); err != nil {
			return nil, err
		}

		vectors = append(vectors, out...)
	}

	if _, err := embedding.Check(texts, vectors); err != nil {
		return nil, fmt.Errorf("%w: batches disagree on dimension", err)
	}

	return vectors, nil
}

func (p *Pipeline) replace(ctx context.Context, records []vector.Record) error {
	unlock := p.locker.Lock(p.location)
	defer unlock()

	if err := p.store.CreateOrReplace(ctx, p.location, records); err != nil {
		return err
	}

	p.cache.Invalidate(p.location)
	return nil
}
