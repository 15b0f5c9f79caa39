package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

const (
	collectionName = "chunks"

	plainFile      = "index.gob"
	compressedFile = "index.gob.gz"
)

// NewStore persists each index as an exported chromem-go database. chromem
// ranks by cosine similarity only.
func NewStore(compress bool) vector.Store {
	return &store{compress}
}

type store struct {
	compress bool
}

// chromem needs an embedding function on every collection; vectors are
// always supplied by the caller, so it must never run.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chromem: documents must carry embeddings")
}

func (s *store) CreateOrReplace(ctx context.Context, location string, records []vector.Record) error {
	dim, err := vector.Dimension(records)
	if err != nil {
		return err
	}

	db := chromem.NewDB()

	metadata := map[string]string{
		"dimension": strconv.Itoa(dim),
	}

	c, err := db.CreateCollection(collectionName, metadata, noEmbed)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = recordToDocument(r, i)
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	name := plainFile
	if s.compress {
		name = compressedFile
	}

	final := filepath.Join(location, name)

	tmp, err := os.CreateTemp(location, ".chromem-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := db.ExportToWriter(tmp, s.compress, ""); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}
	committed = true

	// an index written with the other compression setting is now outdated
	other := filepath.Join(location, plainFile)
	if !s.compress {
		other = filepath.Join(location, compressedFile)
	}
	os.Remove(other)

	return nil
}

func (s *store) Load(ctx context.Context, location string) (vector.Handle, error) {
	path := ""
	for _, name := range []string{compressedFile, plainFile} {
		p := filepath.Join(location, name)
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}

	if path == "" {
		return nil, fmt.Errorf("%w: %s", vector.ErrIndexNotFound, location)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	c := db.GetCollection(collectionName, noEmbed)
	if c == nil {
		return nil, fmt.Errorf("%w: collection %q missing in %s", vector.ErrStorage, collectionName, path)
	}

	// every index holds at least one record, written first under seq 0
	first, err := c.GetByID(ctx, documentID(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	return &handle{c, len(first.Embedding)}, nil
}

type handle struct {
	collection *chromem.Collection
	dim        int
}

// Search asks chromem for every document and re-ranks them, so ties are
// broken by insertion order rather than by chromem's heap.
func (h *handle) Search(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", vector.ErrInvalidK, k)
	}

	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", vector.ErrDimensionMismatch, len(query), h.dim)
	}

	n := h.collection.Count()
	if n == 0 {
		return []vector.Result{}, nil
	}

	results, err := h.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	ranked := make([]vector.Ranked, len(results))
	for i, result := range results {
		r, seq := documentToRecord(result.ID, result.Metadata, result.Embedding, result.Content)

		distance := 1 - float64(result.Similarity)
		if math.IsNaN(distance) {
			distance = 1
		}

		ranked[i] = vector.Ranked{
			Result: vector.Result{Record: r, Distance: max(0, distance)},
			Seq:    seq,
		}
	}

	return vector.SortRanked(ranked, k), nil
}

func (h *handle) Dimension() int {
	return h.dim
}

func (h *handle) Len() int {
	return h.collection.Count()
}

func (h *handle) Close() error {
	return nil
}

func documentID(seq int) string {
	return fmt.Sprintf("chunk_%08d", seq)
}

func recordToDocument(r vector.Record, seq int) chromem.Document {
	metadata := r.Metadata.Map()
	metadata["chunk_index"] = strconv.Itoa(r.ChunkIndex)
	metadata["seq"] = strconv.Itoa(seq)

	return chromem.Document{
		ID:        documentID(seq),
		Metadata:  metadata,
		Embedding: r.Vector,
		Content:   r.Text,
	}
}

func documentToRecord(id string, metadata map[string]string, embedding []float32, content string) (vector.Record, int) {
	chunkIndex, _ := strconv.Atoi(metadata["chunk_index"])

	seq, err := strconv.Atoi(metadata["seq"])
	if err != nil {
		seq = math.MaxInt
	}

	r := vector.Record{
		Vector:     embedding,
		Text:       content,
		Metadata:   document.MetadataFromMap(metadata),
		ChunkIndex: chunkIndex,
	}

	return r, seq
}
