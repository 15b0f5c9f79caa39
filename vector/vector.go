package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/flarexio/ragblade/document"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrStorage           = errors.New("index storage error")
	ErrNoRecords         = errors.New("no records to index")
	ErrInvalidK          = errors.New("k must be positive")
	ErrUnsupportedMetric = errors.New("unsupported distance metric")
	ErrUnknownBackend    = errors.New("unknown index backend")
)

type Backend string

const (
	BackendFlat    Backend = "flat"
	BackendChromem Backend = "chromem"
	BackendQdrant  Backend = "qdrant"
)

type QdrantConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Exact bool   `yaml:"exact"`
}

type Config struct {
	Backend  Backend      `yaml:"backend"`
	Location string       `yaml:"location"`
	Metric   Metric       `yaml:"metric"`
	Compress bool         `yaml:"compress"`
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

func (cfg Config) Validate() error {
	switch cfg.Backend {
	case BackendFlat, BackendQdrant:
		if _, err := cfg.Metric.Func(); err != nil {
			return err
		}

	case BackendChromem:
		if cfg.Metric != Cosine {
			return fmt.Errorf("%w: chromem only supports %s, got %q", ErrUnsupportedMetric, Cosine, cfg.Metric)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if cfg.Location == "" {
		return errors.New("index location is required")
	}

	return nil
}

// Record is one embedded chunk. Records are never mutated once written.
type Record struct {
	Vector     []float32         `json:"vector"`
	Text       string            `json:"text"`
	Metadata   document.Metadata `json:"metadata"`
	ChunkIndex int               `json:"chunk_index"`
}

// Result is a record with its distance to the query; lower is closer.
type Result struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`
}

// Store persists whole indexes. CreateOrReplace must be atomic: a reader
// never observes a partially written index, and on failure the previous
// index at location stays intact.
type Store interface {
	CreateOrReplace(ctx context.Context, location string, records []Record) error
	Load(ctx context.Context, location string) (Handle, error)
}

// Handle is a loaded, read-only index. Search returns min(k, Len())
// results ordered by ascending distance, ties in insertion order.
type Handle interface {
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Dimension() int
	Len() int
	Close() error
}

// Dimension returns the shared vector length of records, failing when
// they disagree or when there are none.
func Dimension(records []Record) (int, error) {
	if len(records) == 0 {
		return 0, ErrNoRecords
	}

	dim := len(records[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: record 0 has an empty vector", ErrDimensionMismatch)
	}

	for i, r := range records {
		if len(r.Vector) != dim {
			return 0, fmt.Errorf("%w: record %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(r.Vector), dim)
		}
	}

	return dim, nil
}
