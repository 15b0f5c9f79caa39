// Package flat stores an index as a single file and searches it exactly
// by brute force. Writes go to a temporary file in the same directory and
// are renamed into place, so readers only ever see complete indexes.
package flat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/flarexio/ragblade/vector"
)

const (
	FileName      = "index.ragb"
	formatVersion = 1
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Options struct {
	Metric   vector.Metric
	Compress bool
}

func NewStore(opts Options) (vector.Store, error) {
	if opts.Metric == "" {
		opts.Metric = vector.Cosine
	}

	if _, err := opts.Metric.Func(); err != nil {
		return nil, err
	}

	return &store{
		opts: opts,
		log:  zap.L().With(zap.String("component", "flat_store")),
	}, nil
}

type store struct {
	opts Options
	log  *zap.Logger
}

type indexFile struct {
	Version   int
	Metric    vector.Metric
	Dimension int
	Records   []vector.Record
}

func (s *store) CreateOrReplace(ctx context.Context, location string, records []vector.Record) error {
	dim, err := vector.Dimension(records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(location, ".index-*.tmp")
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

	idx := indexFile{
		Version:   formatVersion,
		Metric:    s.opts.Metric,
		Dimension: dim,
		Records:   records,
	}

	if err := s.encode(tmp, &idx); err != nil {
		return fmt.Errorf("%w: encode: %w", vector.ErrStorage, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), filepath.Join(location, FileName)); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	committed = true
	syncDir(location)

	s.log.Debug("index written",
		zap.String("location", location),
		zap.Int("records", len(records)),
		zap.Int("dimension", dim),
	)

	return nil
}

func (s *store) encode(w io.Writer, idx *indexFile) error {
	bw := bufio.NewWriter(w)

	if !s.opts.Compress {
		if err := gob.NewEncoder(bw).Encode(idx); err != nil {
			return err
		}

		return bw.Flush()
	}

	zw, err := zstd.NewWriter(bw)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(zw).Encode(idx); err != nil {
		zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}

	return bw.Flush()
}

func (s *store) Load(ctx context.Context, location string) (vector.Handle, error) {
	f, err := os.Open(filepath.Join(location, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", vector.ErrIndexNotFound, location)
		}

		return nil, fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}
	defer f.Close()

	idx, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", vector.ErrStorage, location, err)
	}

	if idx.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", vector.ErrStorage, idx.Version)
	}

	return &handle{
		records: idx.Records,
		dim:     idx.Dimension,
		metric:  idx.Metric,
	}, nil
}

func decode(r *bufio.Reader) (*indexFile, error) {
	var src io.Reader = r

	magic, err := r.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()

		src = zr
	}

	var idx indexFile
	if err := gob.NewDecoder(src).Decode(&idx); err != nil {
		return nil, err
	}

	return &idx, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()

	d.Sync()
}

type handle struct {
	records []vector.Record
	dim     int
	metric  vector.Metric
}

func (h *handle) Search(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	return vector.SearchExact(h.records, h.dim, query, k, h.metric)
}

func (h *handle) Dimension() int {
	return h.dim
}

func (h *handle) Len() int {
	return len(h.records)
}

func (h *handle) Close() error {
	return nil
}
