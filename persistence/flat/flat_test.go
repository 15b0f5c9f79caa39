package flat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

type flatStoreTestSuite struct {
	suite.Suite
	ctx      context.Context
	location string
	store    vector.Store
}

func (suite *flatStoreTestSuite) SetupTest() {
	store, err := NewStore(Options{Metric: vector.Cosine, Compress: true})
	suite.Require().NoError(err)

	suite.ctx = context.Background()
	suite.location = filepath.Join(suite.T().TempDir(), "policy_index")
	suite.store = store
}

func sampleRecords(source string, n int) []vector.Record {
	rs := make([]vector.Record, n)
	for i := range rs {
		v := make([]float32, 4)
		v[i%4] = 1
		v[(i+1)%4] = float32(i) / 10

		rs[i] = vector.Record{
			Vector:     v,
			Text:       fmt.Sprintf("%s chunk %d", source, i),
			Metadata:   document.Metadata{Source: source},
			ChunkIndex: i,
		}
	}

	return rs
}

func (suite *flatStoreTestSuite) TestRoundTripIdentity() {
	records := sampleRecords("hr_policy.txt", 6)

	err := suite.store.CreateOrReplace(suite.ctx, suite.location, records)
	suite.Require().NoError(err)

	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.Require().NoError(err)
	defer h.Close()

	suite.Equal(6, h.Len())
	suite.Equal(4, h.Dimension())

	for _, r := range records {
		results, err := h.Search(suite.ctx, r.Vector, 1)
		suite.Require().NoError(err)
		suite.Require().Len(results, 1)

		suite.Equal(r, results[0].Record)
		suite.InDelta(0, results[0].Distance, 1e-12)
	}
}

func (suite *flatStoreTestSuite) TestLoadMissing() {
	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.ErrorIs(err, vector.ErrIndexNotFound)
	suite.Nil(h)
}

func (suite *flatStoreTestSuite) TestSearchBounds() {
	err := suite.store.CreateOrReplace(suite.ctx, suite.location, sampleRecords("a.txt", 3))
	suite.Require().NoError(err)

	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.Require().NoError(err)

	results, err := h.Search(suite.ctx, []float32{1, 0, 0, 0}, 10)
	suite.Require().NoError(err)
	suite.Len(results, 3)

	for i := 1; i < len(results); i++ {
		suite.LessOrEqual(results[i-1].Distance, results[i].Distance)
	}

	_, err = h.Search(suite.ctx, []float32{1, 0}, 1)
	suite.ErrorIs(err, vector.ErrDimensionMismatch)
}

func (suite *flatStoreTestSuite) TestReplaceNotMerge() {
	err := suite.store.CreateOrReplace(suite.ctx, suite.location, append(sampleRecords("a.txt", 2), sampleRecords("b.txt", 2)...))
	suite.Require().NoError(err)

	err = suite.store.CreateOrReplace(suite.ctx, suite.location, sampleRecords("a.txt", 2))
	suite.Require().NoError(err)

	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.Require().NoError(err)
	suite.Equal(2, h.Len())

	results, err := h.Search(suite.ctx, []float32{1, 0, 0, 0}, 10)
	suite.Require().NoError(err)

	for _, r := range results {
		suite.Equal("a.txt", r.Record.Metadata.Source)
	}
}

func (suite *flatStoreTestSuite) TestFailedWriteKeepsPreviousIndex() {
	err := suite.store.CreateOrReplace(suite.ctx, suite.location, sampleRecords("a.txt", 2))
	suite.Require().NoError(err)

	bad := sampleRecords("b.txt", 2)
	bad[1].Vector = []float32{1}

	err = suite.store.CreateOrReplace(suite.ctx, suite.location, bad)
	suite.ErrorIs(err, vector.ErrDimensionMismatch)

	err = suite.store.CreateOrReplace(suite.ctx, suite.location, nil)
	suite.ErrorIs(err, vector.ErrNoRecords)

	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.Require().NoError(err)
	suite.Equal(2, h.Len())

	entries, err := os.ReadDir(suite.location)
	suite.Require().NoError(err)
	suite.Len(entries, 1, "no temporary files may be left behind")
}

func (suite *flatStoreTestSuite) TestConcurrentWritersNeverMix() {
	var wg sync.WaitGroup

	sources := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	for _, source := range sources {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()

			err := suite.store.CreateOrReplace(suite.ctx, suite.location, sampleRecords(source, 5))
			suite.NoError(err)
		}(source)
	}

	wg.Wait()

	h, err := suite.store.Load(suite.ctx, suite.location)
	suite.Require().NoError(err)

	results, err := h.Search(suite.ctx, []float32{1, 0, 0, 0}, 10)
	suite.Require().NoError(err)
	suite.Require().Len(results, 5)

	source := results[0].Record.Metadata.Source
	for _, r := range results {
		suite.Equal(source, r.Record.Metadata.Source)
	}
}

func TestFlatStoreTestSuite(t *testing.T) {
	suite.Run(t, new(flatStoreTestSuite))
}

func TestUncompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	location := t.TempDir()

	s, err := NewStore(Options{Metric: vector.L2})
	require.NoError(t, err)

	records := sampleRecords("manual.pdf", 3)
	records[2].Metadata.Page = 7

	require.NoError(t, s.CreateOrReplace(ctx, location, records))

	// an uncompressed writer and a compressing reader share the format
	compressed, err := NewStore(Options{Metric: vector.L2, Compress: true})
	require.NoError(t, err)

	h, err := compressed.Load(ctx, location)
	require.NoError(t, err)

	results, err := h.Search(ctx, records[2].Vector, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, results[0].Record.Metadata.Page)
	assert.Equal(t, 0.0, results[0].Distance)
}

func TestNewStoreRejectsMetric(t *testing.T) {
	_, err := NewStore(Options{Metric: "hamming"})
	assert.ErrorIs(t, err, vector.ErrUnsupportedMetric)
}

func TestLoadCorrupt(t *testing.T) {
	location := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(location, FileName), []byte("garbage"), 0o644))

	s, err := NewStore(Options{})
	require.NoError(t, err)

	_, err = s.Load(context.Background(), location)
	assert.ErrorIs(t, err, vector.ErrStorage)
}
