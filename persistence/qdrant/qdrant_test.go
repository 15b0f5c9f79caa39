package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

func TestPayloadRoundTrip(t *testing.T) {
	r := vector.Record{
		Vector:     []float32{0.1, 0.2},
		Text:       "Expenses need receipts.",
		Metadata:   document.Metadata{Source: "docs/finance.pdf", Page: 3},
		ChunkIndex: 4,
	}

	point := ToPoint(r, 17)
	assert.Equal(t, uint64(17), point.GetId().GetNum())
	assert.Equal(t, []float32{0.1, 0.2}, point.GetVectors().GetVector().GetData())

	got, seq := FromPayload(point.GetPayload())
	assert.Equal(t, 17, seq)
	assert.Equal(t, r.Text, got.Text)
	assert.Equal(t, r.Metadata, got.Metadata)
	assert.Equal(t, r.ChunkIndex, got.ChunkIndex)
}

func TestPayloadWithoutPage(t *testing.T) {
	point := ToPoint(vector.Record{Text: "VPN", Metadata: document.Metadata{Source: "it.txt"}}, 0)

	_, ok := point.GetPayload()["page"]
	assert.False(t, ok)

	got, seq := FromPayload(point.GetPayload())
	assert.Equal(t, 0, seq)
	assert.Equal(t, document.Metadata{Source: "it.txt"}, got.Metadata)
}

func TestScoreToDistance(t *testing.T) {
	assert.InDelta(t, 0.25, ScoreToDistance(qdrantclient.Distance_Cosine, 0.75), 1e-6)
	assert.InDelta(t, 0, ScoreToDistance(qdrantclient.Distance_Cosine, 1.0000001), 1e-6)
	assert.InDelta(t, 2.5, ScoreToDistance(qdrantclient.Distance_Euclid, 2.5), 1e-6)
}

func TestAliasName(t *testing.T) {
	assert.Equal(t, "ragblade_faiss_index", AliasName("faiss_index"))
	assert.Equal(t, "ragblade__data_policy-index", AliasName("./data/policy-index"))
	assert.Equal(t, "ragblade_index", AliasName(""))
}

func TestToDistance(t *testing.T) {
	d, err := toDistance(vector.L2)
	assert.NoError(t, err)
	assert.Equal(t, qdrantclient.Distance_Euclid, d)

	_, err = toDistance("dot")
	assert.ErrorIs(t, err, vector.ErrUnsupportedMetric)
}
