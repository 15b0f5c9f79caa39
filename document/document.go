package document

import (
	"errors"
	"strconv"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrRead              = errors.New("document read failed")
	ErrParse             = errors.New("document parse failed")
	ErrInvalidConfig     = errors.New("invalid chunker config")
)

// Metadata carries the provenance of a document. Page is 1-based and zero
// for formats without pages.
type Metadata struct {
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page,omitempty" yaml:"page,omitempty"`
}

// Map flattens metadata into string pairs for stores that only keep strings.
func (m Metadata) Map() map[string]string {
	metadata := map[string]string{
		"source": m.Source,
	}

	if m.Page > 0 {
		metadata["page"] = strconv.Itoa(m.Page)
	}

	return metadata
}

// MetadataFromMap is the inverse of Metadata.Map. Unknown keys are ignored.
func MetadataFromMap(m map[string]string) Metadata {
	var md Metadata
	md.Source = m["source"]

	if page, err := strconv.Atoi(m["page"]); err == nil {
		md.Page = page
	}

	return md
}

type Document struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

type Chunk struct {
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	ChunkIndex int      `json:"chunk_index"`
}
