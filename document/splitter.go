package document

import "fmt"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Splitter cuts documents into fixed windows of characters (runes). Window i
// starts at i*(size-overlap), so consecutive chunks share exactly overlap
// characters and the last chunk may be shorter.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}

	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfig, size, overlap)
	}

	return &Splitter{size, overlap}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks each document in order. Documents with no text produce no
// chunks; chunk indexes restart at zero for every document.
func (s *Splitter) Split(docs []Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, s.SplitDocument(doc)...)
	}

	return chunks
}

func (s *Splitter) SplitDocument(doc Document) []Chunk {
	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := s.size - s.overlap
	chunks := make([]Chunk, 0, n/step+1)

	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := min(start+s.size, n)

		chunks = append(chunks, Chunk{
			Text:       string(runes[start:end]),
			Metadata:   doc.Metadata,
			ChunkIndex: idx,
		})

		if end == n {
			break
		}
	}

	return chunks
}

// Join reverses SplitDocument for chunks produced with the given overlap.
func Join(chunks []Chunk, overlap int) string {
	var out []rune
	for i, chunk := range chunks {
		runes := []rune(chunk.Text)
		if i > 0 {
			runes = runes[min(overlap, len(runes)):]
		}

		out = append(out, runes...)
	}

	return string(out)
}
