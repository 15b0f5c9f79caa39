package ragblade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/vector"
)

type Retriever struct {
	embedder embedding.Embedder
	cache    *vector.Cache
	location string
}

func NewRetriever(c Components, location string) *Retriever {
	c.init()

	return &Retriever{
		embedder: c.Embedder,
		cache:    c.Cache,
		location: location,
	}
}

// Retrieve returns the k passages closest to query, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", vector.ErrInvalidK, k)
	}

	lease, err := r.cache.Acquire(ctx, r.location)
	if err != nil {
		if errors.Is(err, vector.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}

		return nil, err
	}
	defer lease.Release()

	texts := []string{query}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if _, err := embedding.Check(texts, vectors); err != nil {
		return nil, err
	}

	results, err := lease.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}

	passages := make([]Passage, len(results))
	for i, result := range results {
		passages[i] = Passage{
			Text:   result.Record.Text,
			Source: result.Record.Metadata.Source,
			Page:   result.Record.Metadata.Page,
		}
	}

	return passages, nil
}

// FormatPassages renders passages in ranked order as the text block
// returned by the search_company_policy tool.
func FormatPassages(passages []Passage) string {
	var sb strings.Builder
	for _, p := range passages {
		source := p.Source
		if source == "" {
			source = "Unknown"
		}

		sb.WriteString("Source: ")
		sb.WriteString(source)
		sb.WriteString("\nContent: ")
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// Sources lists the distinct sources of passages in first-seen order.
func Sources(passages []Passage) []string {
	sources := make([]string, 0, len(passages))
	seen := make(map[string]struct{}, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.Source]; ok || p.Source == "" {
			continue
		}

		seen[p.Source] = struct{}{}
		sources = append(sources, p.Source)
	}

	return sources
}
