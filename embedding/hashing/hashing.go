// Package hashing provides an offline embedder that projects word tokens
// into a fixed number of buckets (the hashing trick). It needs no corpus
// preparation, so ingestion and querying in separate processes agree on
// every vector.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/flarexio/ragblade/embedding"
)

const DefaultDimension = 256

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this",
		"that", "these", "those", "from", "so", "such", "into", "about", "can", "will", "do", "does",
		"how", "what", "which", "who", "many", "much",
	}

	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}

	return m
}()

func NewEmbedder(dimension int) embedding.Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	return &embedder{dimension}
}

type embedder struct {
	dimension int
}

func (e *embedder) Name() string {
	return "hashing"
}

func (e *embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vectors[i] = e.vector(text)
	}

	return vectors, nil
}

func (e *embedder) vector(text string) []float32 {
	vec := make([]float64, e.dimension)

	for _, token := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}

	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}

	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}

	return out
}

// Tokenize lowercases text and returns its word tokens without stopwords.
// A trailing plural "s" is dropped so "day" and "days" share a bucket.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)

	tokens := raw[:0]
	for _, t := range raw {
		if _, ok := stopwords[t]; ok {
			continue
		}

		if len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") {
			t = strings.TrimSuffix(t, "s")
		}

		tokens = append(tokens, t)
	}

	return tokens
}
