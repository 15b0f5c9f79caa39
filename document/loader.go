package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Parser turns one file into documents. Paginated formats return one
// document per page.
type Parser interface {
	Parse(ctx context.Context, path string) ([]Document, error)
}

type ParserFunc func(ctx context.Context, path string) ([]Document, error)

func (f ParserFunc) Parse(ctx context.Context, path string) ([]Document, error) {
	return f(ctx, path)
}

// Loader dispatches on the file extension.
type Loader interface {
	Load(ctx context.Context, path string) ([]Document, error)
	Formats() []string
}

type LoaderOption func(*loader)

// WithParser registers (or replaces) the parser for an extension such as ".csv".
func WithParser(ext string, p Parser) LoaderOption {
	return func(l *loader) {
		l.parsers[normalizeExt(ext)] = p
	}
}

func NewLoader(opts ...LoaderOption) Loader {
	text := ParserFunc(ParseText)

	l := &loader{
		parsers: map[string]Parser{
			".txt":      text,
			".text":     text,
			".md":       text,
			".markdown": text,
			".pdf":      ParserFunc(ParsePDF),
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

type loader struct {
	parsers map[string]Parser
}

func (l *loader) Load(ctx context.Context, path string) ([]Document, error) {
	ext := normalizeExt(filepath.Ext(path))

	p, ok := l.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.Parse(ctx, path)
}

func (l *loader) Formats() []string {
	formats := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		formats = append(formats, ext)
	}

	return formats
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return ext
}

// ParseText reads the whole file as a single document.
func ParseText(ctx context.Context, path string) ([]Document, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}

	if !utf8.Valid(bs) {
		return nil, fmt.Errorf("%w: %s: not valid UTF-8 text", ErrParse, path)
	}

	doc := Document{
		Text: string(bs),
		Metadata: Metadata{
			Source: path,
		},
	}

	return []Document{doc}, nil
}
