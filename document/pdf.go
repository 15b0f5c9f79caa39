package document

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// ParsePDF extracts the plain text of every page. Pages keep their position
// even when empty, so page numbers stay aligned with the file.
func ParsePDF(ctx context.Context, path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}

	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	n := r.NumPage()
	docs := make([]Document, 0, n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc := Document{
			Metadata: Metadata{
				Source: path,
				Page:   i,
			},
		}

		page := r.Page(i)
		if !page.V.IsNull() {
			text, err := page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: %s page %d: %w", ErrParse, path, i, err)
			}

			doc.Text = text
		}

		docs = append(docs, doc)
	}

	return docs, nil
}
