package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hr_policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Employees get 20 days PTO."), 0o644))

	docs, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "Employees get 20 days PTO.", docs[0].Text)
	assert.Equal(t, path, docs[0].Metadata.Source)
	assert.Zero(t, docs[0].Metadata.Page)
}

func TestLoadUppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.MD")
	require.NoError(t, os.WriteFile(path, []byte("# Title"), 0o644))

	docs, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	docs, err := NewLoader().Load(context.Background(), "slides.pptx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Nil(t, docs)

	_, err = NewLoader().Load(context.Background(), "Makefile")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMissingPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pdf")

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrRead)
}

func TestLoadMalformedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadUnreadablePDF(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	path := filepath.Join(t.TempDir(), "locked.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o000))

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestLoadLatin1Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Caf\xe9 policy: no food at desks."), 0o644))

	docs, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrParse)
	assert.Nil(t, docs)
}

func TestLoadMultibyteTextReconstructs(t *testing.T) {
	text := "Café policy: no food at desks. 休暇は年20日。"
	path := filepath.Join(t.TempDir(), "cafe.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	docs, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	splitter, err := NewSplitter(10, 3)
	require.NoError(t, err)

	chunks := splitter.Split(docs)
	assert.Equal(t, text, Join(chunks, 3))
}

func TestLoaderWithParser(t *testing.T) {
	called := false
	csv := ParserFunc(func(ctx context.Context, path string) ([]Document, error) {
		called = true
		return []Document{{Text: "a,b", Metadata: Metadata{Source: path}}}, nil
	})

	l := NewLoader(WithParser("CSV", csv))
	assert.Contains(t, l.Formats(), ".csv")

	docs, err := l.Load(context.Background(), "table.csv")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "a,b", docs[0].Text)
}

func TestMetadataMap(t *testing.T) {
	md := Metadata{Source: "manual.pdf", Page: 3}

	m := md.Map()
	assert.Equal(t, "manual.pdf", m["source"])
	assert.Equal(t, "3", m["page"])
	assert.Equal(t, md, MetadataFromMap(m))

	assert.NotContains(t, Metadata{Source: "a.txt"}.Map(), "page")
}
