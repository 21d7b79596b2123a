package pathresolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func newResolver(t *testing.T) (*Resolver, string, string) {
	root := t.TempDir()
	extracted := filepath.Join(root, "extracted")
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(extracted, 0o755))
	require.NoError(t, os.MkdirAll(docs, 0o755))
	return &Resolver{
		ExtractedRoot:   extracted,
		DocsRoot:        docs,
		ExtractedMarker: "/data/extracted/",
		DocsMarker:      "/qafFilesManager/assets/dep/",
	}, extracted, docs
}

func TestResolveVerbatim(t *testing.T) {
	r, _, _ := newResolver(t)
	existing := filepath.Join(t.TempDir(), "a.pdf")
	touch(t, existing)

	got, ok := r.Resolve(existing)
	require.True(t, ok)
	assert.Equal(t, existing, got)
}

func TestResolveExtractedMarkerRewrite(t *testing.T) {
	r, extracted, _ := newResolver(t)
	want := filepath.Join(extracted, "images", "report", "image1.png")
	touch(t, want)

	got, ok := r.Resolve("/home/old/machine/data/extracted/images/report/image1.png")
	require.True(t, ok, "后缀存在于新的抽取目录时应解析成功")
	assert.Equal(t, want, got)
}

func TestResolveUsesLastMarkerOccurrence(t *testing.T) {
	r, extracted, _ := newResolver(t)
	want := filepath.Join(extracted, "b", "c.png")
	touch(t, want)

	got, ok := r.Resolve("/x/data/extracted/a/data/extracted/b/c.png")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestResolveDocsMarkerRewrite(t *testing.T) {
	r, _, docs := newResolver(t)
	want := filepath.Join(docs, "sub", "report.docx")
	touch(t, want)

	got, ok := r.Resolve(`C:\srv\qafFilesManager\assets\dep\sub\report.docx`)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestResolveBaseNameFallbackOrder(t *testing.T) {
	r, extracted, docs := newResolver(t)
	touch(t, filepath.Join(docs, "dup.pdf"))
	touch(t, filepath.Join(extracted, "dup.pdf"))

	got, ok := r.Resolve("/nowhere/else/dup.pdf")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(docs, "dup.pdf"), got, "文档目录优先")

	touch(t, filepath.Join(extracted, "only.png"))
	got, ok = r.Resolve("/nowhere/only.png")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(extracted, "only.png"), got)
}

func TestResolveNotFound(t *testing.T) {
	r, _, docs := newResolver(t)
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "dir.pdf"), 0o755))

	_, ok := r.Resolve("/missing/file.pdf")
	assert.False(t, ok)
	_, ok = r.Resolve("")
	assert.False(t, ok)
	_, ok = r.Resolve("/old/dir.pdf")
	assert.False(t, ok, "目录不是可用文件")
}

func TestResolveExtractedIgnoresDocsRoot(t *testing.T) {
	r, _, docs := newResolver(t)
	touch(t, filepath.Join(docs, "pic.png"))

	_, ok := r.ResolveExtracted("/old/pic.png")
	assert.False(t, ok)
	_, ok = r.Resolve("/old/pic.png")
	assert.True(t, ok)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "report", Stem("/a/b/report.docx"))
	assert.Equal(t, "report", Stem(`C:\a\report.pdf`))
	assert.Equal(t, "noext", Stem("noext"))
}
