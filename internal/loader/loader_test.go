package loader

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() *Loader {
	return New(nil, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDecode_JSONObjectAndArray(t *testing.T) {
	recs, err := Decode(strings.NewReader(`{"id":"a"}`), "json", "a.json")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Raw["id"])
	assert.Equal(t, "a.json", recs[0].Source)

	recs, err = Decode(strings.NewReader(`[{"id":"a"},{"id":"b"}]`), "json", "many.json")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[1].Index)
	assert.Equal(t, "b", recs[1].Raw["id"])

	recs, err = Decode(strings.NewReader("  \n"), "json", "empty.json")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = Decode(strings.NewReader(`"just a string"`), "json", "bad.json")
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`[[{"id":"a"}]]`), "json", "nested.json")
	assert.Error(t, err)
}

func TestDecode_JSONL(t *testing.T) {
	recs, err := Decode(strings.NewReader("{\"id\":\"a\"}\n\n{\"id\":\"b\"}\n"), "jsonl", "x.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].Raw["id"])

	_, err = Decode(strings.NewReader("{\"id\":\"a\"}\nnot json\n"), "jsonl", "x.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecode_YAMLMultiDocument(t *testing.T) {
	doc := `id: a
levels:
  1: {level: 1, summary: s, explanation: e}
---
- id: b
- id: c
---
`
	recs, err := Decode(strings.NewReader(doc), "yaml", "x.yaml")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].Raw["id"])
	assert.Equal(t, "c", recs[2].Raw["id"])
	assert.Equal(t, 2, recs[2].Index)

	levels, ok := recs[0].Raw["levels"].(map[any]any)
	require.True(t, ok, "integer-keyed YAML mappings keep interface keys")
	assert.Contains(t, levels, 1)
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode(strings.NewReader(""), "xml", "x.xml")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "json", FormatOf("a.json"))
	assert.Equal(t, "jsonl", FormatOf("a.JSONL"))
	assert.Equal(t, "yaml", FormatOf("a.yml"))
	assert.Equal(t, "json", FormatOf("README"))
}

func TestLoader_FilesWalksAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{}`)
	writeFile(t, dir, "sub/a.yaml", `id: x`)
	writeFile(t, dir, "notes.txt", `ignore me`)
	writeFile(t, dir, ".git/config.json", `{}`)

	l := testLoader()
	files, err := l.Files([]string{dir, filepath.Join(dir, "b.json")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "sub", "a.yaml"),
	}, files)

	_, err = l.Files([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestLoader_LoadCollectsFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.json", `[{"id":"a"},{"id":"b"}]`)
	writeFile(t, dir, "2.jsonl", "{\"id\":\"c\"}\n")
	writeFile(t, dir, "3.yaml", "id: d\n")
	writeFile(t, dir, "4.json", `{broken`)

	res, err := testLoader().Load(context.Background(), []string{dir})
	require.NoError(t, err)

	var ids []string
	for _, r := range res.Records {
		ids = append(ids, r.Raw["id"].(string))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "4.json"), res.Errors[0].Path)
}

func TestLoader_LoadCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.json", `{"id":"a"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testLoader().Load(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_NormalisesExtensions(t *testing.T) {
	l := New([]string{"JSON", " .yml "}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, l.Accepts("x.json"))
	assert.True(t, l.Accepts("x.YML"))
	assert.False(t, l.Accepts("x.yaml"))
	assert.Equal(t, 4, l.workers)
}
