package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/ldpatch/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()

	jsonPath := writeFile(t, dir, "doc.json", `{"name": "a", "count": 2}`)
	doc, err := readDocument(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a", "count": 2.0}, doc)

	yamlPath := writeFile(t, dir, "doc.yaml", "name: a\ncount: 2\ntags:\n  - x\n  - y\n")
	doc, err = readDocument(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":  "a",
		"count": 2.0,
		"tags":  []any{"x", "y"},
	}, doc)

	_, err = readDocument(writeFile(t, dir, "bad.json", "{"))
	assert.Error(t, err)

	_, err = readDocument(writeFile(t, dir, "bad.yml", "1: a\n"))
	assert.Error(t, err, "non-string mapping keys have no JSON form")

	_, err = readDocument(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReadDocumentStdin(t *testing.T) {
	orig := stdin
	t.Cleanup(func() { stdin = orig })
	stdin = strings.NewReader(`{"a": true}`)

	doc, err := readDocument(stdinPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": true}, doc)
}

func TestReadPatch(t *testing.T) {
	dir := t.TempDir()

	p, err := readPatch(writeFile(t, dir, "patch.yaml", "- op: replace\n  path: /name\n  value: b\n"))
	require.NoError(t, err)
	require.Len(t, p, 1)
	assert.Equal(t, patch.OpReplace, p[0].Op)
	assert.Equal(t, "/name", p[0].Path)
	assert.Equal(t, "b", p[0].Value)

	_, err = readPatch(writeFile(t, dir, "null.json", "null"))
	assert.Error(t, err)

	_, err = readPatch(writeFile(t, dir, "unknown.json", `[{"op": "merge", "path": "/a"}]`))
	assert.ErrorIs(t, err, patch.ErrUnknownOp)
}

func TestReadContext(t *testing.T) {
	dir := t.TempDir()

	ctx, err := readContext(writeFile(t, dir, "wrapped.json", `{"@context": {"@vocab": "http://schema.org/"}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"@vocab": "http://schema.org/"}, ctx)

	ctx, err = readContext(writeFile(t, dir, "bare.json", `{"name": "http://schema.org/name"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "http://schema.org/name"}, ctx)

	_, err = readContext(writeFile(t, dir, "list.json", `[]`))
	assert.Error(t, err)

	ctx, err = readContext("")
	require.NoError(t, err)
	assert.Nil(t, ctx)
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", "{}")
	b := writeFile(t, dir, "nested/deep/b.json", "{}")
	writeFile(t, dir, "nested/c.yaml", "{}")

	files, err := expandGlobs([]string{
		filepath.Join(dir, "**", "*.json"),
		filepath.Join(dir, "a.json"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	files, err = expandGlobs([]string{filepath.Join(dir, "none", "*.json")})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]any{"url": "http://a/?x=1&y=2"}))
	assert.Equal(t, "{\n  \"url\": \"http://a/?x=1&y=2\"\n}\n", buf.String())
}
