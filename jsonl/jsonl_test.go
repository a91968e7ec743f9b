package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/factgate/errors"
)

type row struct {
	B string  `json:"b"`
	A float64 `json:"a"`
}

func TestRead(t *testing.T) {
	in := "{\"a\":1,\"b\":\"x\"}\n\n   \nnot json\n{\"a\":2,\"b\":\"y\"}\n"
	rows, stats, err := Read[row](strings.NewReader(in), "test.jsonl", zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, ReadStats{Lines: 3, Records: 2, Malformed: 1}, stats)
	assert.Equal(t, "y", rows[1].B)
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := ReadFile[row](filepath.Join(t.TempDir(), "nope.jsonl"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Equal(t, errors.ExitValidation, errors.ExitCode(err))
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "struct fields sorted", in: row{B: "x", A: 0.82}, want: `{"a":0.82,"b":"x"}`},
		{name: "nested maps sorted", in: map[string]any{"z": map[string]any{"y": 1, "a": 2}, "a": nil}, want: `{"a":null,"z":{"a":2,"y":1}}`},
		{name: "no html escaping", in: map[string]string{"t": "<a&b>"}, want: `{"t":"<a&b>"}`},
		{name: "unicode kept", in: map[string]string{"t": "Zoë"}, want: `{"t":"Zoë"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWriteSortedIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "sub", "b.jsonl")

	rows := []row{{B: "y", A: 2}, {B: "x", A: 1}, {B: "x", A: 3}}
	n, err := WriteSorted(a, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	reversed := []row{rows[2], rows[1], rows[0]}
	_, err = WriteSorted(b, reversed)
	require.NoError(t, err)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, "{\"a\":1,\"b\":\"x\"}\n{\"a\":2,\"b\":\"y\"}\n{\"a\":3,\"b\":\"x\"}\n", string(da))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestWriteSortedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	n, err := WriteSorted[row](path, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_reports", "r.json")
	require.NoError(t, WriteJSON(path, map[string]any{"b": 1, "a": map[string]int{"x": 2}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": {\n    \"x\": 2\n  },\n  \"b\": 1\n}\n", string(data))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"d2.entities.jsonl", "nested/d1.entities.jsonl", "d1.rels.jsonl"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}\n"), 0o644))
	}

	files, err := Discover(dir, "**/*.entities.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "d2.entities.jsonl"),
		filepath.Join(dir, "nested", "d1.entities.jsonl"),
	}, files)

	_, err = Discover(filepath.Join(dir, "missing"), "*.jsonl")
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = Discover(dir, "[")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "doc1", BaseName("er/doc1.entities.jsonl", ".entities.jsonl"))
	assert.Equal(t, "x.jsonl", BaseName("x.jsonl", ".entities.jsonl"))
}
