package quarantine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/promote"
)

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, promote.EntitiesFile),
		`{"kind":"entity","canonical_id":"req:bad","reasons":["missing_entity_keys","missing_keys:id,name"]}`,
		`{"kind":"entity","canonical_id":"trl:11","reasons":["type_constraint_failed"]}`,
		`{"kind":"entity","canonical_id":"req:worse","reasons":["missing_keys:id"]}`,
	)
	writeFile(t, filepath.Join(dir, promote.RelationsFile),
		`{"kind":"relation","group_key":["tech:a","STARTS_AT_TRL","trl:11"],"predicate":"STARTS_AT_TRL","reasons":["below_threshold","type_constraint_failed"]}`,
		`{"kind":"relation","group_key":["tech:a","BOGUS","trl:8"],"predicate":"BOGUS","reasons":["predicate_not_allowed"]}`,
		`{"kind":"relation","group_key":["tech:b","STARTS_AT_TRL","trl:8"],"predicate":"STARTS_AT_TRL","reasons":["below_threshold"]}`,
	)
	return dir
}

func TestSummarize(t *testing.T) {
	s := New(zaptest.NewLogger(t).Sugar())
	sum, err := s.Summarize(context.Background(), fixture(t))
	require.NoError(t, err)

	assert.Equal(t, Totals{All: 6, Entities: 3, Relations: 3}, sum.Totals)
	assert.Equal(t, []promote.Tally{
		{Name: "below_threshold", Count: 2},
		{Name: "type_constraint_failed", Count: 2},
		{Name: "missing_entity_keys", Count: 1},
		{Name: "missing_keys:id", Count: 1},
		{Name: "missing_keys:id,name", Count: 1},
		{Name: "predicate_not_allowed", Count: 1},
	}, sum.Reasons)
	assert.Equal(t, []promote.Tally{
		{Name: "STARTS_AT_TRL", Count: 2},
		{Name: "BOGUS", Count: 1},
	}, sum.Predicates)
	assert.Equal(t, []promote.Tally{
		{Name: "id", Count: 2},
		{Name: "name", Count: 1},
	}, sum.MissingKeys)
	assert.Equal(t, []string{"entity:trl:11", "rel:tech:a|STARTS_AT_TRL|trl:11"}, sum.Examples["type_constraint_failed"])
	assert.Equal(t, []string{"rel:tech:a|STARTS_AT_TRL|trl:11", "rel:tech:b|STARTS_AT_TRL|trl:8"}, sum.Examples["below_threshold"])
}

func TestExamplesAreBounded(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 100)
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, `{"canonical_id":"`+long+`","reasons":["type_constraint_failed"]}`)
	}
	writeFile(t, filepath.Join(dir, promote.EntitiesFile), lines...)

	sum, err := New(nil).Summarize(context.Background(), dir)
	require.NoError(t, err)
	ex := sum.Examples["type_constraint_failed"]
	require.Len(t, ex, MaxExamples)
	for _, e := range ex {
		assert.Equal(t, ExampleWidth, len([]rune(e)))
		assert.True(t, strings.HasSuffix(e, "…"))
	}
	assert.Equal(t, Totals{All: 8, Entities: 8}, sum.Totals)
}

func TestSummarizeEmptyDirectory(t *testing.T) {
	sum, err := New(nil).Summarize(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, sum.Totals.All)

	md := sum.Markdown()
	assert.Contains(t, md, "- Total quarantined: **0** (entities=0, relations=0)")
	assert.Equal(t, 3, strings.Count(md, "- *(none)*"))
}

func TestSummarizeMissingDirectory(t *testing.T) {
	_, err := New(nil).Summarize(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, errors.ExitValidation, errors.ExitCode(err))
}

func TestWrite(t *testing.T) {
	s := New(nil)
	sum, err := s.Summarize(context.Background(), fixture(t))
	require.NoError(t, err)

	out := t.TempDir()
	mdPath := filepath.Join(out, "_reports", "quarantine_summary.md")
	jsonPath := filepath.Join(out, "_reports", "quarantine_summary.json")
	require.NoError(t, s.Write(sum, mdPath, jsonPath))

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	for _, heading := range []string{
		"# Quarantine Summary",
		"## Top Reasons",
		"## Relations by Predicate",
		"## Missing Merge Keys (Entities)",
	} {
		assert.Contains(t, string(md), heading)
	}
	assert.Contains(t, string(md), "- `STARTS_AT_TRL`: 2")
	assert.Contains(t, string(md), "- **below_threshold**: 2")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"all": 6.0, "entities": 3.0, "relations": 3.0}, got["totals"])
	assert.Equal(t, []any{[]any{"STARTS_AT_TRL", 2.0}, []any{"BOGUS", 1.0}}, got["predicates"])
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 3))
	assert.Equal(t, "ab…", shorten("abcd", 3))
	assert.Equal(t, "äö…", shorten("äöüß", 3))
}
