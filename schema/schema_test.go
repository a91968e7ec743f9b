package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/mention"
)

const contractYAML = `
schema_version: "1.2.0"
entities:
  dbo_Technology:
    required: [uri, name]
    key: [uri]
  kb_TRL:
    key: [value]
    constraints:
      value_range: [1, 9]
  kb_Budget:
    key: [amount]
    constraints:
      expr: 'key.amount > 0 && "Budget" in labels && etype == "kb_Budget"'
relations:
  STARTS_AT_TRL:
    domain: [Technology]
    range: [TRL]
  FUNDED_BY:
    domain: ["*"]
    constraint: 'obj.key.amount >= 1000 && props.currency == "USD"'
  MENTIONS:
promotion_defaults:
  conf_thr: 0.6
`

func mustParse(t *testing.T, doc string) *Schema {
	t.Helper()
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestParse(t *testing.T) {
	s := mustParse(t, contractYAML)

	assert.Equal(t, "1.2.0", s.Version)
	assert.Equal(t, Thresholds{ConfThr: 0.6, MinEvidence: DefaultMinEvidence}, s.Defaults)
	assert.Len(t, s.Entities, 3)
	assert.Len(t, s.Relations, 2)

	_, ok := s.Relation("MENTIONS")
	assert.False(t, ok, "a predicate declared without a body is not allowed")

	_, ok = s.Relation("BOGUS")
	assert.False(t, ok)

	trl, ok := s.Entity("KB_TRL")
	require.True(t, ok, "types match case-insensitively")
	assert.Equal(t, &[2]float64{1, 9}, trl.ValueRange)
}

func TestRelationWithoutBody(t *testing.T) {
	s := mustParse(t, "relations:\n  A: {}\n  B: null\n  C:\n  D:\n    check_subject_constraints: true\n")
	for _, pred := range []string{"A", "B", "C"} {
		_, ok := s.Relation(pred)
		assert.False(t, ok, pred)
	}
	d, ok := s.Relation("D")
	require.True(t, ok)
	assert.True(t, d.CheckSubjectConstraints)
}

func TestParseJSONAndDefaults(t *testing.T) {
	s := mustParse(t, `{"entities": {"ORG": {"key": ["name"]}}, "promotion": {"conf_thr": 0.8, "min_evidence": 3}}`)
	assert.Equal(t, DefaultVersion, s.Version)
	assert.Equal(t, Thresholds{ConfThr: 0.8, MinEvidence: 3}, s.Defaults)

	s = mustParse(t, `schema_version: 1.0`)
	assert.Equal(t, "1", s.Version)
	assert.Equal(t, Thresholds{ConfThr: DefaultConfThr, MinEvidence: DefaultMinEvidence}, s.Defaults)

	conf, minEv := 0.9, 0
	assert.Equal(t, Thresholds{ConfThr: 0.9, MinEvidence: 2}, s.Thresholds(&conf, nil))
	assert.Equal(t, Thresholds{ConfThr: 0.7, MinEvidence: 0}, s.Thresholds(nil, &minEv))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "entities: [unclosed"},
		{"bad version", `schema_version: "banana"`},
		{"unsupported version", `schema_version: "2.0.0"`},
		{"bad threshold", "promotion:\n  conf_thr: 1.5"},
		{"negative evidence", "promotion:\n  min_evidence: -1"},
		{"short range", "entities:\n  T:\n    constraints:\n      value_range: [1]"},
		{"inverted range", "entities:\n  T:\n    constraints:\n      value_range: [9, 1]"},
		{"bad expression", "entities:\n  T:\n    constraints:\n      expr: 'key.value >'"},
		{"non-bool expression", "entities:\n  T:\n    constraints:\n      expr: 'key.value'"},
		{"unknown variable", "relations:\n  P:\n    constraint: 'subject.key.value > 1'"},
		{"case collision", "entities:\n  org: {}\n  ORG: {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err), "got %v", err)
			assert.Equal(t, errors.ExitValidation, errors.ExitCode(err))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contractYAML), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", s.Version)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, errors.FlattenHints(err), "--schema")
}

func TestEntityChecks(t *testing.T) {
	s := mustParse(t, contractYAML)

	tech := &mention.Linked{
		Type: "dbo_Technology",
		Key:  map[string]any{"uri": "http://ex/tech/railgun"},
	}
	assert.Empty(t, s.MissingMergeKeys(tech))
	assert.False(t, s.KeysPresent(tech), "required name is neither in key nor props")
	tech.Props = map[string]any{"name": "Railgun"}
	assert.True(t, s.KeysPresent(tech))
	assert.True(t, s.ConstraintsOK(tech))

	blank := &mention.Linked{Type: "dbo_Technology", Key: map[string]any{"uri": ""}, Props: map[string]any{"name": "x"}}
	assert.Equal(t, []string{"uri"}, s.MissingMergeKeys(blank))
	assert.True(t, s.KeysPresent(blank), "presence only, empty values count")

	unknown := &mention.Linked{Type: "kb_Unknown"}
	assert.Nil(t, s.MissingMergeKeys(unknown))
	assert.False(t, s.KeysPresent(unknown))
	assert.False(t, s.ConstraintsOK(unknown))

	for _, tt := range []struct {
		value any
		ok    bool
	}{
		{8.0, true},
		{1, true},
		{9.0, true},
		{"8", true},
		{11.0, false},
		{0.5, false},
		{"eight", false},
		{nil, false},
	} {
		trl := &mention.Linked{Type: "kb_TRL", Key: map[string]any{"value": tt.value}}
		assert.Equal(t, tt.ok, s.ConstraintsOK(trl), "value %v", tt.value)
	}
	assert.False(t, s.ConstraintsOK(&mention.Linked{Type: "kb_TRL"}))
}

func TestEntityExpression(t *testing.T) {
	s := mustParse(t, contractYAML)

	ok := &mention.Linked{Type: "kb_Budget", Labels: []string{"Budget"}, Key: map[string]any{"amount": 2500.0}}
	assert.True(t, s.ConstraintsOK(ok))

	zero := &mention.Linked{Type: "kb_Budget", Labels: []string{"Budget"}, Key: map[string]any{"amount": 0.0}}
	assert.False(t, s.ConstraintsOK(zero))

	noKey := &mention.Linked{Type: "kb_Budget", Labels: []string{"Budget"}}
	assert.False(t, s.ConstraintsOK(noKey), "evaluation errors fail the constraint")
}

func TestAllows(t *testing.T) {
	tests := []struct {
		name      string
		rule      RelationRule
		subj, obj []string
		want      bool
	}{
		{"overlap", RelationRule{Domain: []string{"Technology"}, Range: []string{"TRL"}}, []string{"kb_Technology", "Technology"}, []string{"TRL"}, true},
		{"no overlap", RelationRule{Domain: []string{"Technology"}, Range: []string{"TRL"}}, []string{"Project"}, []string{"TRL"}, false},
		{"range mismatch", RelationRule{Domain: []string{"Technology"}, Range: []string{"TRL"}}, []string{"Technology"}, []string{"Capability"}, false},
		{"wildcard", RelationRule{Domain: []string{"*"}, Range: []string{"*"}}, nil, nil, true},
		{"empty means any", RelationRule{}, []string{"x"}, nil, true},
		{"no labels", RelationRule{Domain: []string{"Technology"}}, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Allows(tt.subj, tt.obj))
		})
	}
}

func TestPredicateConstraints(t *testing.T) {
	s := mustParse(t, contractYAML)
	tech := &mention.Linked{CanonicalID: "tech:railgun", Type: "dbo_Technology", Labels: []string{"Technology"}}
	trl11 := &mention.Linked{CanonicalID: "trl:11", Type: "kb_TRL", Labels: []string{"TRL"}, Key: map[string]any{"value": 11.0}}
	trl8 := &mention.Linked{CanonicalID: "trl:8", Type: "kb_TRL", Labels: []string{"TRL"}, Key: map[string]any{"value": 8.0}}

	starts, _ := s.Relation("STARTS_AT_TRL")
	assert.True(t, s.PredicateConstraintsOK(starts, tech, trl8, nil))
	assert.False(t, s.PredicateConstraintsOK(starts, tech, trl11, nil))

	off := false
	relaxed := *starts
	relaxed.CheckObjectConstraints = &off
	assert.True(t, s.PredicateConstraintsOK(&relaxed, tech, trl11, nil))

	mentions := &RelationRule{Predicate: "MENTIONS"}
	assert.True(t, s.PredicateConstraintsOK(mentions, tech, trl11, nil), "non-TRL predicates skip object constraints")

	strict := RelationRule{Predicate: "USES", CheckSubjectConstraints: true}
	assert.True(t, s.PredicateConstraintsOK(&strict, trl8, tech, nil))
	assert.False(t, s.PredicateConstraintsOK(&strict, trl11, tech, nil))

	funded, _ := s.Relation("FUNDED_BY")
	sponsor := &mention.Linked{CanonicalID: "org:navy", Type: "kb_Budget", Key: map[string]any{"amount": 5000.0}}
	assert.True(t, s.PredicateConstraintsOK(funded, tech, sponsor, map[string]any{"currency": "USD"}))
	assert.False(t, s.PredicateConstraintsOK(funded, tech, sponsor, map[string]any{"currency": "EUR"}))
	assert.False(t, s.PredicateConstraintsOK(funded, tech, sponsor, nil))
}

func TestIsTRL(t *testing.T) {
	assert.True(t, IsTRL(&mention.Linked{Type: "kb_TRL"}))
	assert.True(t, IsTRL(&mention.Linked{Type: "Level", Labels: []string{"TRL"}}))
	assert.False(t, IsTRL(&mention.Linked{Type: "kb_Technology", Labels: []string{"Technology"}}))
}
