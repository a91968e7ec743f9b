// Package schema loads the declarative promotion contract: per entity type
// the required and merge-key fields plus value constraints, per predicate the
// allowed domain and range labels, and the default promotion thresholds.
//
// Documents may be YAML or JSON.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/teranos/factgate/errors"
)

const (
	DefaultVersion     = "1.0.0"
	DefaultConfThr     = 0.7
	DefaultMinEvidence = 2

	// SupportedVersions is the semver constraint schema_version must satisfy.
	SupportedVersions = ">= 0.1.0, < 2.0.0"
)

// Thresholds are the evidence gate parameters.
type Thresholds struct {
	ConfThr     float64
	MinEvidence int
}

// EntityRule is the contract for one entity type.
type EntityRule struct {
	Type     string
	Required []string
	Key      []string
	// ValueRange bounds key.value inclusively when set.
	ValueRange *[2]float64
	Expr       string

	prg cel.Program
}

// RelationRule is the contract for one predicate.
type RelationRule struct {
	Predicate string
	Domain    []string
	Range     []string
	// CheckObjectConstraints overrides the default of checking object
	// constraints only for TRL predicates with a TRL-typed object.
	CheckObjectConstraints  *bool
	CheckSubjectConstraints bool
	Constraint              string

	prg cel.Program
}

// Schema is a loaded and validated schema document.
type Schema struct {
	Version   string
	Entities  map[string]*EntityRule
	Relations map[string]*RelationRule
	Defaults  Thresholds

	folded map[string]*EntityRule
}

type document struct {
	SchemaVersion     any                     `yaml:"schema_version"`
	Entities          map[string]*entityDoc   `yaml:"entities"`
	Relations         map[string]*relationDoc `yaml:"relations"`
	Promotion         *thresholdDoc           `yaml:"promotion"`
	PromotionDefaults *thresholdDoc           `yaml:"promotion_defaults"`
}

type entityDoc struct {
	Required    []string `yaml:"required"`
	Key         []string `yaml:"key"`
	Constraints struct {
		ValueRange []float64 `yaml:"value_range"`
		Expr       string    `yaml:"expr"`
	} `yaml:"constraints"`
}

type relationDoc struct {
	Domain                  []string `yaml:"domain"`
	Range                   []string `yaml:"range"`
	CheckObjectConstraints  *bool    `yaml:"check_object_constraints"`
	CheckSubjectConstraints bool     `yaml:"check_subject_constraints"`
	Constraint              string   `yaml:"constraint"`
}

func (d *relationDoc) empty() bool {
	return d == nil || (d.Domain == nil && d.Range == nil &&
		d.CheckObjectConstraints == nil && !d.CheckSubjectConstraints && d.Constraint == "")
}

type thresholdDoc struct {
	ConfThr     *float64 `yaml:"conf_thr"`
	MinEvidence *int     `yaml:"min_evidence"`
}

func (t *thresholdDoc) empty() bool {
	return t == nil || (t.ConfThr == nil && t.MinEvidence == nil)
}

// Load reads and validates the schema at path. An unreadable or invalid
// schema is an invalid-request error.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("schema %s does not exist", path),
				"pass --schema or set promote.schema in factgate.toml")
		}
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s", path)
	}
	return s, nil
}

// Parse decodes and validates a YAML or JSON schema document.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalidRequest(err, "parse schema")
	}

	s := &Schema{
		Version:   versionString(doc.SchemaVersion),
		Entities:  make(map[string]*EntityRule, len(doc.Entities)),
		Relations: make(map[string]*RelationRule, len(doc.Relations)),
		Defaults:  Thresholds{ConfThr: DefaultConfThr, MinEvidence: DefaultMinEvidence},
		folded:    make(map[string]*EntityRule, len(doc.Entities)),
	}
	if err := checkVersion(s.Version); err != nil {
		return nil, err
	}

	thr := doc.Promotion
	if thr.empty() {
		thr = doc.PromotionDefaults
	}
	if thr != nil {
		if thr.ConfThr != nil {
			s.Defaults.ConfThr = *thr.ConfThr
		}
		if thr.MinEvidence != nil {
			s.Defaults.MinEvidence = *thr.MinEvidence
		}
	}
	if err := s.Defaults.Validate(); err != nil {
		return nil, err
	}

	for _, typ := range sortedKeys(doc.Entities) {
		rule, err := newEntityRule(typ, doc.Entities[typ])
		if err != nil {
			return nil, err
		}
		s.Entities[typ] = rule
		up := strings.ToUpper(typ)
		if other, dup := s.folded[up]; dup {
			return nil, errors.NewInvalidRequestError("entity types %q and %q differ only by case", other.Type, typ)
		}
		s.folded[up] = rule
	}
	for _, pred := range sortedKeys(doc.Relations) {
		rule, err := newRelationRule(pred, doc.Relations[pred])
		if err != nil {
			return nil, err
		}
		if rule == nil {
			continue
		}
		s.Relations[pred] = rule
	}
	return s, nil
}

func versionString(v any) string {
	switch x := v.(type) {
	case nil:
		return DefaultVersion
	case string:
		if strings.TrimSpace(x) == "" {
			return DefaultVersion
		}
		return strings.TrimSpace(x)
	default:
		return fmt.Sprint(x)
	}
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.WrapInvalidRequest(err, "schema_version "+version)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Wrap(err, "supported schema versions")
	}
	if !constraint.Check(v) {
		return errors.NewInvalidRequestError("schema_version %s is not supported (want %s)", version, SupportedVersions)
	}
	return nil
}

// Validate checks that thresholds are in range.
func (t Thresholds) Validate() error {
	if t.ConfThr < 0 || t.ConfThr > 1 {
		return errors.NewInvalidRequestError("conf_thr must be within [0, 1], got %v", t.ConfThr)
	}
	if t.MinEvidence < 0 {
		return errors.NewInvalidRequestError("min_evidence must not be negative, got %d", t.MinEvidence)
	}
	return nil
}

func newEntityRule(typ string, d *entityDoc) (*EntityRule, error) {
	rule := &EntityRule{Type: typ}
	if d == nil {
		return rule, nil
	}
	rule.Required = d.Required
	rule.Key = d.Key
	rule.Expr = strings.TrimSpace(d.Constraints.Expr)

	if vr := d.Constraints.ValueRange; vr != nil {
		if len(vr) != 2 || vr[0] > vr[1] {
			return nil, errors.NewInvalidRequestError("entity %s: value_range must be [lo, hi] with lo <= hi", typ)
		}
		rule.ValueRange = &[2]float64{vr[0], vr[1]}
	}
	if rule.Expr != "" {
		prg, err := compileEntityExpr(rule.Expr)
		if err != nil {
			return nil, errors.WrapInvalidRequest(err, "entity "+typ+" constraint")
		}
		rule.prg = prg
	}
	return rule, nil
}

// newRelationRule builds the rule for pred. A predicate declared with an
// empty or null body yields no rule and so stays disallowed.
func newRelationRule(pred string, d *relationDoc) (*RelationRule, error) {
	if d.empty() {
		return nil, nil
	}
	rule := &RelationRule{Predicate: pred}
	rule.Domain = d.Domain
	rule.Range = d.Range
	rule.CheckObjectConstraints = d.CheckObjectConstraints
	rule.CheckSubjectConstraints = d.CheckSubjectConstraints
	rule.Constraint = strings.TrimSpace(d.Constraint)
	if rule.Constraint != "" {
		prg, err := compileRelationExpr(rule.Constraint)
		if err != nil {
			return nil, errors.WrapInvalidRequest(err, "relation "+pred+" constraint")
		}
		rule.prg = prg
	}
	return rule, nil
}

// Entity returns the rule for an entity type. An exact match is preferred;
// otherwise the type is matched case-insensitively, since the linker
// upper-cases types.
func (s *Schema) Entity(typ string) (*EntityRule, bool) {
	if r, ok := s.Entities[typ]; ok {
		return r, true
	}
	r, ok := s.folded[strings.ToUpper(typ)]
	return r, ok
}

// Relation returns the rule for a predicate.
func (s *Schema) Relation(pred string) (*RelationRule, bool) {
	r, ok := s.Relations[pred]
	return r, ok
}

// Thresholds returns the schema defaults overridden by any non-nil argument.
func (s *Schema) Thresholds(confThr *float64, minEvidence *int) Thresholds {
	t := s.Defaults
	if confThr != nil {
		t.ConfThr = *confThr
	}
	if minEvidence != nil {
		t.MinEvidence = *minEvidence
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
