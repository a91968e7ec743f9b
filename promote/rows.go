package promote

import (
	"encoding/json"

	"github.com/teranos/factgate/mention"
)

// Relation quarantine reasons.
const (
	ReasonBelowThreshold      = "below_threshold"
	ReasonPredicateNotAllowed = "predicate_not_allowed"
	ReasonMissingSubject      = "missing_subject"
	ReasonMissingObject       = "missing_object"
	ReasonDomainRangeMismatch = "domain_range_mismatch"
	ReasonTypeConstraint      = "type_constraint_failed"
	ReasonPredicateConstraint = "predicate_constraint_failed"
)

// Entity quarantine reasons. ReasonMissingObject is reused for ids absent
// from the linked table.
const (
	ReasonMissingEntityKeys = "missing_entity_keys"

	// MissingKeysPrefix starts "missing_keys:<fields>" for entities and
	// "missing_keys:subject:<fields>" / "missing_keys:object:<fields>" for
	// relations.
	MissingKeysPrefix = "missing_keys:"
)

// Quarantine row kinds.
const (
	KindEntity   = "entity"
	KindRelation = "relation"
)

// Sample is one contributing mention kept with a relation's evidence.
type Sample struct {
	DocID      string          `json:"doc_id"`
	SentID     mention.SentID  `json:"sent_id"`
	Span       json.RawMessage `json:"span"`
	Confidence float64         `json:"confidence"`
}

// Evidence is the aggregate support for a relation group.
type Evidence struct {
	AvgConfidence float64  `json:"avg_confidence"`
	EvCount       int      `json:"ev_count"`
	DocCount      int      `json:"doc_count"`
	Mentions      []Sample `json:"mentions"`
}

// Example points a reviewer at one supporting mention.
type Example struct {
	DocID  string         `json:"doc_id"`
	SentID mention.SentID `json:"sent_id"`
}

// Policy records the thresholds a decision was made under.
type Policy struct {
	ConfThr float64 `json:"conf_thr"`
	MinEv   int     `json:"min_ev"`
}

// Provenance ties a row to the schema version and, for entities, to the
// standalone mention evidence.
type Provenance struct {
	SchemaVersion string `json:"schema_version"`
	EvCount       *int   `json:"ev_count,omitempty"`
	DocCount      *int   `json:"doc_count,omitempty"`
}

// Ref names a relation endpoint.
type Ref struct {
	CanonicalID string `json:"canonical_id"`
}

// LabeledRef is a promoted relation endpoint with its labels.
type LabeledRef struct {
	CanonicalID string   `json:"canonical_id"`
	Labels      []string `json:"labels"`
}

// RelationFact is one row of facts.relations.jsonl.
type RelationFact struct {
	Subj       LabeledRef     `json:"subj"`
	Predicate  string         `json:"predicate"`
	Obj        LabeledRef     `json:"obj"`
	Props      map[string]any `json:"props"`
	Evidence   Evidence       `json:"evidence"`
	Policy     Policy         `json:"policy"`
	Provenance Provenance     `json:"provenance"`
}

// QuarantinedRelation is one row of quarantine/relations.jsonl.
type QuarantinedRelation struct {
	Kind       string     `json:"kind"`
	Subj       Ref        `json:"subj"`
	Predicate  string     `json:"predicate"`
	Obj        Ref        `json:"obj"`
	GroupKey   [3]string  `json:"group_key"`
	Evidence   Evidence   `json:"evidence"`
	Policy     Policy     `json:"policy"`
	Reasons    []string   `json:"reasons"`
	Examples   []Example  `json:"examples"`
	Provenance Provenance `json:"provenance"`
}

// EntityFact is one row of facts.entities.jsonl.
type EntityFact struct {
	CanonicalID string         `json:"canonical_id"`
	Type        string         `json:"type"`
	Labels      []string       `json:"labels"`
	Key         map[string]any `json:"key"`
	Props       map[string]any `json:"props"`
	Provenance  Provenance     `json:"provenance"`
}

// QuarantinedEntity is one row of quarantine/entities.jsonl.
type QuarantinedEntity struct {
	Kind        string     `json:"kind"`
	CanonicalID string     `json:"canonical_id"`
	Type        string     `json:"type,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Reasons     []string   `json:"reasons"`
	Examples    []Example  `json:"examples,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

// Counts tallies one promotion run.
type Counts struct {
	MentionsEntities     int `json:"mentions_entities"`
	MentionsRelations    int `json:"mentions_relations"`
	RelationGroups       int `json:"relation_groups"`
	PromotedRelations    int `json:"promoted_relations"`
	PromotedEntities     int `json:"promoted_entities"`
	QuarantinedRelations int `json:"quarantined_relations"`
	QuarantinedEntities  int `json:"quarantined_entities"`
}

// Report is written to _reports/run_report.json.
type Report struct {
	SchemaVersion   string  `json:"schema_version"`
	ConfThr         float64 `json:"conf_thr"`
	MinEv           int     `json:"min_ev"`
	Counts          Counts  `json:"counts"`
	DurationSeconds float64 `json:"duration_seconds"`
	Errors          int     `json:"errors"`
}
