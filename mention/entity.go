// Package mention defines the typed records that flow between pipeline
// stages: entity mentions, relation mentions and linked canonical rows.
//
// Records are decoded from loosely typed JSON at the read boundary. Fields
// this package does not know about are carried along untouched, and fields
// that were present on input are never rewritten; stages may only add.
package mention

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teranos/factgate/errors"
)

// Coref fields written by the coreference stage.
const (
	RuleUnresolved          = "unresolved"
	RuleNearestCompatible   = "nearest_compatible"
	RulePreferDeviceOverOrg = "prefer_device_over_org"
)

// Coref is the annotation the coreference stage adds to every mention.
type Coref struct {
	IsPronoun           bool
	PronounForm         string // "" for non-pronouns
	Number              string
	Gender              string
	AntecedentMentionID string // "" when unresolved
	Rule                string
	Conf                float64
}

// Entity is one observed entity mention.
type Entity struct {
	MentionID        string
	DocID            string
	ChunkID          string
	SentID           SentID
	Text             string
	Type             string
	Start, End       int
	HasSpan          bool
	Confidence       float64
	HasConfidence    bool
	CanonicalID      string
	EntityID         string
	ResolvedEntityID string

	// Upstream hints, honoured by coref when present.
	IsPronoun   *bool
	PronounForm string
	Number      string
	Gender      string

	Labels []string
	Key    map[string]any
	Props  map[string]any

	// Coref is set by the coreference stage and always written.
	Coref *Coref

	raw map[string]json.RawMessage
}

// entityKeys lists every key Entity reads, including aliases.
var entityKeys = map[string][]string{
	"mention_id":         nil,
	"doc_id":             nil,
	"chunk_id":           nil,
	"sent_id":            nil,
	"text":               {"surface"},
	"type":               {"label"},
	"start":              nil,
	"end":                nil,
	"confidence":         {"conf"},
	"canonical_id":       nil,
	"entity_id":          nil,
	"resolved_entity_id": nil,
	"labels":             nil,
	"key":                nil,
	"props":              nil,
}

// errNullRecord rejects a JSON null where a mention object is expected.
var errNullRecord = errors.New("record is null, want an object")

// UnmarshalJSON decodes an entity mention, keeping the raw fields. Coref
// annotations written by an earlier stage are read back into Coref.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "entity mention")
	}
	if raw == nil {
		return errNullRecord
	}
	*e = Entity{raw: raw}
	r := rawFields(raw)

	e.DocID = r.str("doc_id")
	e.ChunkID = r.str("chunk_id")
	e.Text = r.str("text", "surface")
	e.Type = r.str("type", "label")
	e.CanonicalID = r.str("canonical_id")
	e.EntityID = r.str("entity_id")
	e.ResolvedEntityID = r.str("resolved_entity_id")
	e.PronounForm = r.str("pronoun_form")
	e.Number = r.str("number")
	e.Gender = r.str("gender")
	if v, ok := raw["is_pronoun"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			e.IsPronoun = &b
		}
	}
	if err := r.decode("sent_id", &e.SentID); err != nil {
		return errors.Wrap(err, "sent_id")
	}
	e.Start, e.End, e.HasSpan = r.span()
	e.Confidence, e.HasConfidence = r.float("confidence", "conf")
	if err := r.decode("labels", &e.Labels); err != nil {
		return errors.Wrap(err, "labels")
	}
	if err := r.decode("key", &e.Key); err != nil {
		return errors.Wrap(err, "key")
	}
	if err := r.decode("props", &e.Props); err != nil {
		return errors.Wrap(err, "props")
	}

	if _, ok := r.lookup("coref_rule"); ok {
		e.Coref = e.decodeCoref(r)
	}

	e.MentionID = r.str("mention_id")
	if e.MentionID == "" {
		e.MentionID = r.str("id")
	}
	if e.MentionID == "" {
		e.MentionID = e.DerivedID()
	}
	return nil
}

func (e *Entity) decodeCoref(r rawFields) *Coref {
	c := &Coref{
		PronounForm:         e.PronounForm,
		Number:              e.Number,
		Gender:              e.Gender,
		AntecedentMentionID: r.str("antecedent_mention_id"),
		Rule:                r.str("coref_rule"),
	}
	if e.IsPronoun != nil {
		c.IsPronoun = *e.IsPronoun
	}
	c.Conf, _ = r.float("coref_conf")
	return c
}

// DerivedID computes the stable mention id from document position and text.
func (e *Entity) DerivedID() string {
	loc := e.ChunkID
	if loc == "" {
		loc = e.SentID.Key()
	}
	return DeriveMentionID(e.DocID, loc, e.Start, e.End, e.Text)
}

// DeriveMentionID is the first 16 hex chars of sha1("doc|loc|start|end|text").
func DeriveMentionID(docID, loc string, start, end int, text string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d|%d|%s", docID, loc, start, end, text)))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizedText is the trimmed, lowercased surface text.
func (e *Entity) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(e.Text))
}

// BestKey is the identity a mention groups under: an upstream resolution if
// any, else the entity id, else the normalised surface text.
func (e *Entity) BestKey() string {
	switch {
	case e.ResolvedEntityID != "":
		return e.ResolvedEntityID
	case e.EntityID != "":
		return e.EntityID
	default:
		return e.NormalizedText()
	}
}

// MarshalJSON writes input fields verbatim and adds the ones that were not
// there on input.
func (e Entity) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(e.raw, entityKeys)

	w.add("mention_id", e.MentionID, e.MentionID != "")
	w.add("doc_id", e.DocID, e.DocID != "")
	w.add("chunk_id", e.ChunkID, e.ChunkID != "")
	w.add("sent_id", e.SentID, e.SentID.Present())
	w.add("text", e.Text, e.Text != "")
	w.add("type", e.Type, e.Type != "")
	w.add("start", e.Start, e.HasSpan && !w.had("span"))
	w.add("end", e.End, e.HasSpan && !w.had("span"))
	w.add("confidence", e.Confidence, e.HasConfidence)
	w.add("canonical_id", e.CanonicalID, e.CanonicalID != "")
	w.add("entity_id", e.EntityID, e.EntityID != "")
	w.add("resolved_entity_id", e.ResolvedEntityID, e.ResolvedEntityID != "")
	w.add("labels", e.Labels, e.Labels != nil)
	w.add("key", e.Key, e.Key != nil)
	w.add("props", e.Props, e.Props != nil)

	if c := e.Coref; c != nil {
		w.set("is_pronoun", c.IsPronoun)
		w.set("pronoun_form", nullable(c.PronounForm))
		w.set("number", c.Number)
		w.set("gender", c.Gender)
		w.set("antecedent_mention_id", nullable(c.AntecedentMentionID))
		w.set("coref_rule", c.Rule)
		w.set("coref_conf", c.Conf)
		if e.ResolvedEntityID == "" {
			if _, ok := w.out["resolved_entity_id"]; !ok {
				w.set("resolved_entity_id", nil)
			}
		}
	}
	return json.Marshal(w.out)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
