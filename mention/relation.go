package mention

import (
	"encoding/json"

	"github.com/teranos/factgate/errors"
)

// Relation is one observed relation mention between two canonical entities.
type Relation struct {
	MentionID       string
	Predicate       string
	SubjCanonicalID string
	ObjCanonicalID  string
	SubjLabels      []string
	ObjLabels       []string
	DocID           string
	SentID          SentID
	Span            json.RawMessage
	Confidence      float64
	Props           map[string]any

	raw map[string]json.RawMessage
}

var relationKeys = map[string][]string{
	"mention_id":        nil,
	"predicate":         nil,
	"subj_canonical_id": nil,
	"obj_canonical_id":  nil,
	"subj_labels":       nil,
	"obj_labels":        nil,
	"doc_id":            nil,
	"sent_id":           nil,
	"span":              nil,
	"confidence":        {"conf"},
	"props":             nil,
}

// GroupKey is the (subject, predicate, object) triple relations aggregate on.
type GroupKey struct {
	Subj      string
	Predicate string
	Obj       string
}

// Complete reports whether all three parts are non-empty.
func (k GroupKey) Complete() bool {
	return k.Subj != "" && k.Predicate != "" && k.Obj != ""
}

// Less orders keys by subject, predicate, then object.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Subj != o.Subj {
		return k.Subj < o.Subj
	}
	if k.Predicate != o.Predicate {
		return k.Predicate < o.Predicate
	}
	return k.Obj < o.Obj
}

// String renders the key as subj|predicate|obj.
func (k GroupKey) String() string {
	return k.Subj + "|" + k.Predicate + "|" + k.Obj
}

// Key returns the group key of the relation.
func (r *Relation) Key() GroupKey {
	return GroupKey{Subj: r.SubjCanonicalID, Predicate: r.Predicate, Obj: r.ObjCanonicalID}
}

// UnmarshalJSON decodes a relation mention, keeping the raw fields.
func (r *Relation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "relation mention")
	}
	if raw == nil {
		return errNullRecord
	}
	*r = Relation{raw: raw}
	f := rawFields(raw)

	r.MentionID = f.str("mention_id")
	r.Predicate = f.str("predicate")
	r.SubjCanonicalID = f.str("subj_canonical_id")
	r.ObjCanonicalID = f.str("obj_canonical_id")
	r.DocID = f.str("doc_id")
	r.Confidence, _ = f.float("confidence", "conf")
	if v, ok := f.lookup("span"); ok {
		r.Span = v
	}
	if err := f.decode("sent_id", &r.SentID); err != nil {
		return errors.Wrap(err, "sent_id")
	}
	if err := f.decode("subj_labels", &r.SubjLabels); err != nil {
		return errors.Wrap(err, "subj_labels")
	}
	if err := f.decode("obj_labels", &r.ObjLabels); err != nil {
		return errors.Wrap(err, "obj_labels")
	}
	if err := f.decode("props", &r.Props); err != nil {
		return errors.Wrap(err, "props")
	}
	return nil
}

// MarshalJSON writes input fields verbatim and adds the ones that were not
// there on input.
func (r Relation) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(r.raw, relationKeys)
	w.add("mention_id", r.MentionID, r.MentionID != "")
	w.add("predicate", r.Predicate, r.Predicate != "")
	w.add("subj_canonical_id", r.SubjCanonicalID, r.SubjCanonicalID != "")
	w.add("obj_canonical_id", r.ObjCanonicalID, r.ObjCanonicalID != "")
	w.add("subj_labels", r.SubjLabels, r.SubjLabels != nil)
	w.add("obj_labels", r.ObjLabels, r.ObjLabels != nil)
	w.add("doc_id", r.DocID, r.DocID != "")
	w.add("sent_id", r.SentID, r.SentID.Present())
	w.add("span", r.Span, len(r.Span) > 0)
	w.add("confidence", r.Confidence, r.raw == nil)
	w.add("props", r.Props, r.Props != nil)
	return json.Marshal(w.out)
}
