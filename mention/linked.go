package mention

import (
	"sort"
)

// ExternalRef is an external identifier attached to a canonical entity.
type ExternalRef struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Linked is one row of linked.entities.jsonl: a canonical entity as seen in
// one document group.
type Linked struct {
	DocID       string         `json:"doc_id,omitempty"`
	CanonicalID string         `json:"canonical_id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Labels      []string       `json:"labels,omitempty"`
	Key         map[string]any `json:"key,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	MentionIDs  []string       `json:"mention_ids"`
	ExternalIDs []ExternalRef  `json:"external_ids"`
}

// SortExternalRefs orders refs by (source, id).
func SortExternalRefs(refs []ExternalRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Source != refs[j].Source {
			return refs[i].Source < refs[j].Source
		}
		return refs[i].ID < refs[j].ID
	})
}

// Table indexes linked rows by canonical id.
type Table map[string]*Linked

// NewTable merges rows sharing a canonical id: the first row wins for scalar
// fields, labels are unioned, and key/props only gain absent fields.
func NewTable(rows []Linked) Table {
	t := make(Table, len(rows))
	for i := range rows {
		t.Add(rows[i])
	}
	return t
}

// Add merges row into the table. Rows without a canonical id are ignored.
func (t Table) Add(row Linked) {
	if row.CanonicalID == "" {
		return
	}
	cur, ok := t[row.CanonicalID]
	if !ok {
		c := row
		c.Labels = unionLabels(nil, row.Labels)
		c.Key = mergeMissing(nil, row.Key)
		c.Props = mergeMissing(nil, row.Props)
		t[row.CanonicalID] = &c
		return
	}
	cur.Labels = unionLabels(cur.Labels, row.Labels)
	cur.Key = mergeMissing(cur.Key, row.Key)
	cur.Props = mergeMissing(cur.Props, row.Props)
}

func unionLabels(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeMissing(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
