// Package link consolidates entity mentions across documents into canonical
// identities held by the registry, and optionally attaches external ids
// from offline adapter caches.
package link

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/link/external"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/registry"
)

// Store is the subset of the registry the linker writes through.
type Store interface {
	GetOrCreateCanonical(ctx context.Context, typ, label, primaryName string) (string, error)
	AddAlias(ctx context.Context, canonicalID, alias string) error
	AddExternalID(ctx context.Context, canonicalID, source, externalID string) (bool, error)
}

var _ Store = (*registry.Registry)(nil)

// Linker assigns canonical ids to groups of mentions.
type Linker struct {
	store    Store
	adapters []external.Adapter
	logger   *zap.SugaredLogger
}

// New creates a linker. A nil logger is silent.
func New(store Store, adapters []external.Adapter, log *zap.SugaredLogger) *Linker {
	return &Linker{store: store, adapters: adapters, logger: logger.OrNop(log)}
}

type groupKey struct {
	typ string
	key string
}

type group struct {
	typ        string
	docID      string
	names      map[string]int
	pronouns   map[string]int
	mentionIDs []string
	labels     []string
	key        map[string]any
	props      map[string]any
}

func isPronoun(m *mention.Entity) bool {
	if m.Coref != nil {
		return m.Coref.IsPronoun
	}
	if m.IsPronoun != nil {
		return *m.IsPronoun
	}
	return false
}

// effectiveTypes returns the upper-cased type per mention. A pronoun whose
// antecedent is in ents takes the antecedent's type.
func effectiveTypes(ents []mention.Entity) []string {
	types := make([]string, len(ents))
	byID := make(map[string]int, len(ents))
	for i := range ents {
		m := &ents[i]
		types[i] = strings.ToUpper(strings.TrimSpace(m.Type))
		if isPronoun(m) {
			if ante := antecedentOf(m); ante != "" {
				if j, ok := byID[ante]; ok {
					types[i] = types[j]
				}
			}
		}
		if m.MentionID != "" {
			if _, dup := byID[m.MentionID]; !dup {
				byID[m.MentionID] = i
			}
		}
	}
	return types
}

func antecedentOf(m *mention.Entity) string {
	if m.Coref != nil {
		return m.Coref.AntecedentMentionID
	}
	return ""
}

// chooseName picks the most frequent surface, ties broken ascending.
func chooseName(counts map[string]int) string {
	best, bestN := "", -1
	for name, n := range counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}

// LinkGroup links the mentions of one document group (one input file) and
// returns one row per (type, key) group.
func (l *Linker) LinkGroup(ctx context.Context, ents []mention.Entity) ([]mention.Linked, error) {
	types := effectiveTypes(ents)

	groups := make(map[groupKey]*group)
	var order []groupKey
	for i := range ents {
		m := &ents[i]
		if types[i] == "" && strings.TrimSpace(m.Text) == "" {
			l.logger.Warnw("Skipping mention without type or text",
				logger.FieldDocID, m.DocID,
				logger.FieldMentionID, m.MentionID,
			)
			continue
		}
		text := m.Text
		if text == "" {
			text = m.Type
		}
		k := groupKey{typ: types[i], key: m.BestKey()}
		g, ok := groups[k]
		if !ok {
			g = &group{
				typ:      k.typ,
				docID:    m.DocID,
				names:    make(map[string]int),
				pronouns: make(map[string]int),
			}
			groups[k] = g
			order = append(order, k)
		}
		if isPronoun(m) {
			g.pronouns[text]++
		} else {
			g.names[text]++
		}
		if m.MentionID != "" {
			g.mentionIDs = append(g.mentionIDs, m.MentionID)
		}
		g.labels = appendNew(g.labels, m.Labels...)
		g.key = addMissing(g.key, m.Key)
		g.props = addMissing(g.props, m.Props)
	}

	rows := make([]mention.Linked, 0, len(order))
	for _, k := range order {
		row, err := l.linkOne(ctx, groups[k])
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (l *Linker) linkOne(ctx context.Context, g *group) (mention.Linked, error) {
	names := g.names
	if len(names) == 0 {
		names = g.pronouns
	}
	name := chooseName(names)

	id, err := l.store.GetOrCreateCanonical(ctx, g.typ, name, name)
	if err != nil {
		return mention.Linked{}, errors.Wrapf(err, "link %s %q", g.typ, name)
	}
	if err := l.store.AddAlias(ctx, id, name); err != nil {
		return mention.Linked{}, errors.Wrapf(err, "alias %s %q", g.typ, name)
	}

	refs := []mention.ExternalRef{}
	norm := registry.Normalize(name)
	for _, a := range l.adapters {
		if !a.Applies(g.typ) {
			continue
		}
		xid, ok := a.Lookup(norm)
		if !ok {
			continue
		}
		owned, err := l.store.AddExternalID(ctx, id, a.Source(), xid)
		if err != nil {
			return mention.Linked{}, errors.Wrapf(err, "attach %s id to %s", a.Source(), id)
		}
		if owned {
			refs = append(refs, mention.ExternalRef{Source: a.Source(), ID: xid})
		}
	}
	mention.SortExternalRefs(refs)

	labels := g.labels
	if len(labels) == 0 && g.typ != "" {
		labels = []string{g.typ}
	}
	ids := append([]string{}, g.mentionIDs...)
	sort.Strings(ids)

	return mention.Linked{
		DocID:       g.docID,
		CanonicalID: id,
		Type:        g.typ,
		Name:        name,
		Labels:      labels,
		Key:         g.key,
		Props:       g.props,
		MentionIDs:  ids,
		ExternalIDs: refs,
	}, nil
}

func appendNew(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func addMissing(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if dst == nil {
			dst = make(map[string]any, len(src))
		}
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
