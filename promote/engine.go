// Package promote decides which relation groups and entities become trusted
// facts. Every candidate runs through an ordered list of independent checks,
// each contributing zero or more reason codes. A candidate with any reason
// is quarantined with the full sorted set; the rest are promoted.
package promote

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/schema"
)

const (
	DefaultMaxSamples  = 20
	DefaultMaxExamples = 3
)

// Options tune an Engine. Nil thresholds take the schema defaults.
type Options struct {
	ConfThr     *float64
	MinEvidence *int
	MaxSamples  int
	MaxExamples int
	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string
}

// Engine applies a schema and evidence thresholds to mention streams.
type Engine struct {
	schema      *schema.Schema
	policy      schema.Thresholds
	maxSamples  int
	maxExamples int
	metricsFile string
	logger      *zap.SugaredLogger
}

// NewEngine validates the effective thresholds and returns an engine.
func NewEngine(s *schema.Schema, opts Options, log *zap.SugaredLogger) (*Engine, error) {
	policy := s.Thresholds(opts.ConfThr, opts.MinEvidence)
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		schema:      s,
		policy:      policy,
		maxSamples:  opts.MaxSamples,
		maxExamples: opts.MaxExamples,
		metricsFile: opts.MetricsFile,
		logger:      logger.OrNop(log),
	}
	if e.maxSamples <= 0 {
		e.maxSamples = DefaultMaxSamples
	}
	if e.maxExamples <= 0 {
		e.maxExamples = DefaultMaxExamples
	}
	return e, nil
}

// Policy returns the effective thresholds.
func (e *Engine) Policy() schema.Thresholds { return e.policy }

// Result holds the rows of one evaluation, unsorted.
type Result struct {
	Entities             []EntityFact
	Relations            []RelationFact
	QuarantinedEntities  []QuarantinedEntity
	QuarantinedRelations []QuarantinedRelation
	Counts               Counts
}

type relationGroup struct {
	key      mention.GroupKey
	mentions []*mention.Relation
	evidence Evidence
	rule     *schema.RelationRule
	subj     *mention.Linked
	obj      *mention.Linked
	props    map[string]any
}

type relationCheck func(e *Engine, g *relationGroup) []string

// relationChecks run in order; each may add reasons.
var relationChecks = []relationCheck{
	(*Engine).checkEvidence,
	(*Engine).checkPredicate,
	(*Engine).checkEndpoints,
	(*Engine).checkMergeKeys,
	(*Engine).checkTypeConstraints,
	(*Engine).checkDomainRange,
	(*Engine).checkPredicateConstraints,
}

type entityCheck func(e *Engine, ent *mention.Linked) []string

var entityChecks = []entityCheck{
	(*Engine).checkEntityMergeKeys,
	(*Engine).checkEntityKeysPresent,
	(*Engine).checkEntityConstraints,
}

func (e *Engine) checkEvidence(g *relationGroup) []string {
	if g.evidence.AvgConfidence >= e.policy.ConfThr && g.evidence.EvCount >= e.policy.MinEvidence {
		return nil
	}
	return []string{ReasonBelowThreshold}
}

func (e *Engine) checkPredicate(g *relationGroup) []string {
	if g.rule == nil {
		return []string{ReasonPredicateNotAllowed}
	}
	return nil
}

func (e *Engine) checkEndpoints(g *relationGroup) []string {
	var reasons []string
	if g.subj == nil {
		reasons = append(reasons, ReasonMissingSubject)
	}
	if g.obj == nil {
		reasons = append(reasons, ReasonMissingObject)
	}
	return reasons
}

func (e *Engine) checkMergeKeys(g *relationGroup) []string {
	var reasons []string
	if g.subj != nil {
		if missing := e.schema.MissingMergeKeys(g.subj); len(missing) > 0 {
			reasons = append(reasons, MissingKeysPrefix+"subject:"+strings.Join(missing, ","))
		}
	}
	if g.obj != nil {
		if missing := e.schema.MissingMergeKeys(g.obj); len(missing) > 0 {
			reasons = append(reasons, MissingKeysPrefix+"object:"+strings.Join(missing, ","))
		}
	}
	return reasons
}

func (e *Engine) checkTypeConstraints(g *relationGroup) []string {
	if (g.subj != nil && !e.schema.ConstraintsOK(g.subj)) || (g.obj != nil && !e.schema.ConstraintsOK(g.obj)) {
		return []string{ReasonTypeConstraint}
	}
	return nil
}

func (e *Engine) checkDomainRange(g *relationGroup) []string {
	if g.rule == nil || g.subj == nil || g.obj == nil {
		return nil
	}
	if !g.rule.Allows(g.subj.Labels, g.obj.Labels) {
		return []string{ReasonDomainRangeMismatch}
	}
	return nil
}

func (e *Engine) checkPredicateConstraints(g *relationGroup) []string {
	if g.rule == nil || g.subj == nil || g.obj == nil {
		return nil
	}
	if !e.schema.PredicateConstraintsOK(g.rule, g.subj, g.obj, g.props) {
		return []string{ReasonPredicateConstraint}
	}
	return nil
}

func (e *Engine) checkEntityMergeKeys(ent *mention.Linked) []string {
	if missing := e.schema.MissingMergeKeys(ent); len(missing) > 0 {
		return []string{MissingKeysPrefix + strings.Join(missing, ",")}
	}
	return nil
}

func (e *Engine) checkEntityKeysPresent(ent *mention.Linked) []string {
	if !e.schema.KeysPresent(ent) {
		return []string{ReasonMissingEntityKeys}
	}
	return nil
}

func (e *Engine) checkEntityConstraints(ent *mention.Linked) []string {
	if !e.schema.ConstraintsOK(ent) {
		return []string{ReasonTypeConstraint}
	}
	return nil
}

// Evaluate decides every relation group and every candidate entity.
func (e *Engine) Evaluate(ents []mention.Entity, rels []mention.Relation, linked mention.Table) *Result {
	res := &Result{}
	res.Counts.MentionsEntities = len(ents)

	groups, order := bucketRelations(rels)
	res.Counts.RelationGroups = len(order)
	for _, g := range groups {
		res.Counts.MentionsRelations += len(g.mentions)
	}

	policy := Policy{ConfThr: e.policy.ConfThr, MinEv: e.policy.MinEvidence}
	relProv := Provenance{SchemaVersion: e.schema.Version}
	candidates := make(map[string]bool)

	for _, key := range order {
		g := groups[key]
		e.prepare(g, linked)

		var reasons []string
		for _, check := range relationChecks {
			reasons = append(reasons, check(e, g)...)
		}
		if len(reasons) > 0 {
			reasons = uniqueSorted(reasons)
			res.QuarantinedRelations = append(res.QuarantinedRelations, QuarantinedRelation{
				Kind:       KindRelation,
				Subj:       Ref{CanonicalID: key.Subj},
				Predicate:  key.Predicate,
				Obj:        Ref{CanonicalID: key.Obj},
				GroupKey:   [3]string{key.Subj, key.Predicate, key.Obj},
				Evidence:   g.evidence,
				Policy:     policy,
				Reasons:    reasons,
				Examples:   relationExamples(g.mentions, e.maxExamples),
				Provenance: relProv,
			})
			e.logger.Debugw("Quarantined relation group",
				logger.FieldPredicate, key.Predicate,
				"group_key", key.String(),
				logger.FieldReasons, reasons,
			)
			continue
		}

		props := g.props
		if props == nil {
			props = map[string]any{}
		}
		res.Relations = append(res.Relations, RelationFact{
			Subj:       LabeledRef{CanonicalID: key.Subj, Labels: nonNil(g.subj.Labels)},
			Predicate:  key.Predicate,
			Obj:        LabeledRef{CanonicalID: key.Obj, Labels: nonNil(g.obj.Labels)},
			Props:      props,
			Evidence:   g.evidence,
			Policy:     policy,
			Provenance: relProv,
		})
		candidates[key.Subj] = true
		candidates[key.Obj] = true
	}

	support := collectEntityEvidence(ents)
	for cid, ev := range support {
		if ev.evCount >= e.policy.MinEvidence {
			candidates[cid] = true
		}
	}

	ids := make([]string, 0, len(candidates))
	for cid := range candidates {
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	for _, cid := range ids {
		e.evaluateEntity(res, cid, linked[cid], support[cid])
	}

	res.Counts.PromotedRelations = len(res.Relations)
	res.Counts.QuarantinedRelations = len(res.QuarantinedRelations)
	res.Counts.PromotedEntities = len(res.Entities)
	res.Counts.QuarantinedEntities = len(res.QuarantinedEntities)
	return res
}

func (e *Engine) prepare(g *relationGroup, linked mention.Table) {
	g.evidence = aggregate(g.mentions, e.maxSamples)
	g.rule, _ = e.schema.Relation(g.key.Predicate)
	g.subj = linked[g.key.Subj]
	g.obj = linked[g.key.Obj]
	for _, m := range g.mentions {
		if len(m.Props) > 0 {
			g.props = m.Props
			break
		}
	}
}

func (e *Engine) evaluateEntity(res *Result, cid string, ent *mention.Linked, ev *entityEvidence) {
	if ev == nil {
		ev = &entityEvidence{}
	}
	evCount, docCount := ev.evCount, len(ev.docs)
	prov := Provenance{SchemaVersion: e.schema.Version, EvCount: &evCount, DocCount: &docCount}

	if ent == nil {
		res.QuarantinedEntities = append(res.QuarantinedEntities, QuarantinedEntity{
			Kind:        KindEntity,
			CanonicalID: cid,
			Reasons:     []string{ReasonMissingObject},
			Examples:    entityExamples(ev.mentions, e.maxExamples),
			Provenance:  Provenance{SchemaVersion: e.schema.Version},
		})
		e.logger.Warnw("Candidate entity is not in the linked table",
			logger.FieldCanonicalID, cid,
		)
		return
	}

	var reasons []string
	for _, check := range entityChecks {
		reasons = append(reasons, check(e, ent)...)
	}
	if len(reasons) > 0 {
		reasons = uniqueSorted(reasons)
		res.QuarantinedEntities = append(res.QuarantinedEntities, QuarantinedEntity{
			Kind:        KindEntity,
			CanonicalID: cid,
			Type:        ent.Type,
			Labels:      ent.Labels,
			Reasons:     reasons,
			Examples:    entityExamples(ev.mentions, e.maxExamples),
			Provenance:  prov,
		})
		e.logger.Debugw("Quarantined entity",
			logger.FieldCanonicalID, cid,
			logger.FieldType, ent.Type,
			logger.FieldReasons, reasons,
		)
		return
	}

	key, props := ent.Key, ent.Props
	if key == nil {
		key = map[string]any{}
	}
	if props == nil {
		props = map[string]any{}
	}
	res.Entities = append(res.Entities, EntityFact{
		CanonicalID: cid,
		Type:        ent.Type,
		Labels:      nonNil(ent.Labels),
		Key:         key,
		Props:       props,
		Provenance:  prov,
	})
}

// bucketRelations groups complete relation mentions by (subj, predicate,
// obj) and returns the keys in sorted order.
func bucketRelations(rels []mention.Relation) (map[mention.GroupKey]*relationGroup, []mention.GroupKey) {
	groups := make(map[mention.GroupKey]*relationGroup)
	var order []mention.GroupKey
	for i := range rels {
		k := rels[i].Key()
		if !k.Complete() {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &relationGroup{key: k}
			groups[k] = g
			order = append(order, k)
		}
		g.mentions = append(g.mentions, &rels[i])
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	return groups, order
}

// aggregate computes the evidence of one relation group. ev_count counts
// distinct sentences, so repeated extractions from one sentence count once.
func aggregate(ms []*mention.Relation, maxSamples int) Evidence {
	var sum float64
	sents := make(map[string]struct{})
	docs := make(map[string]struct{})
	for _, m := range ms {
		sum += m.Confidence
		if k := m.SentID.Key(); k != "" {
			sents[k] = struct{}{}
		}
		if m.DocID != "" {
			docs[m.DocID] = struct{}{}
		}
	}

	ev := Evidence{EvCount: len(sents), DocCount: len(docs), Mentions: []Sample{}}
	if len(ms) > 0 {
		ev.AvgConfidence = sum / float64(len(ms))
	}
	for _, m := range byEvidenceOrder(ms, relationPosition) {
		if len(ev.Mentions) >= maxSamples {
			break
		}
		ev.Mentions = append(ev.Mentions, Sample{
			DocID:      m.DocID,
			SentID:     m.SentID,
			Span:       m.Span,
			Confidence: m.Confidence,
		})
	}
	return ev
}

type entityEvidence struct {
	evCount  int
	docs     map[string]struct{}
	mentions []*mention.Entity
}

func collectEntityEvidence(ents []mention.Entity) map[string]*entityEvidence {
	out := make(map[string]*entityEvidence)
	sents := make(map[string]map[string]struct{})
	for i := range ents {
		m := &ents[i]
		cid := m.CanonicalID
		if cid == "" {
			continue
		}
		ev, ok := out[cid]
		if !ok {
			ev = &entityEvidence{docs: make(map[string]struct{})}
			out[cid] = ev
			sents[cid] = make(map[string]struct{})
		}
		if k := m.SentID.Key(); k != "" {
			sents[cid][k] = struct{}{}
		}
		if m.DocID != "" {
			ev.docs[m.DocID] = struct{}{}
		}
		ev.mentions = append(ev.mentions, m)
	}
	for cid, ev := range out {
		ev.evCount = len(sents[cid])
	}
	return out
}

func relationPosition(m *mention.Relation) (string, string) { return m.DocID, m.SentID.String() }

func entityPosition(m *mention.Entity) (string, string) { return m.DocID, m.SentID.String() }

// byEvidenceOrder sorts mentions by document, sentence, then canonical form.
func byEvidenceOrder[T any](items []T, position func(T) (string, string)) []T {
	type keyed struct {
		doc, sent, canon string
		item             T
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		doc, sent := position(it)
		canon, _ := jsonl.Canonical(it)
		ks[i] = keyed{doc: doc, sent: sent, canon: string(canon), item: it}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].doc != ks[j].doc {
			return ks[i].doc < ks[j].doc
		}
		if ks[i].sent != ks[j].sent {
			return ks[i].sent < ks[j].sent
		}
		return ks[i].canon < ks[j].canon
	})
	out := make([]T, len(ks))
	for i := range ks {
		out[i] = ks[i].item
	}
	return out
}

func relationExamples(ms []*mention.Relation, limit int) []Example {
	out := []Example{}
	for _, m := range byEvidenceOrder(ms, relationPosition) {
		if len(out) >= limit {
			break
		}
		out = append(out, Example{DocID: m.DocID, SentID: m.SentID})
	}
	return out
}

func entityExamples(ms []*mention.Entity, limit int) []Example {
	var out []Example
	for _, m := range byEvidenceOrder(ms, entityPosition) {
		if len(out) >= limit {
			break
		}
		out = append(out, Example{DocID: m.DocID, SentID: m.SentID})
	}
	return out
}

func uniqueSorted(reasons []string) []string {
	sort.Strings(reasons)
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if len(out) == 0 || out[len(out)-1] != r {
			out = append(out, r)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
