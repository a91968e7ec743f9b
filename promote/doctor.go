package promote

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/sym"
)

// DoctorFile is the preflight report written under ReportsDir.
const DoctorFile = "doctor_report.json"

// Tally is a (name, count) pair, serialised as a two-element array.
type Tally struct {
	Name  string
	Count int
}

// MarshalJSON renders the tally as [name, count].
func (t Tally) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Name, t.Count})
}

// DoctorCounts sizes the inputs a preflight saw.
type DoctorCounts struct {
	CanonEntities  int `json:"canon_entities"`
	RelationGroups int `json:"relation_groups"`
}

// DoctorReport lists the schema problems a promotion run would hit.
type DoctorReport struct {
	SchemaVersion         string       `json:"schema_version"`
	ConfThr               float64      `json:"conf_thr"`
	MinEv                 int          `json:"min_ev"`
	Counts                DoctorCounts `json:"counts"`
	UnknownPredicates     []Tally      `json:"unknown_predicates"`
	UnknownEntityTypes    []Tally      `json:"unknown_entity_types"`
	DomainRangeMismatches []Tally      `json:"domain_range_mismatches"`
	MissingKeys           []Tally      `json:"missing_keys"`
	ValueRangeViolations  int          `json:"value_range_violations"`
	BelowThresholdGroups  int          `json:"below_threshold_groups"`
	Blockers              int          `json:"blockers"`
}

// Doctor runs preflight checks over the inputs without promoting anything.
// The JSON report goes to outDir/_reports/doctor_report.json and, when
// mdPath is set, a Markdown rendering to mdPath. Hard blockers (unknown
// predicates or types, value-range violations, domain/range mismatches)
// return the report together with an invalid-request error.
func (e *Engine) Doctor(ctx context.Context, in Inputs, outDir, mdPath string) (*DoctorReport, error) {
	log := logger.FromContext(ctx, e.logger)
	loaded, err := Load(in, log)
	if err != nil {
		return nil, err
	}

	rep := e.Diagnose(loaded)

	path := filepath.Join(outDir, ReportsDir, DoctorFile)
	if err := jsonl.WriteJSON(path, rep); err != nil {
		return nil, err
	}
	if mdPath != "" {
		if err := jsonl.WriteAtomic(mdPath, []byte(rep.Markdown())); err != nil {
			return nil, err
		}
	}

	log.Infow("Doctor complete",
		logger.FieldPath, path,
		"blockers", rep.Blockers,
		"below_threshold_groups", rep.BelowThresholdGroups,
		logger.FieldSymbol, sym.Doctor,
	)
	if rep.Blockers > 0 {
		return rep, errors.WithHintf(
			errors.NewInvalidRequestError("doctor found %d blocking issue(s)", rep.Blockers),
			"see %s", path)
	}
	return rep, nil
}

// Diagnose computes the preflight report for already loaded inputs.
func (e *Engine) Diagnose(in *Loaded) *DoctorReport {
	unknownPred := map[string]int{}
	unknownType := map[string]int{}
	mismatches := map[string]int{}
	missingKeys := map[string]int{}

	violating := map[string]bool{}
	for i := range in.Entities {
		m := &in.Entities[i]
		typ := m.Type
		if typ == "" {
			typ = "?"
		}
		if _, ok := e.schema.Entity(typ); !ok {
			unknownType[typ]++
		}
		ent := in.Linked[m.CanonicalID]
		if ent == nil || violating[ent.CanonicalID] {
			continue
		}
		if rule, ok := e.schema.Entity(ent.Type); ok && rule.ValueRange != nil && !e.schema.ConstraintsOK(ent) {
			violating[ent.CanonicalID] = true
		}
	}

	groups, order := bucketRelations(in.Relations)
	below := 0
	for _, key := range order {
		g := groups[key]
		rule, ok := e.schema.Relation(key.Predicate)
		if !ok {
			unknownPred[key.Predicate]++
			continue
		}
		subj, obj := in.Linked[key.Subj], in.Linked[key.Obj]
		if subj == nil || obj == nil {
			continue
		}
		if !rule.Allows(subj.Labels, obj.Labels) {
			mismatches[key.Predicate]++
			continue
		}
		for _, ent := range []*mention.Linked{subj, obj} {
			for _, f := range e.schema.MissingMergeKeys(ent) {
				missingKeys[ent.Type+":"+f]++
			}
		}
		ev := aggregate(g.mentions, 0)
		if ev.AvgConfidence < e.policy.ConfThr || ev.EvCount < e.policy.MinEvidence {
			below++
		}
	}

	rep := &DoctorReport{
		SchemaVersion:         e.schema.Version,
		ConfThr:               e.policy.ConfThr,
		MinEv:                 e.policy.MinEvidence,
		Counts:                DoctorCounts{CanonEntities: len(in.Linked), RelationGroups: len(order)},
		UnknownPredicates:     MostCommon(unknownPred),
		UnknownEntityTypes:    MostCommon(unknownType),
		DomainRangeMismatches: MostCommon(mismatches),
		MissingKeys:           MostCommon(missingKeys),
		ValueRangeViolations:  len(violating),
		BelowThresholdGroups:  below,
	}
	rep.Blockers = rep.ValueRangeViolations
	for _, tallies := range [][]Tally{rep.UnknownPredicates, rep.UnknownEntityTypes, rep.DomainRangeMismatches} {
		for _, t := range tallies {
			rep.Blockers += t.Count
		}
	}
	return rep
}

// MostCommon turns counts into tallies ordered by count descending, ties by
// name ascending.
func MostCommon(counts map[string]int) []Tally {
	out := make([]Tally, 0, len(counts))
	for name, n := range counts {
		out = append(out, Tally{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Markdown renders the report for humans.
func (r *DoctorReport) Markdown() string {
	var b strings.Builder
	b.WriteString("# Doctor Preflight Report\n\n")
	fmt.Fprintf(&b, "- Schema version: **%s**\n", r.SchemaVersion)
	fmt.Fprintf(&b, "- Thresholds: `conf_thr=%v`, `min_ev=%d`\n\n", r.ConfThr, r.MinEv)
	b.WriteString("### Counts\n\n")
	fmt.Fprintf(&b, "- Canonical entities indexed: **%d**\n", r.Counts.CanonEntities)
	fmt.Fprintf(&b, "- Relation groups: **%d**\n", r.Counts.RelationGroups)

	section := func(title string, tallies []Tally) {
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		if len(tallies) == 0 {
			b.WriteString("- *(none)*\n")
			return
		}
		for _, t := range tallies {
			fmt.Fprintf(&b, "- `%s`: %d\n", t.Name, t.Count)
		}
	}
	section("Unknown predicates", r.UnknownPredicates)
	section("Unknown entity types", r.UnknownEntityTypes)
	section("Domain/Range mismatches (by predicate)", r.DomainRangeMismatches)
	section("Missing merge keys (type:key)", r.MissingKeys)

	fmt.Fprintf(&b, "\n## Value-range violations\n\n- Count: **%d**\n", r.ValueRangeViolations)
	fmt.Fprintf(&b, "\n## Below-threshold relation groups (preview)\n\n- Count: **%d**\n", r.BelowThresholdGroups)
	fmt.Fprintf(&b, "\n## Blockers\n\n- Count: **%d**\n", r.Blockers)
	return b.String()
}
