package coref

import (
	"github.com/teranos/factgate/mention"
)

// Options bounds the backward antecedent search.
type Options struct {
	// MaxSentBack is the largest sentence distance a candidate may have.
	MaxSentBack int
	// MaxMentionsBack caps how many in-window candidates are collected.
	MaxMentionsBack int
}

// DefaultOptions returns the standard search window.
func DefaultOptions() Options {
	return Options{MaxSentBack: 3, MaxMentionsBack: 30}
}

// Confidence attached to each resolution rule.
const (
	confDeviceOverOrg   = 0.85
	confNearestSingular = 0.75
	confNearestPlural   = 0.7
)

// check is one agreement predicate between a pronoun and a candidate.
type check func(p features, cand *mention.Entity, cf features) bool

// agreementChecks run in order; a candidate must pass all of them.
var agreementChecks = []check{
	func(p features, _ *mention.Entity, cf features) bool {
		if p.form == "he" || p.form == "him" {
			return cf.gender == Masc || cf.gender == Unknown
		}
		return true
	},
	func(p features, _ *mention.Entity, cf features) bool {
		if p.form == "she" || p.form == "her" {
			return cf.gender == Fem || cf.gender == Unknown
		}
		return true
	},
	func(p features, cand *mention.Entity, _ features) bool {
		if p.number == Plural || p.number == Singular {
			return candidateNumber(cand) == p.number
		}
		return true
	},
}

func compatible(p features, cand *mention.Entity, cf features) bool {
	for _, c := range agreementChecks {
		if !c(p, cand, cf) {
			return false
		}
	}
	return true
}

func isNeuterDemonstrative(form string) bool {
	return form == "it" || form == "this" || form == "that"
}

// Resolve annotates one document's mentions, in their original order, with
// coref fields. The input slice is not modified.
func Resolve(ents []mention.Entity, opts Options) []mention.Entity {
	feats := make([]features, len(ents))
	for i := range ents {
		feats[i] = deriveFeatures(&ents[i])
	}

	out := make([]mention.Entity, len(ents))
	copy(out, ents)

	for i := range out {
		f := feats[i]
		ann := &mention.Coref{
			IsPronoun:   f.isPronoun,
			PronounForm: f.form,
			Number:      f.number,
			Gender:      f.gender,
			Rule:        mention.RuleUnresolved,
		}
		out[i].Coref = ann
		if !f.isPronoun {
			continue
		}

		j, rule, conf := pickAntecedent(ents, feats, i, opts)
		if j < 0 {
			continue
		}
		ann.AntecedentMentionID = out[j].MentionID
		ann.Rule = rule
		ann.Conf = conf
		if out[i].ResolvedEntityID == "" {
			// out[j] is already annotated, so pronoun chains carry through
			out[i].ResolvedEntityID = out[j].BestKey()
		}
	}
	return out
}

// pickAntecedent returns the index of the chosen antecedent for ents[i],
// or -1 when nothing compatible is in the window.
func pickAntecedent(ents []mention.Entity, feats []features, i int, opts Options) (int, string, float64) {
	p := feats[i]

	var compat []int
	collected := 0
	for j := i - 1; j >= 0 && collected < opts.MaxMentionsBack; j-- {
		if abs(p.sent-feats[j].sent) > opts.MaxSentBack {
			continue
		}
		collected++
		if compatible(p, &ents[j], feats[j]) {
			compat = append(compat, j)
		}
	}

	if isNeuterDemonstrative(p.form) {
		for _, j := range compat {
			if isDeviceLike(&ents[j]) {
				return j, mention.RulePreferDeviceOverOrg, confDeviceOverOrg
			}
		}
		if len(compat) > 0 {
			return compat[0], mention.RuleNearestCompatible, confNearestSingular
		}
		return -1, mention.RuleUnresolved, 0
	}

	if len(compat) == 0 {
		return -1, mention.RuleUnresolved, 0
	}
	conf := confNearestPlural
	if p.number == Singular {
		conf = confNearestSingular
	}
	return compat[0], mention.RuleNearestCompatible, conf
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
