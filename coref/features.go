// Package coref resolves pronouns to earlier mentions in the same document
// using deterministic agreement rules. Every decision carries a rule tag so
// downstream stages can audit why a link was made.
package coref

import (
	"strings"

	"github.com/teranos/factgate/mention"
)

// Number and gender values.
const (
	Singular = "singular"
	Plural   = "plural"
	Unknown  = "unknown"

	Masc = "masc"
	Fem  = "fem"
	Neut = "neut"
)

type agreement struct {
	number string
	gender string
}

// pronouns is the closed pronoun table.
var pronouns = map[string]agreement{
	"it":    {Singular, Neut},
	"this":  {Singular, Neut},
	"that":  {Singular, Neut},
	"he":    {Singular, Masc},
	"him":   {Singular, Masc},
	"she":   {Singular, Fem},
	"her":   {Singular, Fem},
	"they":  {Plural, Unknown},
	"them":  {Plural, Unknown},
	"these": {Plural, Neut},
	"those": {Plural, Neut},
}

var deviceWords = []string{"drone", "system", "device", "battery", "pack", "railgun", "prototype"}

var femaleNames = map[string]bool{
	"jane": true, "alice": true, "mary": true, "anna": true,
	"susan": true, "kate": true, "karen": true, "linda": true,
}

var maleNames = map[string]bool{
	"bob": true, "john": true, "michael": true, "tom": true,
	"david": true, "peter": true, "paul": true,
}

// features are the per-mention attributes agreement is checked on.
type features struct {
	isPronoun bool
	form      string
	number    string
	gender    string
	sent      int
}

// deriveFeatures fills in pronoun, number and gender attributes. Values
// supplied upstream win over derived ones.
func deriveFeatures(m *mention.Entity) features {
	low := m.NormalizedText()
	agr, isPron := pronouns[low]
	f := features{
		isPronoun: isPron,
		number:    Unknown,
		gender:    Unknown,
		sent:      m.SentID.Int(),
	}
	if m.IsPronoun != nil {
		f.isPronoun = *m.IsPronoun
	}
	if isPron {
		f.form = low
		f.number = agr.number
		f.gender = agr.gender
	}
	if m.PronounForm != "" {
		f.form = strings.ToLower(m.PronounForm)
	}
	if m.Number != "" {
		f.number = m.Number
	}
	if m.Gender != "" {
		f.gender = m.Gender
	}

	if strings.EqualFold(m.Type, "PERSON") && f.gender == Unknown && !isPron {
		switch {
		case femaleNames[low]:
			f.gender = Fem
		case maleNames[low]:
			f.gender = Masc
		}
	}
	return f
}

func isOrgType(typ string) bool {
	t := strings.ToUpper(typ)
	return t == "ORG" || t == "ORGANIZATION"
}

// candidateNumber estimates grammatical number of a candidate antecedent.
// Organisations are singular; a trailing non-"ss" "s" reads as plural.
// "Lockheed Martin Systems" is a known false plural.
func candidateNumber(m *mention.Entity) string {
	if isOrgType(m.Type) {
		return Singular
	}
	txt := strings.TrimSpace(m.Text)
	switch strings.ToLower(txt) {
	case "they", "these", "those":
		return Plural
	}
	if len(txt) > 3 && strings.HasSuffix(txt, "s") && !strings.HasSuffix(txt, "ss") {
		return Plural
	}
	return Singular
}

func isDeviceLike(m *mention.Entity) bool {
	switch strings.ToUpper(m.Type) {
	case "PRODUCT", "DEVICE":
		return true
	}
	txt := strings.ToLower(m.Text)
	for _, w := range deviceWords {
		if strings.Contains(txt, w) {
			return true
		}
	}
	return false
}
