// Package sym defines the glyphs factgate uses to mark pipeline stages
// in logs and progress output. They are stable across CLI and docs.
package sym

// Stage glyphs. Each pipeline verb has exactly one.
const (
	Coref      = "⟲" // coref: within-document pronoun resolution
	Link       = "⋈" // link: cross-document canonical identity
	Promote    = "⊨" // promote: schema-gated fact promotion
	Quarantine = "⊘" // quarantine: rejected candidates and their reasons
	Doctor     = "✚" // doctor: schema and data diagnostics
	Registry   = "≣" // registry: canonical id store
	Config     = "≡" // config: settings and state
	Contracts  = "⊢" // contracts: upstream record checks
)

// System infrastructure symbols.
const (
	DB   = "⊔" // database/storage layer
	Doc  = "▤" // document/file content
	Fact = "✦" // promoted fact
)

// PaletteOrder is the order stages run in a full pipeline pass.
var PaletteOrder = []string{Coref, Link, Promote, Quarantine}

// SymbolToCommand maps stage glyphs to their CLI verb.
var SymbolToCommand = map[string]string{
	Coref:      "coref",
	Link:       "link",
	Promote:    "promote",
	Quarantine: "quarantine",
	Doctor:     "doctor",
	Registry:   "registry",
	Config:     "config",
	Contracts:  "contracts",
}

// CommandToSymbol maps CLI verbs to their stage glyph.
var CommandToSymbol = map[string]string{
	"coref":      Coref,
	"link":       Link,
	"promote":    Promote,
	"quarantine": Quarantine,
	"doctor":     Doctor,
	"registry":   Registry,
	"config":     Config,
	"contracts":  Contracts,
}

// CommandDescriptions provides the one-line help shown for each verb.
var CommandDescriptions = map[string]string{
	"coref":      "Resolve pronouns to in-document antecedents",
	"link":       "Assign canonical ids across documents",
	"promote":    "Gate candidates into facts or quarantine",
	"quarantine": "Summarize quarantined candidates by reason",
	"doctor":     "Diagnose schema and data problems before promotion",
	"registry":   "Inspect the canonical identity registry",
	"config":     "Show or initialize configuration",
	"contracts":  "Check upstream extractor and segmenter records",
}

// Glyph returns the stage glyph for a CLI verb, or "" when unknown.
func Glyph(command string) string {
	return CommandToSymbol[command]
}
