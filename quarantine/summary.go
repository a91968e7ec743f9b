// Package quarantine digests the rows a promotion run rejected: which
// reasons fire most, which predicates are affected and which merge keys
// entities are missing.
package quarantine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/promote"
	"github.com/teranos/factgate/sym"
)

const (
	// MaxExamples caps the examples kept per reason.
	MaxExamples = 5
	// ExampleWidth caps the rune length of one example.
	ExampleWidth = 64
)

type entityRow struct {
	CanonicalID string   `json:"canonical_id"`
	Reasons     []string `json:"reasons"`
}

type relationRow struct {
	GroupKey  []string `json:"group_key"`
	Predicate string   `json:"predicate"`
	Reasons   []string `json:"reasons"`
}

// Totals counts quarantined rows.
type Totals struct {
	All       int `json:"all"`
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

// Summary is the digest of one quarantine directory. Fields are declared in
// key order so the JSON rendering is sorted.
type Summary struct {
	Examples    map[string][]string `json:"examples"`
	MissingKeys []promote.Tally     `json:"missing_keys"`
	Predicates  []promote.Tally     `json:"predicates"`
	Reasons     []promote.Tally     `json:"reasons"`
	Totals      Totals              `json:"totals"`
}

// Summarizer reads quarantine output and renders digests.
type Summarizer struct {
	logger *zap.SugaredLogger
}

// New returns a Summarizer. A nil logger is silent.
func New(log *zap.SugaredLogger) *Summarizer {
	return &Summarizer{logger: logger.OrNop(log)}
}

// Summarize tallies dir/entities.jsonl and dir/relations.jsonl. Either file
// may be absent; the directory itself must exist.
func (s *Summarizer) Summarize(ctx context.Context, dir string) (*Summary, error) {
	log := logger.FromContext(ctx, s.logger)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("quarantine directory %s does not exist", dir),
			"run promote first; its output holds a quarantine/ directory")
	}

	ents, err := readOptional[entityRow](filepath.Join(dir, promote.EntitiesFile), log)
	if err != nil {
		return nil, err
	}
	rels, err := readOptional[relationRow](filepath.Join(dir, promote.RelationsFile), log)
	if err != nil {
		return nil, err
	}

	reasons := map[string]int{}
	preds := map[string]int{}
	missing := map[string]int{}
	examples := map[string][]string{}
	addExample := func(reason, ex string) {
		if len(examples[reason]) < MaxExamples {
			examples[reason] = append(examples[reason], shorten(ex, ExampleWidth))
		}
	}

	for _, r := range ents {
		id := r.CanonicalID
		if id == "" {
			id = "unknown"
		}
		for _, reason := range r.Reasons {
			reasons[reason]++
			addExample(reason, "entity:"+id)
			fields, ok := strings.CutPrefix(reason, promote.MissingKeysPrefix)
			if !ok {
				continue
			}
			for _, f := range strings.Split(fields, ",") {
				if f = strings.TrimSpace(f); f != "" {
					missing[f]++
				}
			}
		}
	}

	for _, r := range rels {
		key := r.GroupKey
		if len(key) == 0 {
			key = []string{"?", "?", "?"}
		}
		pred := r.Predicate
		if len(key) >= 2 {
			pred = key[1]
		}
		if pred == "" {
			pred = "?"
		}
		preds[pred]++
		for _, reason := range r.Reasons {
			reasons[reason]++
			addExample(reason, "rel:"+strings.Join(key, "|"))
		}
	}

	sum := &Summary{
		Examples:    examples,
		MissingKeys: promote.MostCommon(missing),
		Predicates:  promote.MostCommon(preds),
		Reasons:     promote.MostCommon(reasons),
		Totals:      Totals{All: len(ents) + len(rels), Entities: len(ents), Relations: len(rels)},
	}
	log.Infow("Summarized quarantine",
		logger.FieldPath, dir,
		"entities", sum.Totals.Entities,
		"relations", sum.Totals.Relations,
		logger.FieldSymbol, sym.Quarantine,
	)
	return sum, nil
}

// Write renders sum as Markdown to mdPath and, when jsonPath is set, as
// indented JSON to jsonPath.
func (s *Summarizer) Write(sum *Summary, mdPath, jsonPath string) error {
	if err := jsonl.WriteAtomic(mdPath, []byte(sum.Markdown())); err != nil {
		return err
	}
	if jsonPath == "" {
		return nil
	}
	return jsonl.WriteJSON(jsonPath, sum)
}

func readOptional[T any](path string, log *zap.SugaredLogger) ([]T, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debugw("No quarantine file", logger.FieldPath, path)
		return nil, nil
	}
	rows, _, err := jsonl.ReadFile[T](path, log)
	return rows, err
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Markdown renders the summary for reviewers.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("# Quarantine Summary\n\n")
	fmt.Fprintf(&b, "- Total quarantined: **%d** (entities=%d, relations=%d)\n\n",
		s.Totals.All, s.Totals.Entities, s.Totals.Relations)

	b.WriteString("## Top Reasons\n\n")
	if len(s.Reasons) == 0 {
		b.WriteString("- *(none)*\n")
	}
	for _, t := range s.Reasons {
		fmt.Fprintf(&b, "- **%s**: %d  \n  examples: %s\n", t.Name, t.Count, strings.Join(s.Examples[t.Name], ", "))
	}

	list := func(title string, tallies []promote.Tally) {
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		if len(tallies) == 0 {
			b.WriteString("- *(none)*\n")
			return
		}
		for _, t := range tallies {
			fmt.Fprintf(&b, "- `%s`: %d\n", t.Name, t.Count)
		}
	}
	list("Relations by Predicate", s.Predicates)
	list("Missing Merge Keys (Entities)", s.MissingKeys)
	return b.String()
}
