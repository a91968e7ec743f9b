package promote

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/sym"
)

// Output layout under the promote output directory.
const (
	FactsEntitiesFile  = "facts.entities.jsonl"
	FactsRelationsFile = "facts.relations.jsonl"
	QuarantineDir      = "quarantine"
	EntitiesFile       = "entities.jsonl"
	RelationsFile      = "relations.jsonl"
	ReportsDir         = "_reports"
	ReportFile         = "run_report.json"
)

// Inputs names the three files a promotion run reads.
type Inputs struct {
	EntityMentions   string
	RelationMentions string
	Linked           string
}

// Loaded is the decoded content of Inputs.
type Loaded struct {
	Entities  []mention.Entity
	Relations []mention.Relation
	Linked    mention.Table
	// Malformed counts skipped lines across all three files.
	Malformed int
}

// Load reads all three inputs. A missing file is a validation error;
// malformed lines are skipped and counted.
func Load(in Inputs, log *zap.SugaredLogger) (*Loaded, error) {
	ents, es, err := jsonl.ReadFile[mention.Entity](in.EntityMentions, log)
	if err != nil {
		return nil, err
	}
	rels, rs, err := jsonl.ReadFile[mention.Relation](in.RelationMentions, log)
	if err != nil {
		return nil, err
	}
	rows, ls, err := jsonl.ReadFile[mention.Linked](in.Linked, log)
	if err != nil {
		return nil, err
	}
	return &Loaded{
		Entities:  ents,
		Relations: rels,
		Linked:    mention.NewTable(rows),
		Malformed: es.Malformed + rs.Malformed + ls.Malformed,
	}, nil
}

// Run evaluates the inputs and writes facts, quarantine, the run report and,
// if configured, the metrics textfile. Every output is written atomically.
func (e *Engine) Run(ctx context.Context, in Inputs, outDir string) (*Report, error) {
	start := time.Now()
	log := logger.FromContext(ctx, e.logger)

	loaded, err := Load(in, log)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "promote cancelled")
	}

	res := e.Evaluate(loaded.Entities, loaded.Relations, loaded.Linked)

	outputs := []struct {
		path  string
		write func(string) (int, error)
	}{
		{filepath.Join(outDir, FactsEntitiesFile), func(p string) (int, error) { return jsonl.WriteSorted(p, res.Entities) }},
		{filepath.Join(outDir, FactsRelationsFile), func(p string) (int, error) { return jsonl.WriteSorted(p, res.Relations) }},
		{filepath.Join(outDir, QuarantineDir, EntitiesFile), func(p string) (int, error) { return jsonl.WriteSorted(p, res.QuarantinedEntities) }},
		{filepath.Join(outDir, QuarantineDir, RelationsFile), func(p string) (int, error) { return jsonl.WriteSorted(p, res.QuarantinedRelations) }},
	}
	for _, o := range outputs {
		n, err := o.write(o.path)
		if err != nil {
			return nil, err
		}
		log.Debugw("Wrote promotion output", logger.FieldPath, o.path, logger.FieldCount, n)
	}

	rep := &Report{
		SchemaVersion:   e.schema.Version,
		ConfThr:         e.policy.ConfThr,
		MinEv:           e.policy.MinEvidence,
		Counts:          res.Counts,
		DurationSeconds: math.Round(time.Since(start).Seconds()*1e6) / 1e6,
		Errors:          loaded.Malformed,
	}
	if err := jsonl.WriteJSON(filepath.Join(outDir, ReportsDir, ReportFile), rep); err != nil {
		return nil, err
	}

	if e.metricsFile != "" {
		if err := WriteMetrics(e.metricsFile, res, rep, time.Now()); err != nil {
			return rep, err
		}
	}

	log.Infow("Promotion complete",
		logger.FieldPath, outDir,
		"promoted_relations", rep.Counts.PromotedRelations,
		"promoted_entities", rep.Counts.PromotedEntities,
		"quarantined_relations", rep.Counts.QuarantinedRelations,
		"quarantined_entities", rep.Counts.QuarantinedEntities,
		logger.FieldSymbol, sym.Promote,
	)
	return rep, nil
}
