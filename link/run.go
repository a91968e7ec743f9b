package link

import (
	"context"
	"path/filepath"
	"time"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/sym"
)

// Output file names under the link output directory.
const (
	LinkedFile = "linked.entities.jsonl"
	ReportFile = "run_report.json"
	ReportsDir = "_reports"
)

// Report summarises one link run.
type Report struct {
	Docs            int     `json:"docs"`
	Entities        int     `json:"entities"`
	ExternalIDs     int     `json:"external_ids"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Run links every *.entities.jsonl file in inDir (one document group per
// file) and writes a single sorted linked.entities.jsonl plus a run report
// under outDir. onGroup, if non-nil, is called after each group.
func (l *Linker) Run(ctx context.Context, inDir, outDir string, onGroup func(base string, done, total int)) (*Report, error) {
	start := time.Now()
	files, err := jsonl.Discover(inDir, "*.entities.jsonl")
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	var all []mention.Linked
	for n, path := range files {
		if err := ctx.Err(); err != nil {
			return rep, errors.Wrap(err, "link cancelled")
		}
		base := jsonl.BaseName(path, ".entities.jsonl")

		ents, stats, err := jsonl.ReadFile[mention.Entity](path, l.logger)
		if err != nil {
			return rep, err
		}
		rep.Errors += stats.Malformed

		rows, err := l.LinkGroup(ctx, ents)
		if err != nil {
			return rep, errors.Wrapf(err, "link %s", base)
		}
		rep.Docs++
		rep.Entities += len(rows)
		for i := range rows {
			rep.ExternalIDs += len(rows[i].ExternalIDs)
		}
		all = append(all, rows...)

		l.logger.Debugw("Linked document group",
			logger.FieldFile, base,
			logger.FieldCount, len(rows),
			logger.FieldSymbol, sym.Link,
		)
		if onGroup != nil {
			onGroup(base, n+1, len(files))
		}
	}

	out := filepath.Join(outDir, LinkedFile)
	if _, err := jsonl.WriteSorted(out, all); err != nil {
		return rep, err
	}
	rep.DurationSeconds = time.Since(start).Seconds()
	if err := jsonl.WriteJSON(filepath.Join(outDir, ReportsDir, ReportFile), rep); err != nil {
		return rep, err
	}

	l.logger.Infow("Link complete",
		logger.FieldPath, out,
		"docs", rep.Docs,
		"entities", rep.Entities,
		"external_ids", rep.ExternalIDs,
		logger.FieldSymbol, sym.Link,
	)
	return rep, nil
}
