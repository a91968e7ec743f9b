package coref

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/mention"
	"github.com/teranos/factgate/sym"
)

const (
	entitiesSuffix = ".entities.jsonl"
	chainsSuffix   = ".chains.jsonl"
)

// Report summarises one coref run.
type Report struct {
	Files           int     `json:"files"`
	Docs            int     `json:"docs"`
	Mentions        int     `json:"mentions"`
	Pronouns        int     `json:"pronouns"`
	Resolved        int     `json:"resolved"`
	Chains          int     `json:"chains"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Stage runs coreference over directories of entity mention files.
type Stage struct {
	opts   Options
	logger *zap.SugaredLogger
	// OnFile, when set, is called after each file is written.
	OnFile func(path string, done, total int)
}

// NewStage creates a coref stage. A nil logger is silent.
func NewStage(opts Options, log *zap.SugaredLogger) *Stage {
	return &Stage{opts: opts, logger: logger.OrNop(log)}
}

// ResolveFile groups a file's mentions by document in first-appearance
// order, resolves each document and returns mentions in their input order.
func (s *Stage) ResolveFile(ents []mention.Entity) ([]mention.Entity, []Chain, int) {
	var order []string
	byDoc := make(map[string][]int)
	for i := range ents {
		d := ents[i].DocID
		if _, ok := byDoc[d]; !ok {
			order = append(order, d)
		}
		byDoc[d] = append(byDoc[d], i)
	}

	out := make([]mention.Entity, len(ents))
	var chains []Chain
	for _, d := range order {
		idx := byDoc[d]
		doc := make([]mention.Entity, len(idx))
		for k, i := range idx {
			doc[k] = ents[i]
		}
		resolved := Resolve(doc, s.opts)
		for k, i := range idx {
			out[i] = resolved[k]
		}
		chains = append(chains, BuildChains(d, resolved)...)
	}
	return out, chains, len(order)
}

// Run resolves every *.entities.jsonl under inDir and writes the annotated
// file, plus a chains file, to the same relative path under outDir.
func (s *Stage) Run(ctx context.Context, inDir, outDir string) (*Report, error) {
	start := time.Now()
	files, err := jsonl.Discover(inDir, "**/*"+entitiesSuffix)
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	for n, path := range files {
		if err := ctx.Err(); err != nil {
			return rep, errors.Wrap(err, "coref cancelled")
		}

		ents, stats, err := jsonl.ReadFile[mention.Entity](path, s.logger)
		if err != nil {
			return rep, err
		}
		rep.Errors += stats.Malformed

		resolved, chains, docs := s.ResolveFile(ents)
		rep.Files++
		rep.Docs += docs
		rep.Mentions += len(resolved)
		rep.Chains += len(chains)
		for i := range resolved {
			if c := resolved[i].Coref; c != nil && c.IsPronoun {
				rep.Pronouns++
				if c.AntecedentMentionID != "" {
					rep.Resolved++
				}
			}
		}

		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			return rep, errors.Wrapf(err, "relative path of %s", path)
		}
		target := filepath.Join(outDir, rel)
		if err := jsonl.WriteOrdered(target, resolved); err != nil {
			return rep, err
		}
		chainPath := strings.TrimSuffix(target, entitiesSuffix) + chainsSuffix
		if _, err := jsonl.WriteSorted(chainPath, chains); err != nil {
			return rep, err
		}

		s.logger.Infow("Resolved coreference",
			logger.FieldPath, target,
			logger.FieldCount, len(resolved),
			"chains", len(chains),
			logger.FieldSymbol, sym.Coref,
		)
		if s.OnFile != nil {
			s.OnFile(target, n+1, len(files))
		}
	}

	rep.DurationSeconds = time.Since(start).Seconds()
	return rep, nil
}
