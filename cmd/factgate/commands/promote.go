package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/promote"
	"github.com/teranos/factgate/schema"
	"github.com/teranos/factgate/sym"
)

// PromoteCmd gates mentions into facts or quarantine.
var PromoteCmd = &cobra.Command{
	Use:   "promote <entity_mentions> <relation_mentions> <linked_entities>",
	Short: sym.Promote + " Gate candidates into facts or quarantine",
	Long: sym.Promote + ` promote - gate candidates into facts or quarantine

Groups relation mentions by (subject, predicate, object), applies the schema
and the evidence thresholds, and writes under --out:

  facts.entities.jsonl, facts.relations.jsonl
  quarantine/entities.jsonl, quarantine/relations.jsonl
  _reports/run_report.json

Thresholds come from --conf / --min-evidence, then promote.conf_thr /
promote.min_evidence, then the schema's promotion block.

Examples:
  factgate promote ents.jsonl rels.jsonl linked.entities.jsonl --schema schema.yaml --out facts/
  factgate promote ents.jsonl rels.jsonl linked.entities.jsonl --schema schema.yaml --out facts/ --doctor`,
	Args: exactArgs(3),
	RunE: runPromote,
}

// DoctorCmd runs the promotion preflight checks.
var DoctorCmd = &cobra.Command{
	Use:   "doctor <entity_mentions> <relation_mentions> <linked_entities>",
	Short: sym.Doctor + " Diagnose schema and data problems before promotion",
	Long: sym.Doctor + ` doctor - diagnose schema and data problems before promotion

Reports unknown predicates and entity types, domain/range mismatches,
missing merge keys, value-range violations and below-threshold groups to
_reports/doctor_report.json under --out. Exits 2 when any blocker is found.

Examples:
  factgate doctor ents.jsonl rels.jsonl linked.entities.jsonl --schema schema.yaml --out facts/
  factgate doctor ents.jsonl rels.jsonl linked.entities.jsonl --schema schema.yaml --out facts/ --md-out facts/_reports/doctor.md`,
	Args: exactArgs(3),
	RunE: runDoctor,
}

type promoteFlags struct {
	schema      string
	conf        float64
	minEvidence int
	out         string
	mdOut       string
	metricsFile string
	doctor      bool
}

var (
	promoteOpts promoteFlags
	doctorOpts  promoteFlags
)

func addPromoteFlags(cmd *cobra.Command, f *promoteFlags) {
	cmd.Flags().StringVar(&f.schema, "schema", "", "Schema YAML or JSON (default promote.schema)")
	cmd.Flags().Float64Var(&f.conf, "conf", 0, "Minimum average confidence (default: config, then schema)")
	cmd.Flags().IntVar(&f.minEvidence, "min-evidence", 0, "Minimum distinct supporting sentences (default: config, then schema)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory (required)")
	cmd.Flags().StringVar(&f.mdOut, "md-out", "", "Optional Markdown path for the doctor report")
}

func init() {
	addPromoteFlags(PromoteCmd, &promoteOpts)
	PromoteCmd.Flags().BoolVar(&promoteOpts.doctor, "doctor", false, "Run preflight checks only")
	PromoteCmd.Flags().StringVar(&promoteOpts.metricsFile, "metrics-file", "", "Prometheus textfile to write (default promote.metrics_file)")

	addPromoteFlags(DoctorCmd, &doctorOpts)
}

func newEngine(cmd *cobra.Command, f *promoteFlags) (*promote.Engine, error) {
	path := f.schema
	if path == "" {
		path = cfg.Promote.Schema
	}
	if path == "" {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("no schema given"),
			"pass --schema or set promote.schema in factgate.toml")
	}
	s, err := schema.Load(path)
	if err != nil {
		return nil, err
	}

	opts := promote.Options{
		MaxSamples:  cfg.Promote.MaxMentionSamples,
		MaxExamples: cfg.Promote.MaxExamples,
		MetricsFile: cfg.Promote.MetricsFile,
	}
	if cmd.Flags().Changed("conf") {
		opts.ConfThr = &f.conf
	} else if cfg.Promote.ConfThr > 0 {
		opts.ConfThr = &cfg.Promote.ConfThr
	}
	if cmd.Flags().Changed("min-evidence") {
		opts.MinEvidence = &f.minEvidence
	} else if cfg.Promote.MinEvidence > 0 {
		opts.MinEvidence = &cfg.Promote.MinEvidence
	}
	if f.metricsFile != "" {
		opts.MetricsFile = f.metricsFile
	}
	return promote.NewEngine(s, opts, logger.ComponentLogger("promote"))
}

func inputsFrom(args []string) promote.Inputs {
	return promote.Inputs{EntityMentions: args[0], RelationMentions: args[1], Linked: args[2]}
}

func runPromote(cmd *cobra.Command, args []string) error {
	if promoteOpts.doctor {
		return doctor(cmd, args, &promoteOpts)
	}
	if err := requireFlag("out", promoteOpts.out); err != nil {
		return err
	}
	e, err := newEngine(cmd, &promoteOpts)
	if err != nil {
		return err
	}

	em := emitter()
	policy := e.Policy()
	em.EmitStage("promote", "promoting into "+promoteOpts.out)
	em.EmitInfo(fmt.Sprintf("%s thresholds: conf_thr=%v min_ev=%d", sym.Promote, policy.ConfThr, policy.MinEvidence))

	rep, err := e.Run(commandContext(cmd, "promote"), inputsFrom(args), promoteOpts.out)
	if err != nil {
		em.EmitError("promote", err)
		return err
	}
	em.EmitComplete("promote", summary(rep.Counts))
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	return doctor(cmd, args, &doctorOpts)
}

func doctor(cmd *cobra.Command, args []string, f *promoteFlags) error {
	if err := requireFlag("out", f.out); err != nil {
		return err
	}
	e, err := newEngine(cmd, f)
	if err != nil {
		return err
	}

	em := emitter()
	em.EmitStage("doctor", "checking inputs against the schema")
	rep, err := e.Doctor(commandContext(cmd, "doctor"), inputsFrom(args), f.out, f.mdOut)
	if rep != nil {
		em.EmitComplete("doctor", map[string]any{
			"blockers":               rep.Blockers,
			"below_threshold_groups": rep.BelowThresholdGroups,
			"relation_groups":        rep.Counts.RelationGroups,
			"canon_entities":         rep.Counts.CanonEntities,
		})
	}
	if err != nil {
		em.EmitError("doctor", err)
	}
	return err
}
