package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/quarantine"
	"github.com/teranos/factgate/sym"
)

// QuarantineCmd groups quarantine reporting verbs.
var QuarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: sym.Quarantine + " Summarize quarantined candidates by reason",
}

var quarantineSummarizeCmd = &cobra.Command{
	Use:   "summarize <quarantine_dir>",
	Short: "Digest quarantine/entities.jsonl and quarantine/relations.jsonl",
	Long: `Tally quarantine reasons, affected predicates and missing merge keys into
a Markdown digest and, with --json-out, a JSON summary.

Examples:
  factgate quarantine summarize facts/quarantine --out facts/_reports/quarantine_summary.md
  factgate quarantine summarize facts/quarantine --out q.md --json-out q.json`,
	Args: exactArgs(1),
	RunE: runQuarantineSummarize,
}

var (
	quarantineOut     string
	quarantineJSONOut string
)

func init() {
	QuarantineCmd.AddCommand(quarantineSummarizeCmd)
	quarantineSummarizeCmd.Flags().StringVar(&quarantineOut, "out", "", "Markdown output path (required)")
	quarantineSummarizeCmd.Flags().StringVar(&quarantineJSONOut, "json-out", "", "Optional JSON summary path")
}

func runQuarantineSummarize(cmd *cobra.Command, args []string) error {
	if err := requireFlag("out", quarantineOut); err != nil {
		return err
	}
	s := quarantine.New(logger.ComponentLogger("quarantine"))
	sum, err := s.Summarize(commandContext(cmd, "quarantine"), args[0])
	if err != nil {
		return err
	}
	if err := s.Write(sum, quarantineOut, quarantineJSONOut); err != nil {
		return err
	}
	emitter().EmitComplete("quarantine", summary(sum.Totals))
	return nil
}
