package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/coref"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/sym"
)

// CorefCmd resolves pronouns within each document.
var CorefCmd = &cobra.Command{
	Use:   "coref <er_dir>",
	Short: sym.Coref + " Resolve pronouns to in-document antecedents",
	Long: sym.Coref + ` coref - resolve pronouns to in-document antecedents

Reads every *.entities.jsonl under <er_dir>, resolves pronoun mentions to an
earlier mention of the same document and writes the annotated file, plus a
*.chains.jsonl file, to the same relative path under --out.

Examples:
  factgate coref er/ --out coref/
  factgate coref er/ --out coref/ --max-sent-back 2`,
	Args: exactArgs(1),
	RunE: runCoref,
}

var (
	corefOut             string
	corefMaxSentBack     int
	corefMaxMentionsBack int
)

func init() {
	CorefCmd.Flags().StringVar(&corefOut, "out", "", "Output directory (required)")
	CorefCmd.Flags().IntVar(&corefMaxSentBack, "max-sent-back", 3, "Largest sentence distance to an antecedent (default from config)")
	CorefCmd.Flags().IntVar(&corefMaxMentionsBack, "max-mentions-back", 30, "Candidates collected per pronoun (default from config)")
}

func runCoref(cmd *cobra.Command, args []string) error {
	if err := requireFlag("out", corefOut); err != nil {
		return err
	}

	opts := coref.Options{MaxSentBack: cfg.Coref.MaxSentBack, MaxMentionsBack: cfg.Coref.MaxMentionsBack}
	if cmd.Flags().Changed("max-sent-back") {
		opts.MaxSentBack = corefMaxSentBack
	}
	if cmd.Flags().Changed("max-mentions-back") {
		opts.MaxMentionsBack = corefMaxMentionsBack
	}

	em := emitter()
	em.EmitStage("coref", "resolving "+args[0])

	stage := coref.NewStage(opts, logger.ComponentLogger("coref"))
	stage.OnFile = func(path string, done, total int) {
		em.EmitProgress("coref", done, total, path)
	}
	rep, err := stage.Run(commandContext(cmd, "coref"), args[0], corefOut)
	if err != nil {
		em.EmitError("coref", err)
		return err
	}
	em.EmitComplete("coref", summary(rep))
	return nil
}
