package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/factgate/cmd/factgate/commands"
	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "factgate",
	Short: "factgate - deterministic entity linking and fact promotion",
	Long: `factgate - turn noisy entity and relation mentions into vetted facts.

Mentions flow through four stages:
  coref       - resolve pronouns to in-document antecedents
  link        - assign canonical ids across documents
  promote     - gate candidates into facts or quarantine
  quarantine  - summarize what was rejected and why

Examples:
  factgate coref er/ --out coref/
  factgate link coref/ --out linked/ --registry registry.db
  factgate promote ents.jsonl rels.jsonl linked/linked.entities.jsonl --schema schema.yaml --out facts/
  factgate doctor ents.jsonl rels.jsonl linked/linked.entities.jsonl --schema schema.yaml --out facts/
  factgate quarantine summarize facts/quarantine --out facts/_reports/quarantine_summary.md`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: commands.Setup,
}

func init() {
	commands.RegisterPersistentFlags(rootCmd)
	rootCmd.SetFlagErrorFunc(commands.FlagError)

	rootCmd.AddCommand(commands.CorefCmd)
	rootCmd.AddCommand(commands.LinkCmd)
	rootCmd.AddCommand(commands.PromoteCmd)
	rootCmd.AddCommand(commands.DoctorCmd)
	rootCmd.AddCommand(commands.QuarantineCmd)
	rootCmd.AddCommand(commands.RegistryCmd)
	rootCmd.AddCommand(commands.ContractsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", h)
		}
	}
	os.Exit(errors.ExitCode(err))
}
