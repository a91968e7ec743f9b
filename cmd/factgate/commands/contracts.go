package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/contracts"
	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/sym"
)

// ContractsCmd checks records produced by the upstream stages.
var ContractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: sym.Contracts + " Check upstream extractor and segmenter records",
}

var contractsVerifyCmd = &cobra.Command{
	Use:   "verify <document.json> <sentences.jsonl>",
	Short: "Check that every sentence slices back into its page text",
	Long: `Compare each sentence's text with the page text between char_start and
char_end. Offsets count characters, not bytes. Exits 2 on any mismatch.

Examples:
  factgate contracts verify extract/doc1.json segment/doc1.sentences.jsonl`,
	Args: exactArgs(2),
	RunE: runContractsVerify,
}

func init() {
	ContractsCmd.AddCommand(contractsVerifyCmd)
}

func runContractsVerify(cmd *cobra.Command, args []string) error {
	n, err := contracts.VerifyFiles(args[0], args[1], logger.ComponentLogger("contracts"))
	if err != nil {
		for _, d := range errors.GetAllDetails(err) {
			printf(cmd, "  %s\n", d)
		}
		return err
	}
	printf(cmd, "%s %d sentence(s) match their page text\n", sym.Contracts, n)
	return nil
}
