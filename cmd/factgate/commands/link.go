package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/link"
	"github.com/teranos/factgate/link/external"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/registry"
	"github.com/teranos/factgate/sym"
)

// LinkCmd assigns canonical ids across documents.
var LinkCmd = &cobra.Command{
	Use:   "link <input_dir>",
	Short: sym.Link + " Assign canonical ids across documents",
	Long: sym.Link + ` link - assign canonical ids across documents

Groups the mentions of every *.entities.jsonl in <input_dir> (coref output
preferred), resolves each group against the SQLite registry and writes one
sorted linked.entities.jsonl plus _reports/run_report.json under --out.

External ids come from offline caches. Adapters: wikidata, uei (UEI only
applies to organisations).

Examples:
  factgate link coref/ --out linked/ --registry registry.db
  factgate link coref/ --out linked/ --adapters wikidata,uei \
      --wikidata-cache caches/wikidata.json --uei-cache caches/uei.json`,
	Args: exactArgs(1),
	RunE: runLink,
}

var (
	linkOut           string
	linkRegistry      string
	linkAdapters      string
	linkWikidataCache string
	linkUEICache      string
)

func init() {
	LinkCmd.Flags().StringVar(&linkOut, "out", "", "Output directory (required)")
	LinkCmd.Flags().StringVar(&linkRegistry, "registry", "", "Registry database path (default registry.path)")
	LinkCmd.Flags().StringVar(&linkAdapters, "adapters", "", "Comma-separated adapters, e.g. wikidata,uei (default link.adapters)")
	LinkCmd.Flags().StringVar(&linkWikidataCache, "wikidata-cache", "", "Wikidata cache JSON (default link.wikidata_cache)")
	LinkCmd.Flags().StringVar(&linkUEICache, "uei-cache", "", "UEI cache JSON (default link.uei_cache)")
}

func runLink(cmd *cobra.Command, args []string) error {
	if err := requireFlag("out", linkOut); err != nil {
		return err
	}

	lc := cfg.Link
	if cmd.Flags().Changed("adapters") {
		lc.Adapters = splitCSV(linkAdapters)
	}
	if linkWikidataCache != "" {
		lc.WikidataCache = linkWikidataCache
	}
	if linkUEICache != "" {
		lc.UEICache = linkUEICache
	}
	adapters, err := external.Load(lc.Adapters, lc.CachePaths())
	if err != nil {
		return err
	}

	regPath := cfg.Registry.Path
	if linkRegistry != "" {
		regPath = linkRegistry
	}
	log := logger.ComponentLogger("link")
	reg, err := registry.Open(regPath, log)
	if err != nil {
		return err
	}
	defer reg.Close()

	em := emitter()
	em.EmitStage("link", "linking "+args[0]+" against "+regPath)

	rep, err := link.New(reg, adapters, log).Run(commandContext(cmd, "link"), args[0], linkOut,
		func(base string, done, total int) {
			em.EmitProgress("link", done, total, base)
		})
	if err != nil {
		em.EmitError("link", err)
		return err
	}
	em.EmitComplete("link", summary(rep))
	return nil
}
