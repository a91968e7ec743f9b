package commands

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/registry"
	"github.com/teranos/factgate/sym"
)

// RegistryCmd inspects the canonical identity registry.
var RegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: sym.Registry + " Inspect the canonical identity registry",
	Long: sym.Registry + ` registry - inspect the canonical identity registry

Examples:
  factgate registry stats
  factgate registry lookup ORG "Acme Corp"
  factgate registry lookup PERSON jane --registry other.db --format json`,
}

var registryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count entities, aliases and external ids",
	Args:  exactArgs(0),
	RunE:  runRegistryStats,
}

var registryLookupCmd = &cobra.Command{
	Use:   "lookup <TYPE> <LABEL>",
	Short: "Show the canonical id, aliases and external ids for a label",
	Long: `Print the canonical id for (TYPE, LABEL). The id is computed even when the
entity has never been linked; aliases and external ids are listed when it has.`,
	Args: exactArgs(2),
	RunE: runRegistryLookup,
}

var (
	registryPath   string
	registryFormat string
)

func init() {
	RegistryCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "Registry database path (default registry.path)")
	RegistryCmd.PersistentFlags().StringVar(&registryFormat, "format", "text", "Output format: text or json")
	RegistryCmd.AddCommand(registryStatsCmd)
	RegistryCmd.AddCommand(registryLookupCmd)
}

func openRegistry() (*registry.Registry, string, error) {
	path := cfg.Registry.Path
	if registryPath != "" {
		path = registryPath
	}
	reg, err := registry.Open(path, logger.ComponentLogger("registry"))
	return reg, path, err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}

func runRegistryStats(cmd *cobra.Command, args []string) error {
	reg, path, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	st, err := reg.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if registryFormat == "json" {
		return printJSON(cmd, st)
	}
	printf(cmd, "%s Registry %s\n", sym.Registry, path)
	printf(cmd, "  Entities:     %d\n", st.Entities)
	printf(cmd, "  Aliases:      %d\n", st.Aliases)
	printf(cmd, "  External ids: %d\n", st.ExternalIDs)
	return nil
}

type lookupResult struct {
	CanonicalID string                `json:"canonical_id"`
	Type        string                `json:"type"`
	Normalized  string                `json:"normalized_label"`
	Known       bool                  `json:"known"`
	PrimaryName string                `json:"primary_name,omitempty"`
	Aliases     []string              `json:"aliases"`
	ExternalIDs []registry.ExternalID `json:"external_ids"`
}

func runRegistryLookup(cmd *cobra.Command, args []string) error {
	typ, label := args[0], args[1]
	res := lookupResult{
		CanonicalID: registry.CanonicalID(typ, label),
		Type:        registry.NormalizeType(typ),
		Normalized:  registry.Normalize(label),
		Aliases:     []string{},
		ExternalIDs: []registry.ExternalID{},
	}

	reg, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := cmd.Context()
	ent, err := reg.Lookup(ctx, typ, label)
	switch {
	case errors.IsNotFoundError(err):
	case err != nil:
		return err
	default:
		res.Known = true
		res.PrimaryName = ent.PrimaryName
		if res.Aliases, err = reg.Aliases(ctx, ent.CanonicalID); err != nil {
			return err
		}
		if res.ExternalIDs, err = reg.ExternalIDs(ctx, ent.CanonicalID); err != nil {
			return err
		}
		if res.Aliases == nil {
			res.Aliases = []string{}
		}
		if res.ExternalIDs == nil {
			res.ExternalIDs = []registry.ExternalID{}
		}
	}

	if registryFormat == "json" {
		return printJSON(cmd, res)
	}
	printf(cmd, "%s %s\n", sym.Registry, res.CanonicalID)
	printf(cmd, "  Key:      %s|%s\n", res.Type, res.Normalized)
	if !res.Known {
		printf(cmd, "  (not in registry yet)\n")
		return nil
	}
	if res.PrimaryName != "" {
		printf(cmd, "  Name:     %s\n", res.PrimaryName)
	}
	printf(cmd, "  Aliases:  %s\n", strings.Join(res.Aliases, ", "))
	for _, x := range res.ExternalIDs {
		printf(cmd, "  %s: %s\n", x.Source, x.ID)
	}
	return nil
}
