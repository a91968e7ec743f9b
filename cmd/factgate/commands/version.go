package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/version"
)

// VersionCmd prints build information.
var VersionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Show factgate version information",
	Long:        `Display version, build time, commit hash, and platform information for the factgate binary.`,
	Args:        exactArgs(0),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if jsonProgress {
			return printJSON(cmd, info)
		}
		printf(cmd, "%s\n", info.String())
		return nil
	},
}
