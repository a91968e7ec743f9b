package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/config"
	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/sym"
)

// ConfigCmd shows or initialises configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Config + " Show or initialize configuration",
	Long: sym.Config + ` config - show or initialize configuration

Configuration sources (lowest to highest precedence):
1. Default values
2. System config (/etc/factgate/config.toml)
3. User config (~/.factgate/config.toml)
4. Project config (nearest factgate.toml walking up from the working directory)
5. --config file
6. Environment variables (FACTGATE_* prefix, e.g. FACTGATE_REGISTRY_PATH)
7. Command line flags

Examples:
  factgate config init                 # write ./factgate.toml with defaults
  factgate config show                 # print the effective configuration
  factgate config show --format json`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Long: `Write the default configuration as TOML to path (default ./factgate.toml).
An existing file is rotated to .back1 (older copies to .back2 and .back3).`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  exactArgs(0),
	RunE:  runConfigShow,
}

var configFormat string

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml or json")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ProjectFile
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.Save(config.Defaults(), path); err != nil {
		return err
	}
	printf(cmd, "%s Wrote %s\n", sym.Config, path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	switch configFormat {
	case "json":
		return printJSON(cmd, cfg)
	case "toml":
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return errors.Wrap(err, "write config")
	default:
		return errors.NewInvalidRequestError("unknown format %q (want toml or json)", configFormat)
	}
}
