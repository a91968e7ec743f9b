// Package commands holds one file per factgate verb.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/factgate/config"
	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/progress"
)

const skipConfigAnnotation = "factgate/skip-config"

var (
	configFile   string
	jsonLog      bool
	jsonProgress bool

	cfg       *config.Config
	verbosity int
)

// RegisterPersistentFlags adds the flags every verb understands.
func RegisterPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	root.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Emit logs as JSON on stderr")
	root.PersistentFlags().BoolVar(&jsonProgress, "json", false, "Emit progress as JSON lines on stdout")
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file merged after the default search paths")
}

// Setup loads configuration and initialises the global logger. It runs
// before every verb.
func Setup(cmd *cobra.Command, args []string) error {
	verbosity, _ = cmd.Flags().GetCount("verbose")

	c, err := config.Load(configFile)
	if err != nil {
		if cmd.Annotations[skipConfigAnnotation] == "" {
			return err
		}
		c = config.Defaults()
	}
	cfg = c

	useJSON := jsonLog
	if !cmd.Flags().Changed("json-log") {
		useJSON = cfg.Log.JSON
	}
	if err := logger.Initialize(useJSON, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// FlagError marks flag parsing failures as invalid requests so they exit 2.
func FlagError(cmd *cobra.Command, err error) error {
	return errors.WithHintf(errors.WrapInvalidRequest(err, "invalid flags"), "see: %s --help", cmd.CommandPath())
}

// exactArgs is cobra.ExactArgs with an exit code of 2.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.WithHintf(
				errors.NewInvalidRequestError("%s takes %d argument(s), got %d", cmd.Name(), n, len(args)),
				"usage: %s", cmd.UseLine())
		}
		return nil
	}
}

// commandContext tags the command's context with a fresh run id.
func commandContext(cmd *cobra.Command, component string) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithRunID(ctx, uuid.NewString())
	return logger.WithComponent(ctx, component)
}

func emitter() progress.Emitter {
	return progress.New(jsonProgress, verbosity)
}

// summary turns a report struct into the map progress emitters print.
func summary(report any) map[string]any {
	data, err := json.Marshal(report)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// requireFlag fails with an invalid request when a string flag is empty.
func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInvalidRequestError("--%s is required", name)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
