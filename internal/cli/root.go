// Package cli implements the pacer command line: it runs the engine against
// the headless software window and reports on it.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/osmike/pacer/internal/config"
	"github.com/osmike/pacer/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the pacer CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pacer",
		Short: "Priority-tiered frame scheduler",
		Long:  "pacer drives a render loop from a tiered task scheduler, assembling each frame while the previous one draws.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded := config.Default()
			if flagConfig != "" {
				var err error
				if loaded, err = config.Load(flagConfig); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("log-level") || loaded.LogLevel == "" {
				loaded.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") || loaded.LogFormat == "" {
				loaded.LogFormat = flagLogFormat
			}
			if flagDebug {
				loaded.LogLevel = "debug"
			}
			cfg = loaded
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newThreadsCmd(),
		newConfigCmd(),
	)

	return root
}
