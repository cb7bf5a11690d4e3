// Package cmd provides the CLI commands for docfed.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/logging"
	"github.com/devdocai/docfed/pkg/version"
)

var (
	cfgPath   string
	debugMode bool

	cfg            *config.Config
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docfed CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docfed",
		Short: "Federated documentation ingestion and query engine",
		Long: `docfed ingests markdown documentation into a set of local backends
(vector, graph, relational, full-text, cache) and answers natural-language
queries by routing them to the right backends and fusing the results.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docfed version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: <data-dir>/docfed.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupConfigAndLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupConfigAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
