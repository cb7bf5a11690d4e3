package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devdocai/docfed/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and re-ingest markdown files as they change",
		Long: `Run an initial batch ingest of the directory, then watch it for
changes and re-ingest modified files after a debounce window. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipInitial {
				stats, err := a.batcher.Run(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Initial ingest: %d accepted, %d skipped, %d failed\n",
					stats.Accepted, stats.Skipped, stats.Failed)
				if err := a.saveVector(); err != nil {
					return err
				}
			}

			w := watcher.New(a.batcher, cfg.Watch.Debounce, slog.Default())
			err = w.Run(ctx, args[0])

			// Persist whatever the watch session indexed
			if saveErr := a.saveVector(); saveErr != nil {
				slog.Warn("vector_save_failed", "error", saveErr)
			}

			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Skip the initial batch ingest")

	return cmd
}
