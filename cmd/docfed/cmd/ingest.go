package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <directory>",
		Short: "Ingest a directory of markdown documentation",
		Long: `Walk the directory for *.md files, process each one, and fan the
results out to every backend. Unchanged files are skipped by checksum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.batcher.Run(ctx, args[0])
			if err != nil {
				return err
			}

			if err := a.saveVector(); err != nil {
				return fmt.Errorf("failed to persist vector index: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %s in %s\n", args[0], stats.Duration.Round(1e6))
			fmt.Fprintf(out, "  total:    %d\n", stats.Total)
			fmt.Fprintf(out, "  accepted: %d\n", stats.Accepted)
			fmt.Fprintf(out, "  skipped:  %d\n", stats.Skipped)
			fmt.Fprintf(out, "  failed:   %d\n", stats.Failed)
			return nil
		},
	}
}
