package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend document and chunk counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			docCount, err := a.relational.DocumentCount(ctx)
			if err != nil {
				return err
			}
			ftCount, err := a.fulltext.Count()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:         %s\n", cfg.DataDir)
			fmt.Fprintf(out, "Embedder:         %s (%d dims)\n", a.embedder.ModelName(), a.embedder.Dimensions())
			fmt.Fprintf(out, "Documents:        %d\n", docCount)
			fmt.Fprintf(out, "Vector chunks:    %d\n", a.vector.Count())
			fmt.Fprintf(out, "Full-text chunks: %d\n", ftCount)
			fmt.Fprintf(out, "Cached entries:   %d\n", a.cache.Len())
			return nil
		},
	}
}
