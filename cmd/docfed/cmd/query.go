package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devdocai/docfed/internal/query"
)

func newQueryCmd() *cobra.Command {
	var intent string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <text...>",
		Short: "Run a federated query",
		Long: `Classify the query into an intent, dispatch it to the intent's
backends concurrently, and print the fused, ranked results.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.service.Query(ctx, query.Request{
				Text:   strings.Join(args, " "),
				Intent: query.Intent(intent),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintf(out, "Intent:     %s\n", resp.Intent)
			fmt.Fprintf(out, "Backends:   %s\n", strings.Join(resp.Backends, ", "))
			fmt.Fprintf(out, "Confidence: %.2f\n", resp.Confidence)
			fmt.Fprintf(out, "Elapsed:    %s\n\n", resp.Elapsed.Round(1e6))

			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}

			for i, r := range resp.Results {
				snippet := r.Content
				if len(snippet) > 200 {
					snippet = snippet[:200] + "..."
				}
				fmt.Fprintf(out, "%2d. [%.3f] %s (%s)\n    %s\n",
					i+1, r.Score, r.DocumentID, strings.Join(r.Sources, ", "), snippet)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&intent, "intent", "", "Pin the query intent instead of classifying")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}
