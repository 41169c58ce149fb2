package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/outreachai/internal/service"
)

// ResearchCmd runs one research job in-process and prints the brief.
func ResearchCmd() *cobra.Command {
	var (
		extra      string
		index      bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "research <company input>",
		Short: "Research a target company without the server",
		Long: `Research a target company in-process and print the brief.

The input is free text: a company name, optionally with location and a URL.
Uses the agentic tool loop when the knowledge base is available and falls back
to a single prompt otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, logger, err := loadRuntimeConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{migrate: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.research.Run(ctx, service.ResearchInput{
				Target:  args[0],
				Context: extra,
				Index:   index,
			})
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintln(cmd.OutOrStdout(), out.Brief.Text)
			fmt.Fprintf(os.Stderr, "\nmode=%s turns=%d tool_calls=%d tool_errors=%d partial=%t\n",
				out.Brief.Mode, out.Brief.Turns, out.Brief.ToolCalls, out.Brief.ToolErrors, out.Brief.Partial)
			if out.Brief.Degraded != "" {
				fmt.Fprintf(os.Stderr, "degraded: %s\n", out.Brief.Degraded)
			}
			if out.IndexedChunkID != "" {
				fmt.Fprintf(os.Stderr, "indexed as %s\n", out.IndexedChunkID)
			}
			if out.IndexError != "" {
				fmt.Fprintf(os.Stderr, "index failed: %s\n", out.IndexError)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&extra, "context", "c", "", "Additional context for the researcher")
	cmd.Flags().BoolVar(&index, "index", false, "Store the finished brief as a past outreach record")
	cmd.Flags().BoolVar(&outputJSON, "output", false, "Output as JSON")

	return cmd
}
