package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ResearchRequest represents the research API request.
type ResearchRequest struct {
	Target       string `json:"target"`
	Context      string `json:"context,omitempty"`
	Index        bool   `json:"index,omitempty"`
	Company      string `json:"company,omitempty"`
	Industry     string `json:"industry,omitempty"`
	DealCategory string `json:"deal_category,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Brief struct {
	RunID      string `json:"run_id"`
	Text       string `json:"text"`
	Mode       string `json:"mode"`
	Turns      int    `json:"turns"`
	ToolCalls  int    `json:"tool_calls"`
	ToolErrors int    `json:"tool_errors"`
	Usage      Usage  `json:"usage"`
	Partial    bool   `json:"partial"`
	Degraded   string `json:"degraded,omitempty"`
}

// ResearchResponse represents the research API response.
type ResearchResponse struct {
	Brief          Brief  `json:"brief"`
	IndexedChunkID string `json:"indexed_chunk_id,omitempty"`
	IndexError     string `json:"index_error,omitempty"`
}

// ResearchCmd creates the research command.
func ResearchCmd() *cobra.Command {
	var req ResearchRequest

	cmd := &cobra.Command{
		Use:   "research <company input>",
		Short: "Research a target company",
		Long: `Asks the server for a research brief on a company.

The input is free text, for example "Acme Plastics, Dayton OH, acmeplastics.com".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Target = args[0]
			return runResearch(cmd, req)
		},
	}

	cmd.Flags().StringVarP(&req.Context, "context", "c", "", "Additional context for the researcher")
	cmd.Flags().BoolVar(&req.Index, "index", false, "Store the brief as a past outreach record")
	cmd.Flags().StringVar(&req.Company, "company", "", "Company name for the stored record (default: derived from input)")
	cmd.Flags().StringVar(&req.Industry, "industry", "", "Industry for the stored record")
	cmd.Flags().StringVar(&req.DealCategory, "deal-category", "", "Deal category for the stored record")

	return cmd
}

func runResearch(cmd *cobra.Command, req ResearchRequest) error {
	api := NewAPIClientWithCmd(cmd)

	resp, err := api.Post(commandContext(cmd), "/v1/research", req)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	var out ResearchResponse
	if err := decodeData(resp, &out); err != nil {
		return err
	}

	if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	NewPrinter(cmd.OutOrStdout(), noColor).Brief(&out)
	return nil
}
