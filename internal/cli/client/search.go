package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SearchRequest represents the knowledge search API request.
type SearchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Expand   bool    `json:"expand,omitempty"`
}

// SearchResult represents a search result.
type SearchResult struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Category string  `json:"category"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var req SearchRequest

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long:  "Searches product knowledge and past outreach records by semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			return runSearch(cmd, req)
		},
	}

	cmd.Flags().IntVarP(&req.TopK, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().Float64Var(&req.MinScore, "min-score", 0, "Drop results scoring below this similarity")
	cmd.Flags().BoolVar(&req.Expand, "expand", false, "Also search keyword variants of the query")

	return cmd
}

func runSearch(cmd *cobra.Command, req SearchRequest) error {
	api := NewAPIClientWithCmd(cmd)

	resp, err := api.Post(commandContext(cmd), "/v1/knowledge/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var out SearchResponse
	if err := decodeData(resp, &out); err != nil {
		return err
	}

	if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	NewPrinter(cmd.OutOrStdout(), noColor).SearchResults(out.Results)
	return nil
}
