package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// StatusResponse mirrors GET /v1/knowledge/status.
type StatusResponse struct {
	Ready    bool           `json:"ready"`
	Reason   string         `json:"reason,omitempty"`
	Total    int            `json:"total"`
	BySource map[string]int `json:"by_source"`
	Embedder string         `json:"embedder,omitempty"`
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := NewAPIClientWithCmd(cmd)

			resp, err := api.Get(commandContext(cmd), "/v1/knowledge/status")
			if err != nil {
				return fmt.Errorf("status failed: %w", err)
			}

			var out StatusResponse
			if err := decodeData(resp, &out); err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			noColor, _ := cmd.Flags().GetBool("no-color")
			NewPrinter(cmd.OutOrStdout(), noColor).Status(&out)
			return nil
		},
	}
}
