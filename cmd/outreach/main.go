package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/outreachai/internal/cli"
	"github.com/cloo-solutions/outreachai/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "outreach",
		Short: "Outreach CLI - company research for B2B outreach",
		Long: `Outreach CLI talks to a running outreachd server.

Environment variables:
  OUTREACH_API_TOKEN   Bearer token for authentication
  OUTREACH_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cli.BindEnv(rootCmd, "api-token", client.EnvAPIToken)
	cli.BindEnv(rootCmd, "api-url", client.EnvAPIURL)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ResearchCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.StatusCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
