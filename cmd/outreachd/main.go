package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/outreachai/internal/cli"
	"github.com/cloo-solutions/outreachai/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "outreachd",
		Short: "Outreach research daemon and admin CLI",
		Long:  "Outreach research daemon for running the API server and managing the local knowledge base",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.KBCmd())
	rootCmd.AddCommand(admin.ResearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
