package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/outreachai/internal/jobs"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/tools"
)

// KBCmd returns the knowledge base command group.
func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
		Long:  "Initialize, query and import into the local knowledge base without starting the server",
	}

	cmd.AddCommand(kbInitCmd())
	cmd.AddCommand(kbQueryCmd())
	cmd.AddCommand(kbImportCmd())

	return cmd
}

func kbInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build or load the knowledge index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := openKnowledge(cmd.Context(), force)
			if err != nil {
				return err
			}
			defer kb.Close()

			fmt.Fprintln(cmd.OutOrStdout(), kb.ready.Status.String())
			if kb.ready.Status.Rebuilt {
				fmt.Fprintf(cmd.OutOrStdout(), "index rebuilt with embedder %s\n", kb.ready.Status.EmbedderID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild the index from scratch, re-embedding stored outreach records")

	return cmd
}

func kbQueryCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a semantic query against the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := openKnowledge(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer kb.Close()

			results, err := kb.ready.Store.Query(cmd.Context(), args[0], topK)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tools.FormatKnowledgeResults(results))
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "limit", "n", knowledge.DefaultTopK, "Number of results")

	return cmd
}

func kbImportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Index past outreach result files once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := openKnowledge(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer kb.Close()

			if dir == "" {
				dir = kb.cfg.OutreachDir
			}
			res, err := jobs.NewOutreachImporter(dir, kb.ready.Store, kb.logger).Import(cmd.Context())
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files: %d indexed, %d already present, %d skipped\n",
				res.Files, res.Indexed, res.Existing, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding outreach_*.json files (default OUTREACH_OUTREACH_DIR)")

	return cmd
}

type openedKnowledge struct {
	*runtime
	ready knowledge.Ready
}

// openKnowledge opens only the store. It fails when the store is unavailable.
func openKnowledge(ctx context.Context, force bool) (*openedKnowledge, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadRuntimeConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}
	switch st := rt.openStore(ctx, runtimeOptions{migrate: true, forceRebuild: force}).(type) {
	case knowledge.Ready:
		return &openedKnowledge{runtime: rt, ready: st}, nil
	case knowledge.Unavailable:
		rt.Close()
		return nil, st.Reason
	default:
		rt.Close()
		return nil, fmt.Errorf("unexpected store status %T", st)
	}
}
