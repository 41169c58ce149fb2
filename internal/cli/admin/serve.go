package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/api/handlers"
	"github.com/cloo-solutions/outreachai/internal/api/middleware"
	"github.com/cloo-solutions/outreachai/internal/jobs"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the outreach research API server and the outreach history importer",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default OUTREACH_PORT or 8080)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	var importer *jobs.Worker
	if store := knowledge.StoreOf(rt.status); store != nil && cfg.OutreachDir != "" {
		processor := jobs.NewOutreachImporter(cfg.OutreachDir, store, logger)
		importer = jobs.NewWorker("outreach-import", processor, cfg.ImportInterval, logger)
		importer.Start(ctx)
	}

	var validator middleware.TokenValidator
	if cfg.APIToken != "" {
		validator = middleware.StaticToken{Token: cfg.APIToken}
	} else {
		logger.Warn("OUTREACH_API_TOKEN is empty, /v1 routes are unauthenticated")
	}

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:   validator,
		Logger:           logger,
		ResearchHandler:  handlers.NewResearchHandler(rt.research),
		KnowledgeHandler: handlers.NewKnowledgeHandler(rt.knowledge),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("mode", string(rt.researcher.Mode())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	if importer != nil {
		importer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
