package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/tempchan"
	"github.com/loykin/tempchan/internal/logger"
	"github.com/loykin/tempchan/internal/manager"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	ConfigPath string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the slot manager daemon with the admin HTTP API",
		Long: "Loads the config, reconciles persisted slots against the platform and serves " +
			"the admin API. The built-in platform adapter is in-memory; production " +
			"deployments embed the library with their own adapter.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "config.toml", "path to TOML config")
	return cmd
}

func runServe(parent context.Context, f serveFlags) error {
	fc, err := tempchan.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if fc.Log != nil {
		closer := logger.Setup(*fc.Log)
		if closer != nil {
			defer func() { _ = closer.Close() }()
		}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, st, err := tempchan.NewFromConfig(fc, nil)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer m.Shutdown()

	if fc.Pick.Mode == string(manager.PickManual) {
		go m.RunPendingSweeper(ctx, fc.Pick.SweepInterval)
	}

	srv, err := tempchan.NewHTTPServer(fc.Server.Listen, fc.Server.BasePath, m)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	slog.Info("daemon started", "listen", fc.Server.Listen, "base_path", fc.Server.BasePath,
		"groups", len(fc.Groups), "store", fc.Store.DSN)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		slog.Warn("http shutdown", "error", err)
	}
	return nil
}
