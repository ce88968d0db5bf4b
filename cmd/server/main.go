package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/wabatch/internal/application"
	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
	"github.com/JonMunkholm/wabatch/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend_url", cfg.Messaging.BackendURL,
		"metadata_backend", cfg.Contacts.MetadataBackend,
		"batch_send_delay", cfg.Messaging.BatchSendDelay,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Cancelled on shutdown: stops background jobs and the pause between
	// batch rows, so an active batch ends at its next row.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	app, err := application.New(context.Background(), cfg, core.WithShutdown(jobCtx))
	if err != nil {
		slog.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := web.NewServer(app.Service, app.Client, cfg)

	go app.Service.StartMetadataReconciler(jobCtx, cfg.Maintenance.MetadataReconcileInterval)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := app.Service.SessionStatus(); status.Active > 0 {
			slog.Info("waiting for active send to finish", "active", status.Active)
			if err := app.Service.WaitForSends(shutdownCtx); err != nil {
				slog.Warn("send did not finish in time", "error", err)
			} else {
				slog.Info("active send finished")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		app.Close()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
