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
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/core"
	_ "github.com/JonMunkholm/ingest/internal/core/tables" // register importable tables
	"github.com/JonMunkholm/ingest/internal/filegate"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/JonMunkholm/ingest/internal/store/postgres"
	"github.com/JonMunkholm/ingest/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Overload lets a local .env win over inherited variables.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.New(pool, cfg.Database.Schema, cfg.Import.BatchSize)
	if cfg.Database.AutoMigrate {
		if err := store.EnsureTables(ctx, core.All()); err != nil {
			return err
		}
	}

	files, err := filegate.New(filegate.Config{
		UploadRoot:        cfg.Storage.UploadRoot,
		DownloadRoot:      cfg.Storage.DownloadRoot,
		URLPrefix:         cfg.Storage.URLPrefix,
		MachineID:         cfg.Storage.MachineID,
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		ChunkSize:         cfg.Storage.ChunkSize,
		MaxFileSize:       cfg.Storage.MaxFileSize,
	})
	if err != nil {
		return err
	}

	service := core.NewService(files, store, core.ServiceConfig{
		ImportTimeout:        cfg.Import.Timeout,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxWaitTime:          cfg.Import.MaxWaitTime,
	})
	slog.Info("tables registered", "count", len(service.ListTables()))

	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Cleanup.Enabled {
		g.Go(func() error {
			service.StartDownloadSweeper(gctx, core.SweepConfig{
				Retention: cfg.Cleanup.DownloadRetention,
				Interval:  cfg.Cleanup.Interval,
			})
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to finish", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not finish in time", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
