package core

// scheduler.go runs background maintenance. Currently one job: removing
// stale files from the download directory. The scheduler stops when its
// context is cancelled; a failed sweep is logged and retried next tick.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig controls the download sweeper.
type SweepConfig struct {
	Retention time.Duration // files older than this are removed (default 24h)
	Interval  time.Duration // how often to sweep (default 1h)
}

// StartDownloadSweeper sweeps once immediately, then every Interval, until
// ctx is cancelled.
func (s *Service) StartDownloadSweeper(ctx context.Context, cfg SweepConfig) {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	slog.Info("download sweeper started",
		"retention", cfg.Retention.String(),
		"interval", cfg.Interval.String(),
	)

	s.runSweep(cfg.Retention)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("download sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(cfg.Retention)
		}
	}
}

func (s *Service) runSweep(retention time.Duration) {
	start := time.Now()
	removed, err := s.files.SweepDownloads(start.Add(-retention))
	if err != nil {
		slog.Error("download sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("stale downloads removed",
			"files_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
