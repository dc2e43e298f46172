// Package maintenance runs periodic background tasks as Go tickers.
// Replaces pg_cron — all scheduled work is driven from Go since the API is
// already a persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/config"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RebuildInterval time.Duration // Cohort percentile index rebuild
	CleanupInterval time.Duration // Stale snapshot row removal
	Season          int
	Levels          []string
}

// DefaultConfig returns sensible production defaults for a season.
func DefaultConfig(cfg *config.Config) Config {
	levels := make([]string, 0, len(config.LevelRegistry))
	for id := range config.LevelRegistry {
		levels = append(levels, id)
	}
	return Config{
		RebuildInterval: cfg.CohortRebuildInterval,
		CleanupInterval: 6 * time.Hour,
		Season:          cfg.CurrentSeason,
		Levels:          levels,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, builder *cohort.Builder, snaps cohort.SnapshotStore, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"rebuild", cfg.RebuildInterval,
		"cleanup", cfg.CleanupInterval,
		"season", cfg.Season)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Scheduled cohort index rebuild. A failed rebuild leaves the prior
	// snapshot authoritative; the next tick retries.
	if cfg.RebuildInterval > 0 {
		t := time.NewTicker(cfg.RebuildInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { rebuild(ctx, builder, cfg, logger) })
	}

	// Delayed stale snapshot cleanup. Publishing never deletes; superseded
	// generations are only removed here, well after any pinned reader has
	// finished loading them.
	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanupStale(ctx, snaps, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

func rebuild(ctx context.Context, builder *cohort.Builder, cfg Config, logger *slog.Logger) {
	result, err := builder.Rebuild(ctx, cfg.Levels, cfg.Season)
	if err != nil {
		logger.Error("Scheduled cohort rebuild failed; prior snapshot remains published",
			"error", err, "summary", result.Summary())
		return
	}
	logger.Info("Scheduled cohort rebuild complete", "summary", result.Summary())
}

func cleanupStale(ctx context.Context, snaps cohort.SnapshotStore, logger *slog.Logger) {
	id, publishedAt, err := snaps.CurrentSnapshot(ctx)
	if err != nil {
		logger.Warn("Cleanup: failed to read snapshot pointer", "error", err)
		return
	}
	// Nothing published yet, or published too recently: readers pinned to
	// the superseded generation may still be loading it. The delete itself
	// only touches rows written before the current publish, so a rebuild
	// inserting under a not-yet-published snapshot ID is never affected.
	if id == uuid.Nil || time.Since(publishedAt) < time.Hour {
		return
	}
	if err := snaps.DeleteStaleSnapshots(ctx, id); err != nil {
		logger.Warn("Cleanup: failed to delete stale snapshot rows", "error", err)
	}
}
