// Package listener provides a Postgres LISTEN/NOTIFY consumer for cohort
// snapshot publish events. It holds a dedicated pgx connection (not from
// the pool) listening on the `cohort_snapshot_published` channel.
//
// When the index rebuild publishes a new snapshot, the job process fires
// pg_notify and every API process drops its ranking/cohort/metric cache
// entries, honoring the cache's invalidate-on-publish contract.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/farmsight/farmsight-data/internal/cache"
)

const (
	channel          = "cohort_snapshot_published"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Start opens a dedicated connection and listens for snapshot publishes.
// It reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, appCache *cache.Cache, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, appCache, logger)
		if ctx.Err() != nil {
			logger.Info("Snapshot listener stopped (context cancelled)")
			return
		}

		logger.Error("Snapshot listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, appCache *cache.Cache, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Snapshot listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		removed := appCache.InvalidateOnPublish()
		logger.Info("Cohort snapshot published, cache invalidated",
			"snapshot", notification.Payload,
			"entries_removed", removed)
	}
}
