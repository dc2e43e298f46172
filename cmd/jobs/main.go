// Command jobs is the Farmsight batch operations CLI.
//
// Usage:
//
//	farmsight-jobs cohorts rebuild --season 2026
//	farmsight-jobs cohorts rebuild --season 2026 --level AA --level AAA
//	farmsight-jobs rankings generate --season 2026
//	farmsight-jobs rankings player --id 4821 --season 2026
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/config"
	"github.com/farmsight/farmsight-data/internal/db"
	"github.com/farmsight/farmsight-data/internal/rank"
	"github.com/farmsight/farmsight-data/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "farmsight-jobs",
		Short: "Farmsight batch operations CLI",
	}

	root.AddCommand(cohortsCmd())
	root.AddCommand(rankingsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// cohorts command
// --------------------------------------------------------------------------

func cohortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cohorts",
		Short: "Cohort percentile index operations",
	}
	cmd.AddCommand(cohortsRebuildCmd())
	return cmd
}

func cohortsRebuildCmd() *cobra.Command {
	var season int
	var levels []string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the percentile breakpoint index and publish a new snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if len(levels) == 0 {
					for id := range config.LevelRegistry {
						levels = append(levels, id)
					}
				}
				for _, l := range levels {
					if !config.KnownLevel(l) {
						return fmt.Errorf("unknown level %q", l)
					}
				}

				st := store.New(pool.Pool)
				builder := cohort.NewBuilder(st, st, logger)

				start := time.Now()
				result, err := builder.Rebuild(ctx, levels, season)
				if err != nil {
					logger.Error("Rebuild failed; prior snapshot remains published", "error", err)
					return err
				}
				logger.Info("Cohort rebuild finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&season, "season", 2026, "Season year")
	cmd.Flags().StringArrayVar(&levels, "level", nil, "Levels to rebuild (repeatable; default all)")
	return cmd
}

// --------------------------------------------------------------------------
// rankings command
// --------------------------------------------------------------------------

func rankingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Composite ranking operations",
	}
	cmd.AddCommand(rankingsGenerateCmd())
	cmd.AddCommand(rankingsPlayerCmd())
	return cmd
}

func rankingsGenerateCmd() *cobra.Command {
	var season int
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the full prospect ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				engine := buildEngine(cfg, pool)

				start := time.Now()
				run, err := engine.Generate(ctx, season, time.Now())
				if err != nil {
					return err
				}
				logger.Info("Ranking generation finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", run.Summary())
				for _, e := range run.Errors {
					logger.Warn("ranking warning", "error", e)
				}

				if out != "" {
					data, err := json.MarshalIndent(run, "", "  ")
					if err != nil {
						return fmt.Errorf("encode run: %w", err)
					}
					if err := os.WriteFile(out, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					logger.Info("Ranking written", "path", out)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&season, "season", 2026, "Season year")
	cmd.Flags().StringVar(&out, "out", "", "Write full run JSON to this path")
	return cmd
}

func rankingsPlayerCmd() *cobra.Command {
	var playerID, season int
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Score a single player and print the breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			if playerID == 0 {
				return fmt.Errorf("--id is required")
			}
			return runJob(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				engine := buildEngine(cfg, pool)

				result, err := engine.ScorePlayer(ctx, playerID, season, time.Now())
				if err != nil {
					return fmt.Errorf("score player %d: %w", playerID, err)
				}
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				fmt.Println(string(data))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&playerID, "id", 0, "Player ID to score")
	cmd.Flags().IntVar(&season, "season", 2026, "Season year")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func buildEngine(cfg *config.Config, pool *db.Pool) *rank.Engine {
	st := store.New(pool.Pool)
	agg := aggregate.New(st)
	return rank.New(agg, st, st, st, cfg, logger)
}

// runJob handles config loading, DB connection, and context cancellation.
func runJob(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
