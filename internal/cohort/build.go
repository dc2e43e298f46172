package cohort

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/config"
)

// BattingPopulationRow is one qualifying batter's season counts at a level.
type BattingPopulationRow struct {
	PlayerID int
	Counts   aggregate.BattingCounts
}

// PitchingPopulationRow is one qualifying pitcher's season counts at a level.
type PitchingPopulationRow struct {
	PlayerID int
	Counts   aggregate.PitchingCounts
}

// GameLogPopulationRow is one player's summed game-log totals at a level.
type GameLogPopulationRow struct {
	PlayerID int
	Totals   aggregate.GameLogTotals
}

// PopulationSource supplies full-population counts for the index build:
// all qualifying players at a level, not just tracked prospects.
type PopulationSource interface {
	BattingPopulation(ctx context.Context, level string, season int) ([]BattingPopulationRow, error)
	PitchingPopulation(ctx context.Context, level string, season int) ([]PitchingPopulationRow, error)
	GameLogPopulation(ctx context.Context, role aggregate.Role, level string, season int) ([]GameLogPopulationRow, error)
}

// BuildResult tracks counts from one index rebuild.
type BuildResult struct {
	SnapshotID     uuid.UUID
	CohortsBuilt   int
	CohortsSkipped int // below minimum cohort size
	Published      bool
	Duration       time.Duration
}

// Summary returns a human-readable summary of the rebuild.
func (r *BuildResult) Summary() string {
	return fmt.Sprintf("snapshot=%s cohorts=%d skipped=%d published=%t",
		r.SnapshotID, r.CohortsBuilt, r.CohortsSkipped, r.Published)
}

// Builder runs the scheduled index rebuild.
type Builder struct {
	pop    PopulationSource
	snaps  SnapshotStore
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(pop PopulationSource, snaps SnapshotStore, logger *slog.Logger) *Builder {
	return &Builder{pop: pop, snaps: snaps, logger: logger}
}

// Rebuild computes breakpoints for every (metric, level) cohort in the
// season and publishes them as one new snapshot. Any failure before the
// pointer flip leaves the prior snapshot authoritative; a partial
// generation is never visible to readers.
func (b *Builder) Rebuild(ctx context.Context, levels []string, season int) (BuildResult, error) {
	start := time.Now()
	result := BuildResult{SnapshotID: uuid.New()}

	var rows []Breakpoints
	for _, level := range levels {
		levelRows, skipped, err := b.buildLevel(ctx, level, season)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("build level %s: %w", level, err)
		}
		rows = append(rows, levelRows...)
		result.CohortsSkipped += skipped
	}
	result.CohortsBuilt = len(rows)

	if err := b.snaps.InsertBreakpoints(ctx, result.SnapshotID, rows); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("write snapshot %s: %w", result.SnapshotID, err)
	}
	if err := b.snaps.PublishSnapshot(ctx, result.SnapshotID); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("publish snapshot %s: %w", result.SnapshotID, err)
	}
	result.Published = true

	// Superseded generations stay behind for the delayed maintenance
	// sweep. Deleting here would race a reader that pinned the previous
	// pointer moments before the flip and has not loaded its rows yet.

	result.Duration = time.Since(start)
	b.logger.Info("cohort index rebuilt",
		"snapshot", result.SnapshotID,
		"season", season,
		"cohorts", result.CohortsBuilt,
		"skipped", result.CohortsSkipped,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// buildLevel computes all cohorts for one (level, season).
func (b *Builder) buildLevel(ctx context.Context, level string, season int) ([]Breakpoints, int, error) {
	var rows []Breakpoints
	skipped := 0

	// Pitch-level batting cohorts
	batting, err := b.pop.BattingPopulation(ctx, level, season)
	if err != nil {
		return nil, 0, fmt.Errorf("batting population: %w", err)
	}
	byMetric := make(map[aggregate.Metric][]float64)
	for _, row := range batting {
		if row.Counts.BattedBalls < config.MinBattedBallEvents {
			continue
		}
		for m, v := range aggregate.BattingValues(row.Counts) {
			byMetric[m] = append(byMetric[m], v)
		}
	}

	// Pitch-level pitching cohorts
	pitching, err := b.pop.PitchingPopulation(ctx, level, season)
	if err != nil {
		return nil, 0, fmt.Errorf("pitching population: %w", err)
	}
	for _, row := range pitching {
		if row.Counts.Pitches < config.MinPitchesThrown {
			continue
		}
		for m, v := range aggregate.PitchingValues(row.Counts) {
			byMetric[m] = append(byMetric[m], v)
		}
	}

	// Game-log fallback cohorts (OPS, ERA)
	for _, role := range []aggregate.Role{aggregate.RoleBatting, aggregate.RolePitching} {
		logs, err := b.pop.GameLogPopulation(ctx, role, level, season)
		if err != nil {
			return nil, 0, fmt.Errorf("game-log population (%s): %w", role, err)
		}
		for _, row := range logs {
			if row.Totals.Games < config.MinGameLogGames {
				continue
			}
			if role == aggregate.RolePitching {
				if era, ok := aggregate.ERA(row.Totals.EarnedRuns, row.Totals.OutsRecorded); ok {
					byMetric[aggregate.MetricERA] = append(byMetric[aggregate.MetricERA], era)
				}
			} else {
				if ops, ok := aggregate.OPS(row.Totals); ok {
					byMetric[aggregate.MetricOPS] = append(byMetric[aggregate.MetricOPS], ops)
				}
			}
		}
	}

	for metric, values := range byMetric {
		bp, ok := Compute(metric, level, season, values)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, bp)
	}
	return rows, skipped, nil
}
