// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsight/farmsight-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the ranking engine
// uses. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Aggregation: per-player pitch-event counts within a date window.
		// Counts feed rate computation in Go; every denominator ships back
		// so zero-denominator guards live in one place.
		"agg_batting_window": fmt.Sprintf(`
			SELECT
				count(*)                                                        AS pitches,
				count(*) FILTER (WHERE is_swing)                                AS swings,
				count(*) FILTER (WHERE is_swing AND is_contact)                 AS contacts,
				count(*) FILTER (WHERE is_swing AND NOT is_contact)             AS whiffs,
				count(*) FILTER (WHERE NOT in_zone)                             AS out_zone_pitches,
				count(*) FILTER (WHERE NOT in_zone AND is_swing)                AS out_zone_swings,
				count(*) FILTER (WHERE is_batted_ball)                          AS batted_balls,
				count(*) FILTER (WHERE is_batted_ball AND exit_velocity >= 95)  AS hard_hit,
				COALESCE(percentile_cont(0.9) WITHIN GROUP (ORDER BY exit_velocity)
					FILTER (WHERE is_batted_ball AND exit_velocity IS NOT NULL), 0) AS ev_p90
			FROM %s
			WHERE batter_id = $1 AND level = $2 AND season = $3
			  AND game_date >= $4 AND game_date < $5`, config.PitchEventsTable),

		"agg_pitching_window": fmt.Sprintf(`
			SELECT
				count(*)                                                        AS pitches,
				count(*) FILTER (WHERE in_zone)                                 AS in_zone,
				count(*) FILTER (WHERE is_swing)                                AS swings,
				count(*) FILTER (WHERE is_swing AND NOT is_contact)             AS whiffs,
				count(*) FILTER (WHERE NOT in_zone)                             AS out_zone_pitches,
				count(*) FILTER (WHERE NOT in_zone AND is_swing)                AS out_zone_swings,
				count(*) FILTER (WHERE is_batted_ball)                          AS batted_balls,
				count(*) FILTER (WHERE is_batted_ball AND exit_velocity >= 95)  AS hard_contact,
				COALESCE(avg(pitch_velocity) FILTER (WHERE pitch_type = 'FB'), 0) AS avg_fb_velo,
				count(*) FILTER (WHERE pitch_type = 'FB' AND pitch_velocity IS NOT NULL) AS fb_count
			FROM %s
			WHERE pitcher_id = $1 AND level = $2 AND season = $3
			  AND game_date >= $4 AND game_date < $5`, config.PitchEventsTable),

		// Aggregation: game-log fallbacks (OPS for batters, ERA for pitchers)
		"gamelog_batting_window": fmt.Sprintf(`
			SELECT
				count(*) AS games,
				COALESCE(sum(hits + walks + hbp), 0)      AS on_base_num,
				COALESCE(sum(at_bats + walks + hbp + sac_flies), 0) AS on_base_den,
				COALESCE(sum(total_bases), 0)             AS total_bases,
				COALESCE(sum(at_bats), 0)                 AS at_bats
			FROM %s
			WHERE player_id = $1 AND role = 'batting' AND level = $2 AND season = $3
			  AND game_date >= $4 AND game_date < $5`, config.GameLogsTable),

		"gamelog_pitching_window": fmt.Sprintf(`
			SELECT
				count(*) AS games,
				COALESCE(sum(earned_runs), 0) AS earned_runs,
				COALESCE(sum(outs_recorded), 0) AS outs_recorded
			FROM %s
			WHERE player_id = $1 AND role = 'pitching' AND level = $2 AND season = $3
			  AND game_date >= $4 AND game_date < $5`, config.GameLogsTable),

		// Player metadata
		"player_meta":     fmt.Sprintf("SELECT id, name, age, level, role FROM %s WHERE id = $1", config.PlayersTable),
		"tracked_players": fmt.Sprintf("SELECT id, name, age, level, role FROM %s WHERE is_prospect = true", config.PlayersTable),

		// Scouting grades
		"grade_lookup": fmt.Sprintf("SELECT grade FROM %s WHERE player_id = $1 AND report_year = $2", config.ScoutingGradesTable),

		// Cohort index: snapshot pointer and breakpoint reads
		"cohort_current_snapshot": fmt.Sprintf(
			"SELECT snapshot_id, published_at FROM %s WHERE singleton = true", config.CohortPointerTable),
		"cohort_breakpoints_all": fmt.Sprintf(`
			SELECT metric, level, season, p10, p25, p50, p75, p90, cohort_size
			FROM %s WHERE snapshot_id = $1`, config.CohortPercentileTable),
		"cohort_breakpoints_one": fmt.Sprintf(`
			SELECT cp.metric, cp.level, cp.season, cp.p10, cp.p25, cp.p50, cp.p75, cp.p90, cp.cohort_size
			FROM %s cp
			JOIN %s ptr ON ptr.snapshot_id = cp.snapshot_id
			WHERE ptr.singleton = true AND cp.metric = $1 AND cp.level = $2 AND cp.season = $3`,
			config.CohortPercentileTable, config.CohortPointerTable),

		// Cohort index build: per-player season counts for one (level, season),
		// across ALL qualifying players at that level, not just prospects.
		"cohort_batting_population": fmt.Sprintf(`
			SELECT
				batter_id,
				count(*)                                                        AS pitches,
				count(*) FILTER (WHERE is_swing)                                AS swings,
				count(*) FILTER (WHERE is_swing AND is_contact)                 AS contacts,
				count(*) FILTER (WHERE is_swing AND NOT is_contact)             AS whiffs,
				count(*) FILTER (WHERE NOT in_zone)                             AS out_zone_pitches,
				count(*) FILTER (WHERE NOT in_zone AND is_swing)                AS out_zone_swings,
				count(*) FILTER (WHERE is_batted_ball)                          AS batted_balls,
				count(*) FILTER (WHERE is_batted_ball AND exit_velocity >= 95)  AS hard_hit,
				COALESCE(percentile_cont(0.9) WITHIN GROUP (ORDER BY exit_velocity)
					FILTER (WHERE is_batted_ball AND exit_velocity IS NOT NULL), 0) AS ev_p90
			FROM %s
			WHERE level = $1 AND season = $2 AND batter_id IS NOT NULL
			GROUP BY batter_id`, config.PitchEventsTable),

		"cohort_pitching_population": fmt.Sprintf(`
			SELECT
				pitcher_id,
				count(*)                                                        AS pitches,
				count(*) FILTER (WHERE in_zone)                                 AS in_zone,
				count(*) FILTER (WHERE is_swing)                                AS swings,
				count(*) FILTER (WHERE is_swing AND NOT is_contact)             AS whiffs,
				count(*) FILTER (WHERE NOT in_zone)                             AS out_zone_pitches,
				count(*) FILTER (WHERE NOT in_zone AND is_swing)                AS out_zone_swings,
				count(*) FILTER (WHERE is_batted_ball)                          AS batted_balls,
				count(*) FILTER (WHERE is_batted_ball AND exit_velocity >= 95)  AS hard_contact,
				COALESCE(avg(pitch_velocity) FILTER (WHERE pitch_type = 'FB'), 0) AS avg_fb_velo,
				count(*) FILTER (WHERE pitch_type = 'FB' AND pitch_velocity IS NOT NULL) AS fb_count
			FROM %s
			WHERE level = $1 AND season = $2 AND pitcher_id IS NOT NULL
			GROUP BY pitcher_id`, config.PitchEventsTable),

		"cohort_gamelog_population": fmt.Sprintf(`
			SELECT
				player_id,
				count(*) AS games,
				COALESCE(sum(hits + walks + hbp), 0)                 AS on_base_num,
				COALESCE(sum(at_bats + walks + hbp + sac_flies), 0)  AS on_base_den,
				COALESCE(sum(total_bases), 0)                        AS total_bases,
				COALESCE(sum(at_bats), 0)                            AS at_bats,
				COALESCE(sum(earned_runs), 0)                        AS earned_runs,
				COALESCE(sum(outs_recorded), 0)                      AS outs_recorded
			FROM %s
			WHERE role = $1 AND level = $2 AND season = $3
			GROUP BY player_id`, config.GameLogsTable),

		// Cohort index build: publish and delayed cleanup
		"cohort_insert_row": fmt.Sprintf(`
			INSERT INTO %s
				(snapshot_id, metric, level, season, p10, p25, p50, p75, p90, cohort_size)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, config.CohortPercentileTable),
		"cohort_flip_pointer": fmt.Sprintf(`
			INSERT INTO %s (singleton, snapshot_id, published_at)
			VALUES (true, $1, now())
			ON CONFLICT (singleton) DO UPDATE SET snapshot_id = $1, published_at = now()`,
			config.CohortPointerTable),
		// Only rows written before the current publish are stale; an
		// in-flight rebuild's batch, inserted after the flip under a
		// not-yet-published snapshot ID, is never touched.
		"cohort_delete_stale": fmt.Sprintf(`
			DELETE FROM %s
			WHERE snapshot_id <> $1
			  AND created_at < (SELECT published_at FROM %s WHERE singleton = true)`,
			config.CohortPercentileTable, config.CohortPointerTable),
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
