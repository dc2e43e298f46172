// Package store implements the engine's data-source contracts against
// Postgres via pgxpool prepared statements. It is the only package that
// talks to the event/game/grade/metadata tables; everything above it
// consumes interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/rank"
)

// Store bundles all Postgres-backed data sources.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// aggregate.EventSource
// --------------------------------------------------------------------------

// BattingCounts returns raw pitch-event counts for one batter in a window.
func (s *Store) BattingCounts(ctx context.Context, playerID int, level string, season int, w aggregate.Window) (aggregate.BattingCounts, error) {
	var c aggregate.BattingCounts
	err := s.pool.QueryRow(ctx, "agg_batting_window", playerID, level, season, w.From, w.To).Scan(
		&c.Pitches, &c.Swings, &c.Contacts, &c.Whiffs,
		&c.OutZonePitches, &c.OutZoneSwings, &c.BattedBalls, &c.HardHit, &c.ExitVeloP90,
	)
	if err != nil {
		return aggregate.BattingCounts{}, fmt.Errorf("agg_batting_window: %w", err)
	}
	return c, nil
}

// PitchingCounts returns raw pitch-event counts for one pitcher in a window.
func (s *Store) PitchingCounts(ctx context.Context, playerID int, level string, season int, w aggregate.Window) (aggregate.PitchingCounts, error) {
	var c aggregate.PitchingCounts
	err := s.pool.QueryRow(ctx, "agg_pitching_window", playerID, level, season, w.From, w.To).Scan(
		&c.Pitches, &c.InZone, &c.Swings, &c.Whiffs,
		&c.OutZonePitches, &c.OutZoneSwings, &c.BattedBalls, &c.HardContact,
		&c.AvgFastballVelo, &c.FastballCount,
	)
	if err != nil {
		return aggregate.PitchingCounts{}, fmt.Errorf("agg_pitching_window: %w", err)
	}
	return c, nil
}

// GameLogTotals returns summed game-log counting stats for one player.
func (s *Store) GameLogTotals(ctx context.Context, playerID int, role aggregate.Role, level string, season int, w aggregate.Window) (aggregate.GameLogTotals, error) {
	var t aggregate.GameLogTotals
	var err error
	if role == aggregate.RolePitching {
		err = s.pool.QueryRow(ctx, "gamelog_pitching_window", playerID, level, season, w.From, w.To).Scan(
			&t.Games, &t.EarnedRuns, &t.OutsRecorded,
		)
	} else {
		err = s.pool.QueryRow(ctx, "gamelog_batting_window", playerID, level, season, w.From, w.To).Scan(
			&t.Games, &t.OnBaseNum, &t.OnBaseDen, &t.TotalBases, &t.AtBats,
		)
	}
	if err != nil {
		return aggregate.GameLogTotals{}, fmt.Errorf("game-log window (%s): %w", role, err)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// rank.MetadataSource
// --------------------------------------------------------------------------

// TrackedProspects lists every player flagged as a prospect.
func (s *Store) TrackedProspects(ctx context.Context) ([]rank.PlayerMeta, error) {
	rows, err := s.pool.Query(ctx, "tracked_players")
	if err != nil {
		return nil, fmt.Errorf("tracked_players: %w", err)
	}
	defer rows.Close()

	var players []rank.PlayerMeta
	for rows.Next() {
		var p rank.PlayerMeta
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Level, &role); err != nil {
			return nil, fmt.Errorf("scan tracked player: %w", err)
		}
		p.Role = aggregate.Role(role)
		players = append(players, p)
	}
	return players, rows.Err()
}

// PlayerMeta returns one player's metadata.
func (s *Store) PlayerMeta(ctx context.Context, playerID int) (rank.PlayerMeta, error) {
	var p rank.PlayerMeta
	var role string
	err := s.pool.QueryRow(ctx, "player_meta", playerID).Scan(&p.ID, &p.Name, &p.Age, &p.Level, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return rank.PlayerMeta{}, fmt.Errorf("player %d: %w", playerID, rank.ErrInvalidInput)
	}
	if err != nil {
		return rank.PlayerMeta{}, fmt.Errorf("player_meta: %w", err)
	}
	p.Role = aggregate.Role(role)
	return p, nil
}

// --------------------------------------------------------------------------
// rank.GradeSource
// --------------------------------------------------------------------------

// BaseGrade returns the scouting grade for a report year; false when absent.
func (s *Store) BaseGrade(ctx context.Context, playerID, reportYear int) (float64, bool, error) {
	var grade float64
	err := s.pool.QueryRow(ctx, "grade_lookup", playerID, reportYear).Scan(&grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("grade_lookup: %w", err)
	}
	return grade, true, nil
}

// --------------------------------------------------------------------------
// cohort.PopulationSource
// --------------------------------------------------------------------------

// BattingPopulation returns per-batter season counts for one (level, season).
func (s *Store) BattingPopulation(ctx context.Context, level string, season int) ([]cohort.BattingPopulationRow, error) {
	rows, err := s.pool.Query(ctx, "cohort_batting_population", level, season)
	if err != nil {
		return nil, fmt.Errorf("cohort_batting_population: %w", err)
	}
	defer rows.Close()

	var out []cohort.BattingPopulationRow
	for rows.Next() {
		var r cohort.BattingPopulationRow
		c := &r.Counts
		if err := rows.Scan(&r.PlayerID, &c.Pitches, &c.Swings, &c.Contacts, &c.Whiffs,
			&c.OutZonePitches, &c.OutZoneSwings, &c.BattedBalls, &c.HardHit, &c.ExitVeloP90); err != nil {
			return nil, fmt.Errorf("scan batting population row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PitchingPopulation returns per-pitcher season counts for one (level, season).
func (s *Store) PitchingPopulation(ctx context.Context, level string, season int) ([]cohort.PitchingPopulationRow, error) {
	rows, err := s.pool.Query(ctx, "cohort_pitching_population", level, season)
	if err != nil {
		return nil, fmt.Errorf("cohort_pitching_population: %w", err)
	}
	defer rows.Close()

	var out []cohort.PitchingPopulationRow
	for rows.Next() {
		var r cohort.PitchingPopulationRow
		c := &r.Counts
		if err := rows.Scan(&r.PlayerID, &c.Pitches, &c.InZone, &c.Swings, &c.Whiffs,
			&c.OutZonePitches, &c.OutZoneSwings, &c.BattedBalls, &c.HardContact,
			&c.AvgFastballVelo, &c.FastballCount); err != nil {
			return nil, fmt.Errorf("scan pitching population row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GameLogPopulation returns per-player game-log totals for one (role, level, season).
func (s *Store) GameLogPopulation(ctx context.Context, role aggregate.Role, level string, season int) ([]cohort.GameLogPopulationRow, error) {
	rows, err := s.pool.Query(ctx, "cohort_gamelog_population", string(role), level, season)
	if err != nil {
		return nil, fmt.Errorf("cohort_gamelog_population: %w", err)
	}
	defer rows.Close()

	var out []cohort.GameLogPopulationRow
	for rows.Next() {
		var r cohort.GameLogPopulationRow
		t := &r.Totals
		if err := rows.Scan(&r.PlayerID, &t.Games, &t.OnBaseNum, &t.OnBaseDen,
			&t.TotalBases, &t.AtBats, &t.EarnedRuns, &t.OutsRecorded); err != nil {
			return nil, fmt.Errorf("scan game-log population row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --------------------------------------------------------------------------
// cohort.SnapshotStore
// --------------------------------------------------------------------------

// InsertBreakpoints writes a new snapshot's rows. The rows are invisible to
// readers until PublishSnapshot flips the pointer.
func (s *Store) InsertBreakpoints(ctx context.Context, snapshotID uuid.UUID, rows []cohort.Breakpoints) error {
	batch := &pgx.Batch{}
	for _, b := range rows {
		batch.Queue("cohort_insert_row",
			snapshotID, string(b.Metric), b.Level, b.Season,
			b.P10, b.P25, b.P50, b.P75, b.P90, b.CohortSize)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert breakpoint row: %w", err)
		}
	}
	return nil
}

// PublishSnapshot flips the snapshot pointer in a single upsert. Readers
// observe either the old generation or the new one, never a mix. A NOTIFY
// on the publish channel lets API processes invalidate their caches.
func (s *Store) PublishSnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, "cohort_flip_pointer", snapshotID); err != nil {
		return fmt.Errorf("cohort_flip_pointer: %w", err)
	}
	if _, err := s.pool.Exec(ctx, "SELECT pg_notify('cohort_snapshot_published', $1::text)", snapshotID.String()); err != nil {
		// The snapshot is published either way; cache TTLs cover a lost notify.
		return nil
	}
	return nil
}

// DeleteStaleSnapshots removes rows from superseded generations.
func (s *Store) DeleteStaleSnapshots(ctx context.Context, keep uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, "cohort_delete_stale", keep); err != nil {
		return fmt.Errorf("cohort_delete_stale: %w", err)
	}
	return nil
}

// CurrentSnapshot reads the published snapshot pointer. Returns uuid.Nil
// when no snapshot has ever been published.
func (s *Store) CurrentSnapshot(ctx context.Context) (uuid.UUID, time.Time, error) {
	var id uuid.UUID
	var publishedAt time.Time
	err := s.pool.QueryRow(ctx, "cohort_current_snapshot").Scan(&id, &publishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, time.Time{}, nil
	}
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("cohort_current_snapshot: %w", err)
	}
	return id, publishedAt, nil
}

// LoadBreakpoints loads all breakpoint rows for one snapshot.
func (s *Store) LoadBreakpoints(ctx context.Context, snapshotID uuid.UUID) ([]cohort.Breakpoints, error) {
	rows, err := s.pool.Query(ctx, "cohort_breakpoints_all", snapshotID)
	if err != nil {
		return nil, fmt.Errorf("cohort_breakpoints_all: %w", err)
	}
	defer rows.Close()

	var out []cohort.Breakpoints
	for rows.Next() {
		var b cohort.Breakpoints
		var metric string
		if err := rows.Scan(&metric, &b.Level, &b.Season, &b.P10, &b.P25, &b.P50, &b.P75, &b.P90, &b.CohortSize); err != nil {
			return nil, fmt.Errorf("scan breakpoint row: %w", err)
		}
		b.Metric = aggregate.Metric(metric)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Breakpoints reads the currently published breakpoints for one cohort.
// Used by the API cohort endpoint; the bool is false when the cohort is
// absent from the published snapshot.
func (s *Store) Breakpoints(ctx context.Context, metric aggregate.Metric, level string, season int) (cohort.Breakpoints, bool, error) {
	var b cohort.Breakpoints
	var m string
	err := s.pool.QueryRow(ctx, "cohort_breakpoints_one", string(metric), level, season).Scan(
		&m, &b.Level, &b.Season, &b.P10, &b.P25, &b.P50, &b.P75, &b.P90, &b.CohortSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return cohort.Breakpoints{}, false, nil
	}
	if err != nil {
		return cohort.Breakpoints{}, false, fmt.Errorf("cohort_breakpoints_one: %w", err)
	}
	b.Metric = aggregate.Metric(m)
	return b, true, nil
}
