// Package aggregate computes per-player rate metrics from pitch-event and
// game-log counts within a lookback window. It is pure read/compute: counts
// come from an EventSource, rates are derived here, and anything below the
// qualifying sample floor is reported as insufficient rather than returned.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farmsight/farmsight-data/internal/config"
)

// Sentinel errors. Callers must treat both identically: a sample one event
// below the minimum is the same as no sample at all.
var (
	ErrNoData           = errors.New("no event data for player in window")
	ErrInsufficientData = errors.New("sample below qualifying minimum")
)

// Window is a half-open date range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Halves splits the window into (prior, recent) halves of equal length.
func (w Window) Halves() (Window, Window) {
	mid := w.From.Add(w.To.Sub(w.From) / 2)
	return Window{From: w.From, To: mid}, Window{From: mid, To: w.To}
}

// BattingCounts are raw event counts for one batter in one window.
type BattingCounts struct {
	Pitches        int
	Swings         int
	Contacts       int
	Whiffs         int
	OutZonePitches int
	OutZoneSwings  int
	BattedBalls    int
	HardHit        int
	ExitVeloP90    float64
}

// PitchingCounts are raw event counts for one pitcher in one window.
type PitchingCounts struct {
	Pitches         int
	InZone          int
	Swings          int
	Whiffs          int
	OutZonePitches  int
	OutZoneSwings   int
	BattedBalls     int
	HardContact     int
	AvgFastballVelo float64
	FastballCount   int
}

// GameLogTotals are summed game-log counting stats for one player.
type GameLogTotals struct {
	Games        int
	OnBaseNum    int
	OnBaseDen    int
	TotalBases   int
	AtBats       int
	EarnedRuns   int
	OutsRecorded int
}

// EventSource supplies raw counts from the event/game store. Implemented by
// internal/store against Postgres; faked in tests.
type EventSource interface {
	BattingCounts(ctx context.Context, playerID int, level string, season int, w Window) (BattingCounts, error)
	PitchingCounts(ctx context.Context, playerID int, level string, season int, w Window) (PitchingCounts, error)
	GameLogTotals(ctx context.Context, playerID int, role Role, level string, season int, w Window) (GameLogTotals, error)
}

// MetricSet holds computed rate metrics for one (player, level, season,
// window). Metrics with an undefined denominator are absent from Values.
type MetricSet struct {
	PlayerID   int
	Role       Role
	Level      string
	Season     int
	SampleSize int
	Values     map[Metric]float64
}

// Aggregator turns raw counts into qualified metric sets.
type Aggregator struct {
	source EventSource
}

// New creates an Aggregator over an event source.
func New(source EventSource) *Aggregator {
	return &Aggregator{source: source}
}

// PitchMetricSet computes the pitch-level metric set for a player, or
// returns ErrNoData / ErrInsufficientData. Sample floors: batted-ball
// events for batters, pitches thrown for pitchers.
func (a *Aggregator) PitchMetricSet(ctx context.Context, playerID int, role Role, level string, season int, w Window) (*MetricSet, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if role == RolePitching {
		return a.pitchingSet(ctx, playerID, level, season, w)
	}
	return a.battingSet(ctx, playerID, level, season, w)
}

func (a *Aggregator) battingSet(ctx context.Context, playerID int, level string, season int, w Window) (*MetricSet, error) {
	c, err := a.source.BattingCounts(ctx, playerID, level, season, w)
	if err != nil {
		return nil, fmt.Errorf("batting counts for player %d: %w", playerID, err)
	}
	if c.Pitches == 0 {
		return nil, ErrNoData
	}
	if c.BattedBalls < config.MinBattedBallEvents {
		return nil, ErrInsufficientData
	}

	return &MetricSet{
		PlayerID:   playerID,
		Role:       RoleBatting,
		Level:      level,
		Season:     season,
		SampleSize: c.BattedBalls,
		Values:     BattingValues(c),
	}, nil
}

func (a *Aggregator) pitchingSet(ctx context.Context, playerID int, level string, season int, w Window) (*MetricSet, error) {
	c, err := a.source.PitchingCounts(ctx, playerID, level, season, w)
	if err != nil {
		return nil, fmt.Errorf("pitching counts for player %d: %w", playerID, err)
	}
	if c.Pitches == 0 {
		return nil, ErrNoData
	}
	if c.Pitches < config.MinPitchesThrown {
		return nil, ErrInsufficientData
	}

	return &MetricSet{
		PlayerID:   playerID,
		Role:       RolePitching,
		Level:      level,
		Season:     season,
		SampleSize: c.Pitches,
		Values:     PitchingValues(c),
	}, nil
}

// BattingValues computes the batting rate metrics from raw counts. Metrics
// with a zero denominator are omitted. Shared by the per-player path and
// the cohort index build so both sides use identical rate definitions.
func BattingValues(c BattingCounts) map[Metric]float64 {
	values := make(map[Metric]float64)
	putRate(values, MetricContactRate, c.Contacts, c.Swings)
	putRate(values, MetricWhiffRate, c.Whiffs, c.Swings)
	putRate(values, MetricChaseRate, c.OutZoneSwings, c.OutZonePitches)
	putRate(values, MetricHardHitRate, c.HardHit, c.BattedBalls)
	if c.ExitVeloP90 > 0 {
		values[MetricExitVeloP90] = c.ExitVeloP90
	}
	return values
}

// PitchingValues computes the pitching rate metrics from raw counts.
func PitchingValues(c PitchingCounts) map[Metric]float64 {
	values := make(map[Metric]float64)
	putRate(values, MetricWhiffRateInduced, c.Whiffs, c.Swings)
	putRate(values, MetricZoneRate, c.InZone, c.Pitches)
	putRate(values, MetricHardContactRate, c.HardContact, c.BattedBalls)
	putRate(values, MetricChaseRateInduced, c.OutZoneSwings, c.OutZonePitches)
	if c.FastballCount > 0 {
		values[MetricAvgFastballVelo] = c.AvgFastballVelo
	}
	return values
}

// GameLogMetricSet computes the fallback tier metric (OPS for batters, ERA
// for pitchers) from game-log totals, or returns ErrNoData /
// ErrInsufficientData against the minimum-games floor.
func (a *Aggregator) GameLogMetricSet(ctx context.Context, playerID int, role Role, level string, season int, w Window) (*MetricSet, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	t, err := a.source.GameLogTotals(ctx, playerID, role, level, season, w)
	if err != nil {
		return nil, fmt.Errorf("game-log totals for player %d: %w", playerID, err)
	}
	if t.Games == 0 {
		return nil, ErrNoData
	}
	if t.Games < config.MinGameLogGames {
		return nil, ErrInsufficientData
	}

	values := make(map[Metric]float64)
	if role == RolePitching {
		if era, ok := ERA(t.EarnedRuns, t.OutsRecorded); ok {
			values[MetricERA] = era
		}
	} else {
		if ops, ok := OPS(t); ok {
			values[MetricOPS] = ops
		}
	}
	if len(values) == 0 {
		return nil, ErrInsufficientData
	}

	return &MetricSet{
		PlayerID:   playerID,
		Role:       role,
		Level:      level,
		Season:     season,
		SampleSize: t.Games,
		Values:     values,
	}, nil
}

// OPS computes on-base plus slugging from game-log totals. Returns false
// when either denominator is zero.
func OPS(t GameLogTotals) (float64, bool) {
	if t.OnBaseDen == 0 || t.AtBats == 0 {
		return 0, false
	}
	obp := float64(t.OnBaseNum) / float64(t.OnBaseDen)
	slg := float64(t.TotalBases) / float64(t.AtBats)
	return obp + slg, true
}

// ERA computes earned run average per nine innings. Returns false when no
// outs were recorded.
func ERA(earnedRuns, outsRecorded int) (float64, bool) {
	if outsRecorded == 0 {
		return 0, false
	}
	innings := float64(outsRecorded) / 3.0
	return float64(earnedRuns) * 9.0 / innings, true
}

// putRate records num/den under the metric name, skipping it entirely when
// the denominator is zero. An undefined rate is absent, never zero.
func putRate(values map[Metric]float64, m Metric, num, den int) {
	if den == 0 {
		return
	}
	values[m] = float64(num) / float64(den)
}
