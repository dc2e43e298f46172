package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/composite"
	"github.com/farmsight/farmsight-data/internal/config"
	"github.com/farmsight/farmsight-data/internal/percentile"
	"github.com/farmsight/farmsight-data/internal/trend"
)

// ErrInvalidInput marks per-player input problems (unknown level, bad age).
// The player is logged and excluded; the run continues for everyone else.
var ErrInvalidInput = errors.New("invalid player input")

// MetadataSource supplies player metadata for the tracked prospect pool.
type MetadataSource interface {
	TrackedProspects(ctx context.Context) ([]PlayerMeta, error)
	PlayerMeta(ctx context.Context, playerID int) (PlayerMeta, error)
}

// GradeSource supplies scouting base grades. The bool is false when no
// grade exists for the report year.
type GradeSource interface {
	BaseGrade(ctx context.Context, playerID, reportYear int) (float64, bool, error)
}

// Engine generates full composite rankings. Each run pins one cohort
// snapshot and is read-only against shared state, so player scoring is
// safely parallel and the run is abortable between players.
type Engine struct {
	agg      *aggregate.Aggregator
	meta     MetadataSource
	grades   GradeSource
	snaps    cohort.SnapshotStore
	cfg      *config.Config
	logger   *slog.Logger
	batting  *composite.WeightTable
	pitching *composite.WeightTable
}

// New creates an Engine with the default per-role weight tables.
func New(agg *aggregate.Aggregator, meta MetadataSource, grades GradeSource, snaps cohort.SnapshotStore, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		agg:      agg,
		meta:     meta,
		grades:   grades,
		snaps:    snaps,
		cfg:      cfg,
		logger:   logger,
		batting:  composite.DefaultBatting(),
		pitching: composite.DefaultPitching(),
	}
}

// Generate scores every tracked prospect against the pinned cohort
// snapshot and returns the fully sorted ranking. Deterministic for a given
// snapshot and event store state, so it is safe to invoke repeatedly for
// cache fills.
func (e *Engine) Generate(ctx context.Context, season int, now time.Time) (*RunResult, error) {
	start := time.Now()

	snapshot, err := cohort.LoadCurrent(ctx, e.snaps)
	if err != nil {
		return nil, fmt.Errorf("pin cohort snapshot: %w", err)
	}

	players, err := e.meta.TrackedProspects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked prospects: %w", err)
	}

	run := &RunResult{
		RunID:       uuid.New(),
		SnapshotID:  snapshot.ID,
		Season:      season,
		GeneratedAt: now,
	}
	window := e.window(now)

	workers := e.cfg.RankingWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(players) {
		workers = len(players)
	}

	ch := make(chan PlayerMeta, len(players))
	for _, p := range players {
		ch <- p
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result, err := e.scorePlayer(ctx, snapshot, p, season, window)
				mu.Lock()
				switch {
				case errors.Is(err, ErrInvalidInput):
					run.Skipped++
					run.Errors = append(run.Errors, err.Error())
					e.logger.Warn("player excluded from ranking", "player_id", p.ID, "error", err)
				case errors.Is(err, errNoBaseGrade):
					if e.cfg.IncludeUnscored {
						run.Unscored = append(run.Unscored, *result)
					} else {
						run.Skipped++
					}
				case err != nil:
					run.Skipped++
					run.Errors = append(run.Errors, err.Error())
					e.logger.Error("player scoring failed", "player_id", p.ID, "error", err)
				default:
					run.Ranked = append(run.Ranked, *result)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortResults(run.Ranked)
	for i := range run.Ranked {
		run.Ranked[i].Rank = i + 1
	}
	sortResults(run.Unscored)

	run.Duration = time.Since(start)
	e.logger.Info("ranking run complete",
		"run_id", run.RunID,
		"snapshot", run.SnapshotID,
		"season", season,
		"ranked", len(run.Ranked),
		"skipped", run.Skipped,
		"duration", run.Duration.Round(time.Millisecond))
	return run, nil
}

// ScorePlayer computes a single player's result against the current
// snapshot. Used by the diagnostics CLI and the per-player API endpoint.
func (e *Engine) ScorePlayer(ctx context.Context, playerID, season int, now time.Time) (*Result, error) {
	snapshot, err := cohort.LoadCurrent(ctx, e.snaps)
	if err != nil {
		return nil, fmt.Errorf("pin cohort snapshot: %w", err)
	}
	p, err := e.meta.PlayerMeta(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("player metadata for %d: %w", playerID, err)
	}
	return e.scorePlayer(ctx, snapshot, p, season, e.window(now))
}

var errNoBaseGrade = errors.New("no base grade for report year")

func (e *Engine) window(now time.Time) aggregate.Window {
	days := e.cfg.LookbackDays
	if days <= 0 {
		days = 60
	}
	return aggregate.Window{From: now.AddDate(0, 0, -days), To: now}
}

func (e *Engine) table(role aggregate.Role) *composite.WeightTable {
	if role == aggregate.RolePitching {
		return e.pitching
	}
	return e.batting
}

// scorePlayer runs the full scoring pipeline for one player: validation,
// base grade, degradation waterfall, trend, age bonus, capped composite.
func (e *Engine) scorePlayer(ctx context.Context, snapshot *cohort.Snapshot, p PlayerMeta, season int, window aggregate.Window) (*Result, error) {
	if !config.KnownLevel(p.Level) {
		return nil, fmt.Errorf("%w: player %d has unknown level %q", ErrInvalidInput, p.ID, p.Level)
	}
	if p.Age <= 0 {
		return nil, fmt.Errorf("%w: player %d has non-positive age %v", ErrInvalidInput, p.ID, p.Age)
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("%w: player %d has unknown role %q", ErrInvalidInput, p.ID, p.Role)
	}

	result := &Result{
		PlayerID: p.ID,
		Name:     p.Name,
		Age:      p.Age,
		Level:    p.Level,
		Role:     p.Role,
	}

	grade, hasGrade, err := e.grades.BaseGrade(ctx, p.ID, season)
	if err != nil {
		return nil, fmt.Errorf("base grade for player %d: %w", p.ID, err)
	}
	if !hasGrade {
		result.Breakdown.Source = composite.SourceNone
		return result, errNoBaseGrade
	}
	result.BaseGrade = grade

	perfMod, breakdown, err := e.performance(ctx, snapshot, p, season, window)
	if err != nil {
		return nil, err
	}
	result.PerformanceModifier = perfMod
	result.Breakdown = breakdown

	result.TrendAdjustment = e.trendAdjustment(ctx, p, season, window, breakdown.Source)
	result.AgeBonus = trend.AgeBonus(p.Age, config.LevelRegistry[p.Level].BenchmarkAge)
	result.CompositeScore = CappedComposite(grade, perfMod, result.TrendAdjustment, result.AgeBonus)
	return result, nil
}

// performance walks the degradation waterfall: pitch data, then game logs,
// then nothing. Exactly one tier serves a player per run; the chosen tier
// is recorded in the breakdown and never mixed.
func (e *Engine) performance(ctx context.Context, snapshot *cohort.Snapshot, p PlayerMeta, season int, window aggregate.Window) (float64, Breakdown, error) {
	// Tier 1: pitch-level metric set
	set, err := e.agg.PitchMetricSet(ctx, p.ID, p.Role, p.Level, season, window)
	switch {
	case err == nil:
		mod, bd := e.pitchTier(snapshot, set, season)
		return mod, bd, nil
	case !degradable(err):
		return 0, Breakdown{}, fmt.Errorf("pitch metrics for player %d: %w", p.ID, err)
	}

	// Tier 2: game-log fallback metric
	set, err = e.agg.GameLogMetricSet(ctx, p.ID, p.Role, p.Level, season, window)
	switch {
	case err == nil:
		mod, bd := e.gameLogTier(snapshot, set, season)
		return mod, bd, nil
	case !degradable(err):
		return 0, Breakdown{}, fmt.Errorf("game-log metrics for player %d: %w", p.ID, err)
	}

	// Tier 3: grade only
	return 0, Breakdown{Source: composite.SourceNone}, nil
}

func (e *Engine) pitchTier(snapshot *cohort.Snapshot, set *aggregate.MetricSet, season int) (float64, Breakdown) {
	table := e.table(set.Role)
	estimates := make(map[aggregate.Metric]percentile.Estimate, len(set.Values))
	percentiles := make(map[aggregate.Metric]float64, len(set.Values))
	seasons := make(map[aggregate.Metric]int, len(set.Values))

	for m, v := range set.Values {
		bp, served, ok := snapshot.LookupWithFallback(m, set.Level, season, e.cfg.FallbackPriorSeason)
		if !ok {
			estimates[m] = percentile.NeutralEstimate()
		} else {
			estimates[m] = percentile.Map(v, bp)
			seasons[m] = served
		}
		percentiles[m] = estimates[m].Percentile
	}

	bd := Breakdown{
		Source:        composite.SourcePitchData,
		SampleSize:    set.SampleSize,
		CohortSeasons: seasons,
		Metrics:       set.Values,
		Percentiles:   percentiles,
	}

	comp, ok := table.Composite(estimates)
	if !ok {
		// No weighted metric present at all; neutral composite.
		comp = composite.CompositeResult{Percentile: percentile.Neutral, LowConfidence: true}
	}
	bd.CompositePercentile = comp.Percentile
	bd.LowConfidence = comp.LowConfidence
	return composite.Modifier(comp.Percentile), bd
}

func (e *Engine) gameLogTier(snapshot *cohort.Snapshot, set *aggregate.MetricSet, season int) (float64, Breakdown) {
	metric := aggregate.FallbackMetric(set.Role)
	value := set.Values[metric]

	est := percentile.NeutralEstimate()
	seasons := make(map[aggregate.Metric]int, 1)
	if bp, served, ok := snapshot.LookupWithFallback(metric, set.Level, season, e.cfg.FallbackPriorSeason); ok {
		est = percentile.Map(value, bp)
		seasons[metric] = served
	}

	p := est.Percentile
	if metric == aggregate.MetricERA {
		p = composite.Invert(p)
	}

	bd := Breakdown{
		Source:              composite.SourceGameLogs,
		SampleSize:          set.SampleSize,
		LowConfidence:       est.LowConfidence,
		CohortSeasons:       seasons,
		CompositePercentile: p,
		Metrics:             map[aggregate.Metric]float64{metric: value},
		Percentiles:         map[aggregate.Metric]float64{metric: est.Percentile},
	}
	return composite.Modifier(p), bd
}

// trendAdjustment compares the primary metric across the two window halves
// on the same tier that served the performance modifier. Insufficient data
// in either half zeroes the adjustment.
func (e *Engine) trendAdjustment(ctx context.Context, p PlayerMeta, season int, window aggregate.Window, source composite.Source) float64 {
	priorHalf, recentHalf := window.Halves()

	switch source {
	case composite.SourcePitchData:
		primary := aggregate.PrimaryMetric(p.Role)
		prior, priorOK := e.halfValue(ctx, p, season, priorHalf, primary, false)
		recent, recentOK := e.halfValue(ctx, p, season, recentHalf, primary, false)
		return trend.Adjustment(prior, recent, priorOK, recentOK, e.table(p.Role).Inverted(primary))

	case composite.SourceGameLogs:
		metric := aggregate.FallbackMetric(p.Role)
		prior, priorOK := e.halfValue(ctx, p, season, priorHalf, metric, true)
		recent, recentOK := e.halfValue(ctx, p, season, recentHalf, metric, true)
		return trend.Adjustment(prior, recent, priorOK, recentOK, metric == aggregate.MetricERA)

	default:
		return 0
	}
}

func (e *Engine) halfValue(ctx context.Context, p PlayerMeta, season int, w aggregate.Window, metric aggregate.Metric, gameLog bool) (float64, bool) {
	var set *aggregate.MetricSet
	var err error
	if gameLog {
		set, err = e.agg.GameLogMetricSet(ctx, p.ID, p.Role, p.Level, season, w)
	} else {
		set, err = e.agg.PitchMetricSet(ctx, p.ID, p.Role, p.Level, season, w)
	}
	if err != nil {
		return 0, false
	}
	v, ok := set.Values[metric]
	return v, ok
}

// degradable reports whether an aggregation error means "move down the
// waterfall" rather than "fail the player".
func degradable(err error) bool {
	return errors.Is(err, aggregate.ErrNoData) || errors.Is(err, aggregate.ErrInsufficientData)
}

// sortResults orders by composite score descending, then base grade
// descending, then age ascending (younger wins).
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.BaseGrade != b.BaseGrade {
			return a.BaseGrade > b.BaseGrade
		}
		return a.Age < b.Age
	})
}
