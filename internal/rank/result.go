// Package rank orchestrates composite score generation: base grade plus
// performance modifier, trend adjustment, and age bonus, capped, sorted,
// and ranked.
package rank

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/composite"
)

// Component blend weights and the total adjustment cap.
const (
	PerformanceWeight = 0.5
	TrendWeight       = 0.3
	AgeWeight         = 0.2
	AdjustmentCap     = 10.0
)

// PlayerMeta is the metadata the orchestrator needs per player.
type PlayerMeta struct {
	ID    int
	Name  string
	Age   float64
	Level string
	Role  aggregate.Role
}

// Breakdown explains how a score was computed: which data tier served it,
// the sample behind it, and the raw metric/percentile detail. CohortSeasons
// records, per metric, which season's cohort served the percentile lookup;
// metrics served by the neutral fallback have no entry.
type Breakdown struct {
	Source              composite.Source             `json:"source"`
	SampleSize          int                          `json:"sample_size"`
	LowConfidence       bool                         `json:"low_confidence"`
	CohortSeasons       map[aggregate.Metric]int     `json:"cohort_seasons,omitempty"`
	CompositePercentile float64                      `json:"composite_percentile"`
	Metrics             map[aggregate.Metric]float64 `json:"metrics,omitempty"`
	Percentiles         map[aggregate.Metric]float64 `json:"percentiles,omitempty"`
}

// Result is one player's fully computed ranking entry. The component
// fields are uncapped; only CompositeScore reflects the adjustment cap.
type Result struct {
	Rank                int            `json:"rank"`
	PlayerID            int            `json:"player_id"`
	Name                string         `json:"name"`
	Age                 float64        `json:"age"`
	Level               string         `json:"level"`
	Role                aggregate.Role `json:"role"`
	CompositeScore      float64        `json:"composite_score"`
	BaseGrade           float64        `json:"base_grade"`
	PerformanceModifier float64        `json:"performance_modifier"`
	TrendAdjustment     float64        `json:"trend_adjustment"`
	AgeBonus            float64        `json:"age_bonus"`
	Breakdown           Breakdown      `json:"breakdown"`
}

// RunResult is the output of one full ranking generation.
type RunResult struct {
	RunID       uuid.UUID     `json:"run_id"`
	SnapshotID  uuid.UUID     `json:"snapshot_id"`
	Season      int           `json:"season"`
	GeneratedAt time.Time     `json:"generated_at"`
	Ranked      []Result      `json:"ranked"`
	Unscored    []Result      `json:"unscored,omitempty"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"-"`
	Errors      []string      `json:"-"`
}

// Summary returns a human-readable summary of the run.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("run=%s ranked=%d unscored=%d skipped=%d errors=%d",
		r.RunID, len(r.Ranked), len(r.Unscored), r.Skipped, len(r.Errors))
}

// CappedComposite applies the blend weights and the total adjustment cap.
// The cap clamps the final adjustment, not the individual components, so
// breakdown consumers still see the uncapped values.
func CappedComposite(base, perfModifier, trendAdj, ageBonus float64) float64 {
	adjustment := PerformanceWeight*perfModifier + TrendWeight*trendAdj + AgeWeight*ageBonus
	if adjustment > AdjustmentCap {
		adjustment = AdjustmentCap
	}
	if adjustment < -AdjustmentCap {
		adjustment = -AdjustmentCap
	}
	return base + adjustment
}
