// Package percentile maps a raw metric value onto an estimated percentile
// rank within its cohort by interpolating against published breakpoints.
package percentile

import (
	"math"

	"github.com/farmsight/farmsight-data/internal/cohort"
)

// Extrapolation floors and ceilings. Values past the known breakpoints are
// pinned rather than extrapolated, so one extreme outlier cannot map to a
// percentile outside [0,100].
const (
	floorPercentile   = 5
	ceilingPercentile = 95
	// Neutral is the percentile assumed when no breakpoints exist for a
	// cohort; results built on it are flagged low confidence.
	Neutral = 50
)

// Estimate is a mapped percentile. LowConfidence marks estimates produced
// from the neutral fallback instead of real cohort data, so callers can
// surface the distinction instead of presenting a default as a measurement.
type Estimate struct {
	Percentile    float64
	LowConfidence bool
}

// NeutralEstimate returns the fallback estimate for a missing cohort.
func NeutralEstimate() Estimate {
	return Estimate{Percentile: Neutral, LowConfidence: true}
}

// Map converts a raw metric value into an estimated percentile in [0,100]
// using piecewise-linear interpolation between the five breakpoints.
// Below p10 the estimate pins to 5, above p90 to 95. The function is total
// and deterministic; a NaN input maps to the neutral estimate.
func Map(value float64, bp cohort.Breakpoints) Estimate {
	if math.IsNaN(value) {
		return NeutralEstimate()
	}

	anchors := [5]struct {
		pct float64
		val float64
	}{
		{10, bp.P10},
		{25, bp.P25},
		{50, bp.P50},
		{75, bp.P75},
		{90, bp.P90},
	}

	if value < anchors[0].val {
		return Estimate{Percentile: floorPercentile}
	}
	if value > anchors[4].val {
		return Estimate{Percentile: ceilingPercentile}
	}

	// A value sitting exactly on an anchor resolves to the upper percentile
	// of the full run of tied anchors, so a cohort's modal value maps above
	// the tie instead of interpolating into the segment below it.
	for i := 0; i < 5; i++ {
		if value != anchors[i].val {
			continue
		}
		j := i
		for j+1 < 5 && anchors[j+1].val == value {
			j++
		}
		return Estimate{Percentile: anchors[j].pct}
	}

	// Strictly between two distinct anchors; degenerate segments cannot
	// contain the value, so the division is safe.
	for i := 0; i < 4; i++ {
		lo, hi := anchors[i], anchors[i+1]
		if value > hi.val {
			continue
		}
		frac := (value - lo.val) / (hi.val - lo.val)
		return Estimate{Percentile: lo.pct + frac*(hi.pct-lo.pct)}
	}
	return Estimate{Percentile: anchors[4].pct}
}
