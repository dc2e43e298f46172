// Package cohort builds and serves the percentile breakpoint index: for
// every (metric, level, season) with a big enough peer group, the values at
// the 10th/25th/50th/75th/90th percentile across all qualifying players at
// that level, published as an atomically swapped snapshot.
package cohort

import (
	"sort"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/config"
)

// Key identifies one cohort in the index.
type Key struct {
	Metric aggregate.Metric
	Level  string
	Season int
}

// Breakpoints are the five percentile values for one cohort plus the size
// of the peer group they were computed from.
type Breakpoints struct {
	Metric     aggregate.Metric `json:"metric"`
	Level      string           `json:"level"`
	Season     int              `json:"season"`
	P10        float64          `json:"p10"`
	P25        float64          `json:"p25"`
	P50        float64          `json:"p50"`
	P75        float64          `json:"p75"`
	P90        float64          `json:"p90"`
	CohortSize int              `json:"cohort_size"`
}

// Reliable reports whether the cohort met the minimum size. Unreliable
// cohorts are never published, but the flag is part of the read contract.
func (b Breakpoints) Reliable() bool {
	return b.CohortSize >= config.MinCohortSize
}

// Key returns the index key for these breakpoints.
func (b Breakpoints) Key() Key {
	return Key{Metric: b.Metric, Level: b.Level, Season: b.Season}
}

// Quantile computes the continuous (linearly interpolated) q-quantile of a
// sorted slice, the standard order-statistic definition. q is in [0,1].
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Compute derives breakpoints from one cohort's raw metric values. Returns
// false when the cohort is below the minimum size; such cohorts are omitted
// from the index and consumers fall back to a neutral percentile.
func Compute(metric aggregate.Metric, level string, season int, values []float64) (Breakpoints, bool) {
	if len(values) < config.MinCohortSize {
		return Breakpoints{}, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Breakpoints{
		Metric:     metric,
		Level:      level,
		Season:     season,
		P10:        Quantile(sorted, 0.10),
		P25:        Quantile(sorted, 0.25),
		P50:        Quantile(sorted, 0.50),
		P75:        Quantile(sorted, 0.75),
		P90:        Quantile(sorted, 0.90),
		CohortSize: len(sorted),
	}, true
}
