// Package composite blends per-metric percentiles into one weighted
// composite percentile and maps it onto a bounded performance modifier.
package composite

import (
	"fmt"
	"math"

	"github.com/farmsight/farmsight-data/internal/aggregate"
)

// Source tags which data tier produced a performance modifier.
type Source string

const (
	SourcePitchData Source = "pitch_data"
	SourceGameLogs  Source = "game_logs"
	SourceNone      Source = "none"
)

// weightSumTolerance absorbs float representation error when validating
// that a table's weights sum to 1.0.
const weightSumTolerance = 1e-9

// WeightTable is a named, data-described weighting strategy for one role.
// Alternative blends are new tables, not new code paths.
type WeightTable struct {
	Role     aggregate.Role
	weights  map[aggregate.Metric]float64
	inverted map[aggregate.Metric]bool
}

// NewWeightTable validates and builds a weight table. Weights must be
// positive and sum to exactly 1.0 (within float tolerance). Metrics in the
// inverted set are lower-is-better: their percentile is flipped before
// weighting.
func NewWeightTable(role aggregate.Role, weights map[aggregate.Metric]float64, inverted []aggregate.Metric) (*WeightTable, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("weight table for %s is empty", role)
	}
	sum := 0.0
	for m, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("weight for %s must be positive, got %v", m, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("weights for %s sum to %v, want 1.0", role, sum)
	}

	inv := make(map[aggregate.Metric]bool, len(inverted))
	for _, m := range inverted {
		if _, ok := weights[m]; !ok {
			return nil, fmt.Errorf("inverted metric %s has no weight", m)
		}
		inv[m] = true
	}

	copied := make(map[aggregate.Metric]float64, len(weights))
	for m, w := range weights {
		copied[m] = w
	}
	return &WeightTable{Role: role, weights: copied, inverted: inv}, nil
}

// Inverted reports whether a metric is lower-is-better in this table.
func (t *WeightTable) Inverted(m aggregate.Metric) bool {
	return t.inverted[m]
}

// Weight returns the configured weight for a metric (0 if absent).
func (t *WeightTable) Weight(m aggregate.Metric) float64 {
	return t.weights[m]
}

// Invert flips a percentile for a lower-is-better metric. Applying it twice
// returns the original value.
func Invert(p float64) float64 {
	return 100 - p
}

// DefaultBatting is the standard batting blend: contact and hard contact
// carry the most weight, swing-decision metrics the rest.
func DefaultBatting() *WeightTable {
	return mustTable(aggregate.RoleBatting,
		map[aggregate.Metric]float64{
			aggregate.MetricContactRate: 0.25,
			aggregate.MetricWhiffRate:   0.20,
			aggregate.MetricChaseRate:   0.15,
			aggregate.MetricHardHitRate: 0.25,
			aggregate.MetricExitVeloP90: 0.15,
		},
		[]aggregate.Metric{aggregate.MetricWhiffRate, aggregate.MetricChaseRate},
	)
}

// DefaultPitching is the standard pitching blend.
func DefaultPitching() *WeightTable {
	return mustTable(aggregate.RolePitching,
		map[aggregate.Metric]float64{
			aggregate.MetricWhiffRateInduced: 0.25,
			aggregate.MetricZoneRate:         0.15,
			aggregate.MetricAvgFastballVelo:  0.15,
			aggregate.MetricHardContactRate:  0.20,
			aggregate.MetricChaseRateInduced: 0.25,
		},
		[]aggregate.Metric{aggregate.MetricHardContactRate},
	)
}

// TableFor returns the default weight table for a role.
func TableFor(role aggregate.Role) *WeightTable {
	if role == aggregate.RolePitching {
		return DefaultPitching()
	}
	return DefaultBatting()
}

func mustTable(role aggregate.Role, weights map[aggregate.Metric]float64, inverted []aggregate.Metric) *WeightTable {
	t, err := NewWeightTable(role, weights, inverted)
	if err != nil {
		panic(err)
	}
	return t
}
