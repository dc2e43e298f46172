package composite

import (
	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/percentile"
)

// CompositeResult is one weighted composite percentile plus provenance.
type CompositeResult struct {
	Percentile    float64
	LowConfidence bool
}

// Composite blends per-metric percentile estimates using the table's
// weights. Lower-is-better metrics are inverted before weighting. When a
// weighted metric is absent its weight is redistributed proportionally
// across the present ones. The second return is false when no weighted
// metric is present at all.
func (t *WeightTable) Composite(estimates map[aggregate.Metric]percentile.Estimate) (CompositeResult, bool) {
	weightedSum := 0.0
	presentWeight := 0.0
	lowConfidence := false

	for m, w := range t.weights {
		est, ok := estimates[m]
		if !ok {
			continue
		}
		p := est.Percentile
		if t.inverted[m] {
			p = Invert(p)
		}
		weightedSum += w * p
		presentWeight += w
		if est.LowConfidence {
			lowConfidence = true
		}
	}
	if presentWeight == 0 {
		return CompositeResult{}, false
	}
	return CompositeResult{
		Percentile:    weightedSum / presentWeight,
		LowConfidence: lowConfidence,
	}, true
}

// modifierBand is one step of the percentile-to-modifier function.
type modifierBand struct {
	floor    float64 // inclusive lower bound
	modifier float64
}

// Bands are evaluated top down; each floor is inclusive, so a composite of
// exactly 75 earns +5. Anything under the last floor earns the bottom
// modifier.
var modifierBands = []modifierBand{
	{95, 10},
	{90, 8},
	{75, 5},
	{60, 2},
	{40, 0},
	{25, -2},
	{10, -5},
}

const bottomModifier = -10

// Modifier maps a composite percentile onto the bounded performance
// modifier step function.
func Modifier(compositePercentile float64) float64 {
	for _, band := range modifierBands {
		if compositePercentile >= band.floor {
			return band.modifier
		}
	}
	return bottomModifier
}
