// Package trend computes the short-term momentum adjustment and the
// age-for-level bonus. Both are small bounded step functions.
package trend

// Step thresholds for the momentum adjustment, as relative change of the
// primary metric between window halves.
const (
	strongShift = 0.15
	mildShift   = 0.05
)

// Adjustment returns the momentum step for a primary metric measured over
// the two halves of the lookback window: prior first, recent second. For
// lower-is-better metrics (ERA-type) the sign of the change is flipped so
// improvement always points the same way. Callers pass ok=false for a half
// whose sample missed the qualifying minimum; either insufficient half
// zeroes the adjustment, it is never an error.
func Adjustment(prior, recent float64, priorOK, recentOK, lowerIsBetter bool) float64 {
	if !priorOK || !recentOK {
		return 0
	}
	if prior == 0 {
		return 0
	}
	change := (recent - prior) / abs(prior)
	if lowerIsBetter {
		change = -change
	}
	switch {
	case change >= strongShift:
		return 5
	case change >= mildShift:
		return 2
	case change <= -strongShift:
		return -5
	case change <= -mildShift:
		return -2
	default:
		return 0
	}
}

// AgeBonus rewards being young for the level: the benchmark age minus the
// player's age, bucketed. Old-for-level earns zero, never a penalty.
func AgeBonus(age, benchmarkAge float64) float64 {
	diff := benchmarkAge - age
	switch {
	case diff >= 3:
		return 5
	case diff >= 2:
		return 3
	case diff >= 1:
		return 1
	default:
		return 0
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
