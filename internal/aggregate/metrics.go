package aggregate

// Metric identifies one rate statistic produced by the aggregator. Metric
// names are shared with the cohort percentile index and the composite
// weight tables.
type Metric string

// Batting metrics.
const (
	MetricContactRate Metric = "contact_rate"
	MetricWhiffRate   Metric = "whiff_rate"
	MetricChaseRate   Metric = "chase_rate"
	MetricHardHitRate Metric = "hard_hit_rate"
	MetricExitVeloP90 Metric = "exit_velo_p90"
	MetricOPS         Metric = "ops"
)

// Pitching metrics.
const (
	MetricWhiffRateInduced Metric = "whiff_rate_induced"
	MetricZoneRate         Metric = "zone_rate"
	MetricAvgFastballVelo  Metric = "avg_fastball_velo"
	MetricHardContactRate  Metric = "hard_contact_rate"
	MetricChaseRateInduced Metric = "chase_rate_induced"
	MetricERA              Metric = "era"
)

// Role distinguishes the batting and pitching aggregation paths.
type Role string

const (
	RoleBatting  Role = "batting"
	RolePitching Role = "pitching"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleBatting || r == RolePitching
}

// PitchMetrics returns the pitch-level metrics for a role, in display order.
func PitchMetrics(role Role) []Metric {
	if role == RolePitching {
		return []Metric{
			MetricWhiffRateInduced, MetricZoneRate, MetricAvgFastballVelo,
			MetricHardContactRate, MetricChaseRateInduced,
		}
	}
	return []Metric{
		MetricContactRate, MetricWhiffRate, MetricChaseRate,
		MetricHardHitRate, MetricExitVeloP90,
	}
}

// KnownMetric reports whether m is one of the published metrics for either
// role. Used to reject unknown metric names at the API boundary.
func KnownMetric(m Metric) bool {
	for _, role := range []Role{RoleBatting, RolePitching} {
		for _, known := range PitchMetrics(role) {
			if known == m {
				return true
			}
		}
		if FallbackMetric(role) == m {
			return true
		}
	}
	return false
}

// FallbackMetric returns the game-log tier metric for a role.
func FallbackMetric(role Role) Metric {
	if role == RolePitching {
		return MetricERA
	}
	return MetricOPS
}

// PrimaryMetric returns the metric used for short-term trend computation on
// the pitch-data tier.
func PrimaryMetric(role Role) Metric {
	if role == RolePitching {
		return MetricWhiffRateInduced
	}
	return MetricContactRate
}
