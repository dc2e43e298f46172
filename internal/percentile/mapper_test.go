package percentile_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/percentile"
)

func TestMap(t *testing.T) {
	Convey("Given a well-formed breakpoint set", t, func() {
		bp := cohort.Breakpoints{
			Metric: "contact_rate", Level: "AA", Season: 2026,
			P10: 0.60, P25: 0.68, P50: 0.74, P75: 0.80, P90: 0.86,
			CohortSize: 120,
		}

		Convey("Values at the breakpoints map to their percentiles exactly", func() {
			So(percentile.Map(0.60, bp).Percentile, ShouldEqual, 10)
			So(percentile.Map(0.68, bp).Percentile, ShouldEqual, 25)
			So(percentile.Map(0.74, bp).Percentile, ShouldEqual, 50)
			So(percentile.Map(0.80, bp).Percentile, ShouldEqual, 75)
			So(percentile.Map(0.86, bp).Percentile, ShouldEqual, 90)
		})

		Convey("Values between breakpoints interpolate linearly", func() {
			// Midway between p50 (0.74) and p75 (0.80)
			So(percentile.Map(0.77, bp).Percentile, ShouldAlmostEqual, 62.5, 1e-9)
		})

		Convey("Values beyond the known range pin instead of extrapolating", func() {
			So(percentile.Map(0.10, bp).Percentile, ShouldEqual, 5)
			So(percentile.Map(0.999, bp).Percentile, ShouldEqual, 95)
		})

		Convey("The mapping is monotonic non-decreasing across a sweep", func() {
			prev := -1.0
			for v := 0.0; v <= 1.0; v += 0.001 {
				p := percentile.Map(v, bp).Percentile
				So(p, ShouldBeGreaterThanOrEqualTo, prev)
				So(p, ShouldBeBetweenOrEqual, 0, 100)
				prev = p
			}
		})

		Convey("Estimates from real breakpoints are not low confidence", func() {
			So(percentile.Map(0.74, bp).LowConfidence, ShouldBeFalse)
		})

		Convey("NaN input maps to the neutral estimate", func() {
			est := percentile.Map(math.NaN(), bp)
			So(est.Percentile, ShouldEqual, percentile.Neutral)
			So(est.LowConfidence, ShouldBeTrue)
		})
	})

	Convey("Given breakpoints with ties", t, func() {
		bp := cohort.Breakpoints{
			P10: 0.50, P25: 0.70, P50: 0.70, P75: 0.70, P90: 0.90,
			CohortSize: 40,
		}

		Convey("A value on the tied anchors resolves to the run's upper percentile", func() {
			So(percentile.Map(0.70, bp).Percentile, ShouldEqual, 75)
		})

		Convey("The mapping stays monotonic through the tie", func() {
			below := percentile.Map(0.69, bp).Percentile
			at := percentile.Map(0.70, bp).Percentile
			above := percentile.Map(0.71, bp).Percentile
			So(at, ShouldBeGreaterThanOrEqualTo, below)
			So(above, ShouldBeGreaterThanOrEqualTo, at)
		})

		Convey("A fully degenerate set maps its single value to the top anchor", func() {
			flat := cohort.Breakpoints{
				P10: 0.30, P25: 0.30, P50: 0.30, P75: 0.30, P90: 0.30,
				CohortSize: 40,
			}
			So(percentile.Map(0.30, flat).Percentile, ShouldEqual, 90)
			So(percentile.Map(0.29, flat).Percentile, ShouldEqual, 5)
			So(percentile.Map(0.31, flat).Percentile, ShouldEqual, 95)
		})
	})

	Convey("The neutral estimate is 50 and flagged low confidence", t, func() {
		est := percentile.NeutralEstimate()
		So(est.Percentile, ShouldEqual, 50)
		So(est.LowConfidence, ShouldBeTrue)
	})
}
