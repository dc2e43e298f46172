package composite_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/composite"
	"github.com/farmsight/farmsight-data/internal/percentile"
)

func TestWeightTables(t *testing.T) {
	Convey("The default weight tables are valid by construction", t, func() {
		// NewWeightTable enforces the sum-to-one invariant; reaching here
		// without a panic means both defaults pass it.
		So(func() { composite.DefaultBatting() }, ShouldNotPanic)
		So(func() { composite.DefaultPitching() }, ShouldNotPanic)
	})

	Convey("Weight validation", t, func() {
		Convey("Rejects weights that do not sum to 1.0", func() {
			_, err := composite.NewWeightTable(aggregate.RoleBatting,
				map[aggregate.Metric]float64{
					aggregate.MetricContactRate: 0.5,
					aggregate.MetricWhiffRate:   0.4,
				}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("Rejects non-positive weights", func() {
			_, err := composite.NewWeightTable(aggregate.RoleBatting,
				map[aggregate.Metric]float64{
					aggregate.MetricContactRate: 1.2,
					aggregate.MetricWhiffRate:   -0.2,
				}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("Rejects inverted metrics without a weight", func() {
			_, err := composite.NewWeightTable(aggregate.RoleBatting,
				map[aggregate.Metric]float64{aggregate.MetricContactRate: 1.0},
				[]aggregate.Metric{aggregate.MetricWhiffRate})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("The batting table marks whiff and chase as lower-is-better", t, func() {
		table := composite.DefaultBatting()
		So(table.Inverted(aggregate.MetricWhiffRate), ShouldBeTrue)
		So(table.Inverted(aggregate.MetricChaseRate), ShouldBeTrue)
		So(table.Inverted(aggregate.MetricContactRate), ShouldBeFalse)
	})

	Convey("The pitching table marks hard contact as lower-is-better", t, func() {
		table := composite.DefaultPitching()
		So(table.Inverted(aggregate.MetricHardContactRate), ShouldBeTrue)
		So(table.Inverted(aggregate.MetricWhiffRateInduced), ShouldBeFalse)
	})
}

func TestInvert(t *testing.T) {
	Convey("Inverting a percentile twice returns the original", t, func() {
		for _, p := range []float64{0, 5, 25, 50, 63.7, 95, 100} {
			So(composite.Invert(composite.Invert(p)), ShouldEqual, p)
		}
	})
}

func TestComposite(t *testing.T) {
	est := func(p float64) percentile.Estimate { return percentile.Estimate{Percentile: p} }

	Convey("Given the default batting table", t, func() {
		table := composite.DefaultBatting()

		Convey("All metrics at effective 75 blend to composite 75", func() {
			// Inverted metrics sit at raw 25 so their flipped value is 75.
			result, ok := table.Composite(map[aggregate.Metric]percentile.Estimate{
				aggregate.MetricContactRate: est(75),
				aggregate.MetricWhiffRate:   est(25),
				aggregate.MetricChaseRate:   est(25),
				aggregate.MetricHardHitRate: est(75),
				aggregate.MetricExitVeloP90: est(75),
			})
			So(ok, ShouldBeTrue)
			So(result.Percentile, ShouldAlmostEqual, 75, 1e-9)
			So(result.LowConfidence, ShouldBeFalse)
		})

		Convey("Absent metrics redistribute weight over the present ones", func() {
			result, ok := table.Composite(map[aggregate.Metric]percentile.Estimate{
				aggregate.MetricContactRate: est(80),
			})
			So(ok, ShouldBeTrue)
			So(result.Percentile, ShouldAlmostEqual, 80, 1e-9)
		})

		Convey("An empty estimate map yields no composite", func() {
			_, ok := table.Composite(map[aggregate.Metric]percentile.Estimate{})
			So(ok, ShouldBeFalse)
		})

		Convey("A low-confidence input flags the composite", func() {
			result, ok := table.Composite(map[aggregate.Metric]percentile.Estimate{
				aggregate.MetricContactRate: est(80),
				aggregate.MetricHardHitRate: {Percentile: 50, LowConfidence: true},
			})
			So(ok, ShouldBeTrue)
			So(result.LowConfidence, ShouldBeTrue)
		})

		Convey("Inversion is applied before weighting", func() {
			// Whiff at raw 10 is elite; inverted it contributes 90.
			result, ok := table.Composite(map[aggregate.Metric]percentile.Estimate{
				aggregate.MetricWhiffRate: est(10),
			})
			So(ok, ShouldBeTrue)
			So(result.Percentile, ShouldAlmostEqual, 90, 1e-9)
		})
	})
}

func TestModifier(t *testing.T) {
	Convey("The percentile-to-modifier step function", t, func() {
		Convey("Band floors are inclusive", func() {
			So(composite.Modifier(95), ShouldEqual, 10)
			So(composite.Modifier(90), ShouldEqual, 8)
			So(composite.Modifier(75), ShouldEqual, 5)
			So(composite.Modifier(60), ShouldEqual, 2)
			So(composite.Modifier(40), ShouldEqual, 0)
			So(composite.Modifier(25), ShouldEqual, -2)
			So(composite.Modifier(10), ShouldEqual, -5)
		})

		Convey("Just below each floor falls into the next band down", func() {
			So(composite.Modifier(94.999), ShouldEqual, 8)
			So(composite.Modifier(89.999), ShouldEqual, 5)
			So(composite.Modifier(74.999), ShouldEqual, 2)
			So(composite.Modifier(59.999), ShouldEqual, 0)
			So(composite.Modifier(39.999), ShouldEqual, -2)
			So(composite.Modifier(24.999), ShouldEqual, -5)
			So(composite.Modifier(9.999), ShouldEqual, -10)
		})

		Convey("The extremes are bounded", func() {
			So(composite.Modifier(100), ShouldEqual, 10)
			So(composite.Modifier(0), ShouldEqual, -10)
		})
	})
}
