package trend_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farmsight/farmsight-data/internal/trend"
)

func TestAdjustment(t *testing.T) {
	Convey("Given both halves meet the qualifying minimum", t, func() {
		Convey("Relative improvement maps through the step function", func() {
			So(trend.Adjustment(0.50, 0.60, true, true, false), ShouldEqual, 5)   // +20%
			So(trend.Adjustment(0.50, 0.56, true, true, false), ShouldEqual, 2)   // +12%
			So(trend.Adjustment(0.50, 0.525, true, true, false), ShouldEqual, 2)  // +5%
			So(trend.Adjustment(0.50, 0.51, true, true, false), ShouldEqual, 0)   // +2%
			So(trend.Adjustment(0.50, 0.475, true, true, false), ShouldEqual, -2) // -5%
			So(trend.Adjustment(0.50, 0.425, true, true, false), ShouldEqual, -5) // -15%
		})

		Convey("Lower-is-better metrics flip the sign of the change", func() {
			// ERA dropping 20% is a strong improvement.
			So(trend.Adjustment(5.00, 4.00, true, true, true), ShouldEqual, 5)
			// ERA rising 20% is a strong decline.
			So(trend.Adjustment(4.00, 4.80, true, true, true), ShouldEqual, -5)
		})

		Convey("A zero prior value yields no adjustment", func() {
			So(trend.Adjustment(0, 0.40, true, true, false), ShouldEqual, 0)
		})
	})

	Convey("An insufficient half zeroes the adjustment, never errors", t, func() {
		So(trend.Adjustment(0.50, 0.70, false, true, false), ShouldEqual, 0)
		So(trend.Adjustment(0.50, 0.70, true, false, false), ShouldEqual, 0)
		So(trend.Adjustment(0.50, 0.70, false, false, false), ShouldEqual, 0)
	})
}

func TestAgeBonus(t *testing.T) {
	Convey("The age-for-level bonus buckets years under the benchmark", t, func() {
		So(trend.AgeBonus(20, 23), ShouldEqual, 5) // 3 years young
		So(trend.AgeBonus(21, 23), ShouldEqual, 3) // 2 years young
		So(trend.AgeBonus(22, 23), ShouldEqual, 1) // 1 year young
		So(trend.AgeBonus(22.5, 23), ShouldEqual, 0)
		So(trend.AgeBonus(23, 23), ShouldEqual, 0)
	})

	Convey("Old-for-level earns zero, never a penalty", t, func() {
		So(trend.AgeBonus(27, 23), ShouldEqual, 0)
		So(trend.AgeBonus(30, 19), ShouldEqual, 0)
	})
}
