package cohort_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/cohort"
)

func TestQuantile(t *testing.T) {
	Convey("Quantile uses continuous linear interpolation", t, func() {
		sorted := []float64{10, 20, 30, 40}

		So(cohort.Quantile(sorted, 0), ShouldEqual, 10)
		So(cohort.Quantile(sorted, 1), ShouldEqual, 40)
		So(cohort.Quantile(sorted, 0.5), ShouldEqual, 25) // between 20 and 30
		So(cohort.Quantile(sorted, 0.25), ShouldAlmostEqual, 17.5, 1e-9)

		Convey("Single-element and empty slices are safe", func() {
			So(cohort.Quantile([]float64{7}, 0.9), ShouldEqual, 7)
			So(cohort.Quantile(nil, 0.5), ShouldEqual, 0)
		})

		Convey("Ties are handled by interpolation, not tie-breaking", func() {
			tied := []float64{1, 2, 2, 2, 3}
			So(cohort.Quantile(tied, 0.5), ShouldEqual, 2)
		})
	})
}

func TestCompute(t *testing.T) {
	Convey("Compute builds breakpoints when the cohort is big enough", t, func() {
		values := make([]float64, 0, 21)
		for i := 0; i <= 20; i++ {
			values = append(values, float64(i)) // 0..20, n=21
		}
		bp, ok := cohort.Compute(aggregate.MetricContactRate, "AA", 2026, values)
		So(ok, ShouldBeTrue)
		So(bp.CohortSize, ShouldEqual, 21)
		So(bp.P10, ShouldEqual, 2)
		So(bp.P25, ShouldEqual, 5)
		So(bp.P50, ShouldEqual, 10)
		So(bp.P75, ShouldEqual, 15)
		So(bp.P90, ShouldEqual, 18)
		So(bp.Reliable(), ShouldBeTrue)
	})

	Convey("A cohort one player under the minimum is omitted", t, func() {
		values := make([]float64, 19)
		_, ok := cohort.Compute(aggregate.MetricContactRate, "AA", 2026, values)
		So(ok, ShouldBeFalse)
	})
}

func TestSnapshotLookup(t *testing.T) {
	Convey("Given a snapshot with one published cohort", t, func() {
		bp := cohort.Breakpoints{
			Metric: aggregate.MetricOPS, Level: "AA", Season: 2025,
			P10: 0.55, P25: 0.62, P50: 0.70, P75: 0.79, P90: 0.88,
			CohortSize: 50,
		}
		snap := cohort.NewSnapshot(uuid.New(), time.Now(), []cohort.Breakpoints{bp})

		Convey("Lookup hits only the exact (metric, level, season)", func() {
			_, ok := snap.Lookup(aggregate.MetricOPS, "AA", 2025)
			So(ok, ShouldBeTrue)
			_, ok = snap.Lookup(aggregate.MetricOPS, "AAA", 2025)
			So(ok, ShouldBeFalse)
			_, ok = snap.Lookup(aggregate.MetricOPS, "AA", 2026)
			So(ok, ShouldBeFalse)
		})

		Convey("Prior-season fallback serves the older cohort when allowed", func() {
			got, served, ok := snap.LookupWithFallback(aggregate.MetricOPS, "AA", 2026, true)
			So(ok, ShouldBeTrue)
			So(served, ShouldEqual, 2025)
			So(got.P50, ShouldEqual, 0.70)
		})

		Convey("Without the fallback the newer season simply misses", func() {
			_, _, ok := snap.LookupWithFallback(aggregate.MetricOPS, "AA", 2026, false)
			So(ok, ShouldBeFalse)
		})

		Convey("The fallback never crosses levels", func() {
			_, _, ok := snap.LookupWithFallback(aggregate.MetricOPS, "AAA", 2026, true)
			So(ok, ShouldBeFalse)
		})
	})
}

// --------------------------------------------------------------------------
// Build / publish fakes
// --------------------------------------------------------------------------

type fakePopulation struct {
	batting  map[string][]cohort.BattingPopulationRow
	pitching map[string][]cohort.PitchingPopulationRow
	gamelogs map[string][]cohort.GameLogPopulationRow
}

func (f *fakePopulation) BattingPopulation(_ context.Context, level string, _ int) ([]cohort.BattingPopulationRow, error) {
	return f.batting[level], nil
}

func (f *fakePopulation) PitchingPopulation(_ context.Context, level string, _ int) ([]cohort.PitchingPopulationRow, error) {
	return f.pitching[level], nil
}

func (f *fakePopulation) GameLogPopulation(_ context.Context, role aggregate.Role, level string, _ int) ([]cohort.GameLogPopulationRow, error) {
	return f.gamelogs[level+":"+string(role)], nil
}

type fakeSnapshotStore struct {
	inserted    map[uuid.UUID][]cohort.Breakpoints
	published   uuid.UUID
	publishedAt time.Time
	failInsert  bool
	failPublish bool
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{inserted: make(map[uuid.UUID][]cohort.Breakpoints)}
}

func (f *fakeSnapshotStore) InsertBreakpoints(_ context.Context, id uuid.UUID, rows []cohort.Breakpoints) error {
	if f.failInsert {
		return errors.New("disk full")
	}
	f.inserted[id] = rows
	return nil
}

func (f *fakeSnapshotStore) PublishSnapshot(_ context.Context, id uuid.UUID) error {
	if f.failPublish {
		return errors.New("pointer flip failed")
	}
	f.published = id
	f.publishedAt = time.Now()
	return nil
}

func (f *fakeSnapshotStore) DeleteStaleSnapshots(_ context.Context, keep uuid.UUID) error {
	for id := range f.inserted {
		if id != keep && id != f.published {
			delete(f.inserted, id)
		}
	}
	return nil
}

func (f *fakeSnapshotStore) CurrentSnapshot(_ context.Context) (uuid.UUID, time.Time, error) {
	return f.published, f.publishedAt, nil
}

func (f *fakeSnapshotStore) LoadBreakpoints(_ context.Context, id uuid.UUID) ([]cohort.Breakpoints, error) {
	return f.inserted[id], nil
}

func battingRows(n, battedBalls int) []cohort.BattingPopulationRow {
	rows := make([]cohort.BattingPopulationRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, cohort.BattingPopulationRow{
			PlayerID: 1000 + i,
			Counts: aggregate.BattingCounts{
				Pitches:     400,
				Swings:      200,
				Contacts:    140 + i, // spread so percentiles are non-degenerate
				Whiffs:      60 - i/2,
				BattedBalls: battedBalls,
				HardHit:     40,
			},
		})
	}
	return rows
}

func TestRebuild(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	Convey("Given a qualifying batting population at one level", t, func() {
		pop := &fakePopulation{
			batting: map[string][]cohort.BattingPopulationRow{"AA": battingRows(30, 60)},
		}
		snaps := newFakeSnapshotStore()
		builder := cohort.NewBuilder(pop, snaps, logger)

		Convey("Rebuild publishes a snapshot with cohorts for each metric", func() {
			result, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldBeNil)
			So(result.Published, ShouldBeTrue)
			So(snaps.published.String(), ShouldEqual, result.SnapshotID.String())
			So(result.CohortsBuilt, ShouldBeGreaterThan, 0)

			snap, err := cohort.LoadCurrent(context.Background(), snaps)
			So(err, ShouldBeNil)
			bp, ok := snap.Lookup(aggregate.MetricContactRate, "AA", 2026)
			So(ok, ShouldBeTrue)
			So(bp.CohortSize, ShouldEqual, 30)
			So(bp.P10, ShouldBeLessThan, bp.P90)
		})

		Convey("Players under the sample floor never enter a cohort", func() {
			pop.batting["AA"] = battingRows(30, 49) // one under the batted-ball minimum
			result, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldBeNil)
			So(result.CohortsBuilt, ShouldEqual, 0)
		})

		Convey("A small population is skipped, not published with thin data", func() {
			pop.batting["AA"] = battingRows(19, 60)
			result, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldBeNil)
			So(result.CohortsBuilt, ShouldEqual, 0)
			So(result.CohortsSkipped, ShouldBeGreaterThan, 0)
		})

		Convey("Publishing leaves the superseded generation for the delayed sweep", func() {
			first, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldBeNil)
			second, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldBeNil)

			So(snaps.published.String(), ShouldEqual, second.SnapshotID.String())
			// A reader that pinned the first pointer just before the flip
			// can still load its rows.
			rows, err := snaps.LoadBreakpoints(context.Background(), first.SnapshotID)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, first.CohortsBuilt)
		})
	})

	Convey("Given a rebuild that fails before the pointer flip", t, func() {
		pop := &fakePopulation{
			batting: map[string][]cohort.BattingPopulationRow{"AA": battingRows(30, 60)},
		}
		snaps := newFakeSnapshotStore()
		builder := cohort.NewBuilder(pop, snaps, logger)

		// Publish a good generation first.
		first, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
		So(err, ShouldBeNil)

		Convey("A failed insert leaves the prior snapshot fully intact", func() {
			snaps.failInsert = true
			_, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldNotBeNil)
			So(snaps.published.String(), ShouldEqual, first.SnapshotID.String())

			snap, err := cohort.LoadCurrent(context.Background(), snaps)
			So(err, ShouldBeNil)
			So(snap.ID.String(), ShouldEqual, first.SnapshotID.String())
			So(snap.Len(), ShouldEqual, first.CohortsBuilt)
		})

		Convey("A failed pointer flip leaves the prior snapshot authoritative", func() {
			snaps.failPublish = true
			result, err := builder.Rebuild(context.Background(), []string{"AA"}, 2026)
			So(err, ShouldNotBeNil)
			So(result.Published, ShouldBeFalse)
			So(snaps.published.String(), ShouldEqual, first.SnapshotID.String())
		})
	})

	Convey("LoadCurrent with no published snapshot returns an empty one", t, func() {
		snaps := newFakeSnapshotStore()
		snap, err := cohort.LoadCurrent(context.Background(), snaps)
		So(err, ShouldBeNil)
		So(snap.Len(), ShouldEqual, 0)
	})
}

// racingStore flips the pointer to a fresh generation, and drops the old
// generation's rows, the moment the old rows are read. Simulates a publish
// plus sweep landing between LoadCurrent's pointer read and row read.
type racingStore struct {
	*fakeSnapshotStore
	oldID uuid.UUID
	newID uuid.UUID
}

func (r *racingStore) LoadBreakpoints(ctx context.Context, id uuid.UUID) ([]cohort.Breakpoints, error) {
	if id == r.oldID && r.published == r.oldID {
		r.published = r.newID
		r.publishedAt = time.Now()
		delete(r.inserted, r.oldID)
	}
	return r.fakeSnapshotStore.LoadBreakpoints(ctx, id)
}

func TestLoadCurrentPointerFlip(t *testing.T) {
	Convey("A pointer flip between the pointer read and the row read is retried", t, func() {
		base := newFakeSnapshotStore()
		oldID, newID := uuid.New(), uuid.New()
		row := cohort.Breakpoints{
			Metric: aggregate.MetricContactRate, Level: "AA", Season: 2026,
			P10: 0.60, P25: 0.70, P50: 0.75, P75: 0.80, P90: 0.90,
			CohortSize: 25,
		}
		base.inserted[oldID] = []cohort.Breakpoints{row}
		base.inserted[newID] = []cohort.Breakpoints{row}
		base.published = oldID
		base.publishedAt = time.Now()
		snaps := &racingStore{fakeSnapshotStore: base, oldID: oldID, newID: newID}

		snap, err := cohort.LoadCurrent(context.Background(), snaps)
		So(err, ShouldBeNil)
		So(snap.ID.String(), ShouldEqual, newID.String())
		So(snap.Len(), ShouldEqual, 1)
	})
}

// testWriter routes builder logs through the test runner.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
