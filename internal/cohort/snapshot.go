package cohort

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/farmsight/farmsight-data/internal/aggregate"
)

// Snapshot is one published generation of the percentile index, loaded into
// memory and immutable. A ranking run pins a single Snapshot for its whole
// duration so concurrent rebuilds can never mix generations mid-run.
type Snapshot struct {
	ID          uuid.UUID
	PublishedAt time.Time
	byKey       map[Key]Breakpoints
}

// NewSnapshot builds an in-memory snapshot from loaded rows. Used both by
// the production loader and by tests.
func NewSnapshot(id uuid.UUID, publishedAt time.Time, rows []Breakpoints) *Snapshot {
	byKey := make(map[Key]Breakpoints, len(rows))
	for _, b := range rows {
		byKey[b.Key()] = b
	}
	return &Snapshot{ID: id, PublishedAt: publishedAt, byKey: byKey}
}

// EmptySnapshot returns a snapshot with no cohorts; all lookups miss and
// consumers fall back to the neutral percentile.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(uuid.Nil, time.Time{}, nil)
}

// Len returns the number of cohorts in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.byKey)
}

// Lookup returns the breakpoints for one cohort, if published.
func (s *Snapshot) Lookup(metric aggregate.Metric, level string, season int) (Breakpoints, bool) {
	b, ok := s.byKey[Key{Metric: metric, Level: level, Season: season}]
	return b, ok
}

// LookupWithFallback behaves like Lookup, optionally retrying the prior
// season when the requested one is absent. It never crosses levels. The
// second return reports which season served the lookup.
func (s *Snapshot) LookupWithFallback(metric aggregate.Metric, level string, season int, allowPrior bool) (Breakpoints, int, bool) {
	if b, ok := s.Lookup(metric, level, season); ok {
		return b, season, true
	}
	if allowPrior {
		if b, ok := s.Lookup(metric, level, season-1); ok {
			return b, season - 1, true
		}
	}
	return Breakpoints{}, 0, false
}

// SnapshotStore is the persistence contract for the index. Rows written
// under an unpublished snapshot ID are invisible to readers until the
// pointer flips; the flip is a single statement, so readers see either the
// old generation or the new one, never a mix.
type SnapshotStore interface {
	InsertBreakpoints(ctx context.Context, snapshotID uuid.UUID, rows []Breakpoints) error
	PublishSnapshot(ctx context.Context, snapshotID uuid.UUID) error
	DeleteStaleSnapshots(ctx context.Context, keep uuid.UUID) error
	CurrentSnapshot(ctx context.Context) (uuid.UUID, time.Time, error)
	LoadBreakpoints(ctx context.Context, snapshotID uuid.UUID) ([]Breakpoints, error)
}

// LoadCurrent pins the currently published snapshot into memory. When no
// snapshot has ever been published it returns an empty snapshot rather
// than an error. A rebuild can flip the pointer between the pointer read
// and the row read, and the superseded generation's rows may already be
// swept, so the pointer is re-read after loading and the load retried
// until it is stable.
func LoadCurrent(ctx context.Context, store SnapshotStore) (*Snapshot, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id, publishedAt, err := store.CurrentSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("read snapshot pointer: %w", err)
		}
		if id == uuid.Nil {
			return EmptySnapshot(), nil
		}
		rows, err := store.LoadBreakpoints(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load breakpoints for snapshot %s: %w", id, err)
		}
		again, _, err := store.CurrentSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("re-read snapshot pointer: %w", err)
		}
		if again == id {
			return NewSnapshot(id, publishedAt, rows), nil
		}
	}
	return nil, fmt.Errorf("snapshot pointer moved on every load attempt")
}
