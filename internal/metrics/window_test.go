package metrics

import (
	"errors"
	"testing"
	"time"

	"statuswatch/internal/model"
)

func obAt(base time.Time, step int, availability float64) model.Observation {
	return model.Observation{
		Timestamp:        base.Add(time.Duration(step) * time.Minute),
		Availability:     availability,
		OperationalCount: 10,
		TotalCount:       10,
	}
}

func TestWindowCapacityBound(t *testing.T) {
	w := NewWindow(5)
	base := time.Now().UTC()
	for i := 0; i < 12; i++ {
		if err := w.Record(obAt(base, i, 100)); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
		if w.Len() > 5 {
			t.Fatalf("window exceeded capacity: %d", w.Len())
		}
	}
	snap := w.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(snap))
	}
	if !snap[0].Timestamp.Equal(base.Add(7 * time.Minute)) {
		t.Fatalf("expected oldest surviving entry to be step 7, got %s", snap[0].Timestamp)
	}
}

func TestWindowRejectsOutOfRangeAvailability(t *testing.T) {
	w := NewWindow(10)
	base := time.Now().UTC()
	if err := w.Record(obAt(base, 0, 100)); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	for _, bad := range []float64{150, -1} {
		err := w.Record(obAt(base, 1, bad))
		if !errors.Is(err, ErrInvalidObservation) {
			t.Fatalf("expected ErrInvalidObservation for %v, got %v", bad, err)
		}
	}
	if w.Len() != 1 {
		t.Fatalf("window changed after rejected records: len %d", w.Len())
	}
}

func TestWindowRejectsNonMonotonicTimestamp(t *testing.T) {
	w := NewWindow(10)
	base := time.Now().UTC()
	if err := w.Record(obAt(base, 5, 100)); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	err := w.Record(obAt(base, 2, 99))
	if !errors.Is(err, ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation for out-of-order timestamp, got %v", err)
	}
	if w.Len() != 1 {
		t.Fatalf("window changed after rejected record: len %d", w.Len())
	}
	// Equal timestamps are non-decreasing and accepted.
	if err := w.Record(obAt(base, 5, 98)); err != nil {
		t.Fatalf("equal timestamp should be accepted: %v", err)
	}
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewWindow(10)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := w.Record(obAt(base, i, 100)); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
	}
	snap := w.Snapshot()
	snap[0].Availability = 1
	fresh := w.Snapshot()
	if fresh[0].Availability != 100 {
		t.Fatalf("snapshot mutation leaked into window")
	}
}

func TestWindowResizeEvictsOldest(t *testing.T) {
	w := NewWindow(10)
	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		if err := w.Record(obAt(base, i, 100)); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
	}
	w.Resize(4)
	snap := w.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 entries after resize, got %d", len(snap))
	}
	if !snap[0].Timestamp.Equal(base.Add(6 * time.Minute)) {
		t.Fatalf("expected oldest surviving entry to be step 6, got %s", snap[0].Timestamp)
	}
}
