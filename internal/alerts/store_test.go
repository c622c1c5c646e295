package alerts

import (
	"fmt"
	"testing"
	"time"

	"statuswatch/internal/model"
)

func alertAt(base time.Time, step int, severity model.Severity) model.AlertRecord {
	return model.AlertRecord{
		Timestamp:   base.Add(time.Duration(step) * time.Minute),
		Severity:    severity,
		Component:   "redhat_services",
		Category:    "availability_warning",
		Fingerprint: fmt.Sprintf("fp-%03d", step),
	}
}

func TestStoreBoundedRing(t *testing.T) {
	s := NewStore(3)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Add(alertAt(base, i, model.SeverityWarning))
	}
	got := s.List(0)
	if len(got) != 3 {
		t.Fatalf("expected ring bounded at 3, got %d", len(got))
	}
	if got[0].Fingerprint != "fp-002" || got[2].Fingerprint != "fp-004" {
		t.Fatalf("oldest entries not evicted: %s..%s", got[0].Fingerprint, got[2].Fingerprint)
	}
}

func TestStoreListLimit(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	for i := 0; i < 6; i++ {
		s.Add(alertAt(base, i, model.SeverityWarning))
	}
	got := s.List(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Fingerprint != "fp-004" || got[1].Fingerprint != "fp-005" {
		t.Fatalf("list should return the newest entries, got %s, %s", got[0].Fingerprint, got[1].Fingerprint)
	}
}

func TestStoreQuerySince(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	for i := 0; i < 6; i++ {
		s.Add(alertAt(base, i, model.SeverityWarning))
	}
	got := s.Query("", base.Add(3*time.Minute), 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries at or after cutoff, got %d", len(got))
	}
	if got[0].Fingerprint != "fp-003" {
		t.Fatalf("unexpected first entry: %s", got[0].Fingerprint)
	}
}

func TestStoreQueryMinSeverity(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	s.Add(alertAt(base, 0, model.SeverityInfo))
	s.Add(alertAt(base, 1, model.SeverityWarning))
	s.Add(alertAt(base, 2, model.SeverityCritical))
	s.Add(alertAt(base, 3, model.SeverityInfo))

	got := s.Query(model.SeverityWarning, time.Time{}, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries at or above warning, got %d", len(got))
	}
	if got[0].Severity != model.SeverityWarning || got[1].Severity != model.SeverityCritical {
		t.Fatalf("unexpected severities: %s, %s", got[0].Severity, got[1].Severity)
	}

	got = s.Query(model.SeverityCritical, time.Time{}, 0)
	if len(got) != 1 || got[0].Fingerprint != "fp-002" {
		t.Fatalf("expected only the critical entry, got %+v", got)
	}
}

func TestStoreQueryCombinedFilters(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	for i := 0; i < 6; i++ {
		sev := model.SeverityInfo
		if i%2 == 1 {
			sev = model.SeverityCritical
		}
		s.Add(alertAt(base, i, sev))
	}
	// Criticals since minute 1 are fp-001, fp-003, fp-005; limit keeps the
	// newest two in chronological order.
	got := s.Query(model.SeverityCritical, base.Add(time.Minute), 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Fingerprint != "fp-003" || got[1].Fingerprint != "fp-005" {
		t.Fatalf("unexpected entries: %s, %s", got[0].Fingerprint, got[1].Fingerprint)
	}
}

func TestStoreTotalsSurviveEviction(t *testing.T) {
	s := NewStore(2)
	base := time.Now().UTC()
	s.Add(alertAt(base, 0, model.SeverityCritical))
	s.Add(alertAt(base, 1, model.SeverityWarning))
	s.Add(alertAt(base, 2, model.SeverityWarning))
	s.Add(alertAt(base, 3, model.SeverityInfo))

	if got := s.List(0); len(got) != 2 {
		t.Fatalf("expected ring bounded at 2, got %d", len(got))
	}
	totals := s.Totals()
	if totals[model.SeverityCritical] != 1 || totals[model.SeverityWarning] != 2 || totals[model.SeverityInfo] != 1 {
		t.Fatalf("totals should count evicted entries: %v", totals)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(10)
	s.Add(alertAt(time.Now().UTC(), 0, model.SeverityWarning))
	s.Clear()
	if got := s.List(0); len(got) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(got))
	}
	if totals := s.Totals(); len(totals) != 0 {
		t.Fatalf("expected totals reset after clear, got %v", totals)
	}
}
