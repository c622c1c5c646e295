package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"statuswatch/internal/alerts"
	"statuswatch/internal/config"
	"statuswatch/internal/metrics"
	"statuswatch/internal/model"
)

type captureDispatcher struct {
	records []model.AlertRecord
}

func (d *captureDispatcher) Dispatch(_ context.Context, records []model.AlertRecord) {
	d.records = append(d.records, records...)
}

func testEngine(t *testing.T) (*Engine, *captureDispatcher, *alerts.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Poller.Enabled = false
	cfg.API.Enabled = false
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := &captureDispatcher{}
	alertsStore := alerts.NewStore(100)
	eng := NewEngine(cfg, logger, metrics.NewStore(10), alertsStore, nil, dispatcher)
	return eng, dispatcher, alertsStore
}

func TestEngineOutageScenario(t *testing.T) {
	eng, dispatcher, alertsStore := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var ev model.Evaluation
	for i, availability := range []float64{100, 100, 100, 100, 100, 82} {
		var err error
		ev, err = eng.Process(model.Observation{
			Timestamp:        base.Add(time.Duration(i) * 5 * time.Minute),
			Availability:     availability,
			OperationalCount: 10,
			TotalCount:       10,
		})
		if err != nil {
			t.Fatalf("process failed at step %d: %v", i, err)
		}
	}

	if len(ev.Alerts) != 1 {
		t.Fatalf("expected one alert on the drop, got %d", len(ev.Alerts))
	}
	alert := ev.Alerts[0]
	if alert.Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", alert.Severity)
	}
	if alert.Category != categoryAvailabilityCritical {
		t.Fatalf("expected availability threshold alert, got %s", alert.Category)
	}
	if ev.Trend.Direction != model.DirectionDegrading {
		t.Fatalf("expected degrading trend, got %s", ev.Trend.Direction)
	}
	if ev.Health.Grade != "F" {
		t.Fatalf("expected grade F after drop and degrading trend, got %s", ev.Health.Grade)
	}
	if got := alertsStore.List(10); len(got) != 1 {
		t.Fatalf("expected one stored alert across the whole run, got %d", len(got))
	}
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected one dispatched alert, got %d", len(dispatcher.records))
	}
}

func TestEngineResponseTimeSpikeScenario(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rt := func(i int) float64 {
		if i%2 == 0 {
			return 0.18
		}
		return 0.22
	}
	var ev model.Evaluation
	for i := 0; i < 12; i++ {
		responseTime := rt(i)
		if i == 11 {
			responseTime = 5.0
		}
		var err error
		ev, err = eng.Process(model.Observation{
			Timestamp:        base.Add(time.Duration(i) * 5 * time.Minute),
			Availability:     100,
			OperationalCount: 10,
			TotalCount:       10,
			ResponseTime:     responseTime,
		})
		if err != nil {
			t.Fatalf("process failed at step %d: %v", i, err)
		}
	}

	if !ev.Performance.IsAnomaly {
		t.Fatalf("expected response-time anomaly, got deviation %v", ev.Performance.DeviationScore)
	}
	if len(ev.Alerts) != 1 {
		t.Fatalf("expected one alert on the spike, got %d", len(ev.Alerts))
	}
	if ev.Alerts[0].Category != categoryResponseAnomaly || ev.Alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("unexpected alert: %s/%s", ev.Alerts[0].Severity, ev.Alerts[0].Category)
	}
	if len(ev.Health.Factors) != 1 || ev.Health.Factors[0] != factorDegradedPerformance {
		t.Fatalf("expected degraded performance health factor, got %v", ev.Health.Factors)
	}
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected one dispatched alert, got %d", len(dispatcher.records))
	}
}

func TestEngineFlappingScenario(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var ev model.Evaluation
	for i, count := range []int{30, 28, 30, 29, 30} {
		var err error
		ev, err = eng.Process(model.Observation{
			Timestamp:        base.Add(time.Duration(i) * 5 * time.Minute),
			Availability:     100,
			OperationalCount: count,
			TotalCount:       30,
		})
		if err != nil {
			t.Fatalf("process failed at step %d: %v", i, err)
		}
	}

	if !ev.Flapping.IsFlapping {
		t.Fatalf("expected flapping across %d states", ev.Flapping.DistinctStates)
	}
	// The alert fires when the third state appears; the later cycle is rate
	// limited.
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected one dispatched alert for the churn, got %d", len(dispatcher.records))
	}
	if dispatcher.records[0].Category != categoryFlapping || dispatcher.records[0].Severity != model.SeverityWarning {
		t.Fatalf("unexpected alert: %s/%s", dispatcher.records[0].Severity, dispatcher.records[0].Category)
	}
}

func TestEngineRepeatDropIsDeduplicated(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, availability := range []float64{100, 100, 100, 100, 100, 82, 82, 82} {
		if _, err := eng.Process(model.Observation{
			Timestamp:    base.Add(time.Duration(i) * 5 * time.Minute),
			Availability: availability,
		}); err != nil {
			t.Fatalf("process failed at step %d: %v", i, err)
		}
	}
	// The sustained breach is rate limited by the default 30-minute
	// re-alert interval.
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected a single dispatched alert for the sustained drop, got %d", len(dispatcher.records))
	}
}

func TestEngineRejectsInvalidObservation(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := eng.Process(model.Observation{Timestamp: base, Availability: 100}); err != nil {
		t.Fatalf("unexpected process error: %v", err)
	}
	_, err := eng.Process(model.Observation{Timestamp: base.Add(time.Minute), Availability: 150})
	if !errors.Is(err, metrics.ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation, got %v", err)
	}
	_, err = eng.Process(model.Observation{Timestamp: base.Add(-time.Minute), Availability: 99})
	if !errors.Is(err, metrics.ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation for stale timestamp, got %v", err)
	}
	if len(dispatcher.records) != 0 {
		t.Fatalf("rejected observations must not alert, got %d records", len(dispatcher.records))
	}
}

func TestEngineEvaluateEmptyWindow(t *testing.T) {
	eng, _, _ := testEngine(t)
	ev := eng.Evaluate()
	if len(ev.Alerts) != 0 {
		t.Fatalf("empty window should not alert, got %d records", len(ev.Alerts))
	}
	if ev.Trend.Direction != model.DirectionStable {
		t.Fatalf("empty window should report stable trend, got %s", ev.Trend.Direction)
	}
}

func TestEngineUpdateConfigKeepsLedger(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, availability := range []float64{100, 100, 100, 100, 100, 82} {
		if _, err := eng.Process(model.Observation{
			Timestamp:    base.Add(time.Duration(i) * 5 * time.Minute),
			Availability: availability,
		}); err != nil {
			t.Fatalf("process failed at step %d: %v", i, err)
		}
	}
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected one alert before reload, got %d", len(dispatcher.records))
	}

	updated := config.DefaultConfig()
	updated.Analytics.LearningWindow = 50
	eng.UpdateConfig(updated)

	// The sustained breach stays rate limited across the reload.
	if _, err := eng.Process(model.Observation{
		Timestamp:    base.Add(30 * time.Minute),
		Availability: 82,
	}); err != nil {
		t.Fatalf("process failed after reload: %v", err)
	}
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected ledger to survive the reload, got %d dispatched alerts", len(dispatcher.records))
	}
}

func TestEngineResetClearsStateAndRefires(t *testing.T) {
	eng, dispatcher, _ := testEngine(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := func(start time.Time) {
		for i, availability := range []float64{100, 100, 100, 100, 100, 82} {
			if _, err := eng.Process(model.Observation{
				Timestamp:    start.Add(time.Duration(i) * 5 * time.Minute),
				Availability: availability,
			}); err != nil {
				t.Fatalf("process failed at step %d: %v", i, err)
			}
		}
	}
	seed(base)
	if len(dispatcher.records) != 1 {
		t.Fatalf("expected one alert before reset, got %d", len(dispatcher.records))
	}

	eng.Reset()
	seed(base.Add(time.Hour))
	if len(dispatcher.records) != 2 {
		t.Fatalf("expected a fresh alert after reset, got %d total", len(dispatcher.records))
	}
}
