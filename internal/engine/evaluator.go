package engine

import (
	"fmt"
	"sync"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

const (
	categoryAvailabilityCritical = "availability_critical"
	categoryAvailabilityWarning  = "availability_warning"
	categoryAnomaly              = "availability_anomaly"
	categoryResponseAnomaly      = "response_time_anomaly"
	categoryFlapping             = "status_flapping"
	categoryDegradingTrend       = "degrading_trend"
)

// criticalDeviation is the deviation score above which an anomaly alone is
// treated as critical rather than warning.
const criticalDeviation = 3.0

// Signals bundles the derived analysis results feeding one alert evaluation.
type Signals struct {
	Anomaly     model.AnomalyResult
	Performance model.AnomalyResult
	Trend       model.TrendResult
	Flapping    model.FlappingResult
}

type trigger struct {
	category string
	severity model.Severity
	message  string
}

// Evaluator turns availability thresholds, anomaly signals, flapping, and
// persistent degradation into deduplicated, rate-limited alert records. It
// owns the ledger; no other component reads or writes it.
type Evaluator struct {
	component       string
	critical        float64
	warning         float64
	confidenceFloor float64
	degradingCycles int
	minInterval     time.Duration
	ledger          *Ledger

	mu           sync.Mutex
	degradingRun int
	active       map[string]string
}

func NewEvaluator(component string, cfg config.AlertingConfig, ledger *Ledger) *Evaluator {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Evaluator{
		component:       component,
		critical:        cfg.AvailabilityCritical,
		warning:         cfg.AvailabilityWarning,
		confidenceFloor: cfg.MinConfidence,
		degradingCycles: cfg.DegradingCycles,
		minInterval:     cfg.MinReAlertInterval,
		ledger:          ledger,
	}
}

func (e *Evaluator) Ledger() *Ledger {
	return e.ledger
}

// Evaluate runs one pass of the alert state machine. At most one record is
// emitted per pass, carrying the highest severity among the triggering
// conditions; a threshold breach takes precedence over anomaly-only signals
// when both reach the same severity. Each active fingerprint whose own
// condition no longer holds returns to Quiet, independent of the others.
func (e *Evaluator) Evaluate(now time.Time, ob model.Observation, sig Signals) []model.AlertRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sig.Trend.Direction == model.DirectionDegrading {
		e.degradingRun++
	} else {
		e.degradingRun = 0
	}

	triggers := e.collectTriggers(ob, sig)
	held := make(map[string]bool, len(triggers))
	for _, tg := range triggers {
		held[tg.category] = true
	}
	for category, fp := range e.active {
		if !held[category] {
			e.ledger.Quiet(fp)
			delete(e.active, category)
		}
	}
	if len(triggers) == 0 {
		return nil
	}

	best := triggers[0]
	for _, tg := range triggers[1:] {
		if model.SeverityRank(tg.severity) > model.SeverityRank(best.severity) {
			best = tg
		}
	}

	fp := Fingerprint(e.component, best.severity, best.category)
	if !e.ledger.Fire(fp, now, e.minInterval) {
		return nil
	}
	if e.active == nil {
		e.active = make(map[string]string)
	}
	e.active[best.category] = fp

	return []model.AlertRecord{{
		Timestamp:    now,
		Severity:     best.severity,
		Component:    e.component,
		Category:     best.category,
		Message:      best.message,
		Fingerprint:  fp,
		Availability: ob.Availability,
	}}
}

// collectTriggers lists the conditions that hold, availability thresholds
// first so they win severity ties against anomaly-only signals.
func (e *Evaluator) collectTriggers(ob model.Observation, sig Signals) []trigger {
	var triggers []trigger
	switch {
	case ob.Availability <= e.critical:
		triggers = append(triggers, trigger{
			category: categoryAvailabilityCritical,
			severity: model.SeverityCritical,
			message:  fmt.Sprintf("availability %.1f%% at or below critical threshold %.1f%%", ob.Availability, e.critical),
		})
	case ob.Availability <= e.warning:
		triggers = append(triggers, trigger{
			category: categoryAvailabilityWarning,
			severity: model.SeverityWarning,
			message:  fmt.Sprintf("availability %.1f%% at or below warning threshold %.1f%%", ob.Availability, e.warning),
		})
	}
	if sig.Anomaly.IsAnomaly && sig.Anomaly.Confidence >= e.confidenceFloor {
		severity := model.SeverityWarning
		if sig.Anomaly.DeviationScore > criticalDeviation {
			severity = model.SeverityCritical
		}
		triggers = append(triggers, trigger{
			category: categoryAnomaly,
			severity: severity,
			message: fmt.Sprintf("availability %.1f%% deviates %.2f baseline deviations from mean %.1f%%",
				ob.Availability, sig.Anomaly.DeviationScore, sig.Anomaly.BaselineMean),
		})
	}
	if sig.Performance.IsAnomaly && sig.Performance.Confidence >= e.confidenceFloor {
		severity := model.SeverityWarning
		if sig.Performance.DeviationScore > criticalDeviation {
			severity = model.SeverityCritical
		}
		triggers = append(triggers, trigger{
			category: categoryResponseAnomaly,
			severity: severity,
			message: fmt.Sprintf("response time %.2fs deviates %.2f baseline deviations from mean %.2fs",
				sig.Performance.Observation.ResponseTime, sig.Performance.DeviationScore, sig.Performance.BaselineMean),
		})
	}
	if sig.Flapping.IsFlapping && sig.Flapping.Confidence >= e.confidenceFloor {
		triggers = append(triggers, trigger{
			category: categoryFlapping,
			severity: model.SeverityWarning,
			message:  fmt.Sprintf("operational count moved across %d states within the last hour", sig.Flapping.DistinctStates),
		})
	}
	if e.degradingCycles > 0 && e.degradingRun >= e.degradingCycles {
		triggers = append(triggers, trigger{
			category: categoryDegradingTrend,
			severity: model.SeverityInfo,
			message:  fmt.Sprintf("availability trend degrading for %d consecutive evaluations", e.degradingRun),
		})
	}
	return triggers
}

// Reset drops suppression state and the degradation run counter.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.degradingRun = 0
	e.active = nil
	e.ledger = NewLedger()
}
