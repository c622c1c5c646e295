package engine

import (
	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

const (
	factorConfidentAnomaly    = "confident_anomaly"
	factorDegradedPerformance = "degraded_performance"
	factorDegradingTrend      = "degrading_trend"
)

// downgradePenalty is subtracted from the numeric score per grade step lost.
const downgradePenalty = 5.0

// HealthScorer maps availability to a letter grade through configured
// breakpoints, then applies downgrades for anomaly, performance, and trend
// signals. The grade never rises above the availability-only baseline.
type HealthScorer struct {
	breakpoints     []config.GradeBreakpoint
	confidenceFloor float64
}

func NewHealthScorer(grades config.GradesConfig, alerting config.AlertingConfig) *HealthScorer {
	return &HealthScorer{
		breakpoints:     grades.Breakpoints,
		confidenceFloor: alerting.MinConfidence,
	}
}

// Score is a pure function of the latest observation and the derived
// signals. Factors lists the reason for every downgrade applied. A response
// time anomaly costs a step only when the latest measurement is slower than
// its baseline; an unusually fast response is not a health problem.
func (h *HealthScorer) Score(ob model.Observation, sig Signals) model.HealthScore {
	base := h.gradeIndex(ob.Availability)
	idx := base
	var factors []string

	if sig.Anomaly.IsAnomaly && sig.Anomaly.Confidence >= h.confidenceFloor {
		idx++
		factors = append(factors, factorConfidentAnomaly)
	}
	if sig.Performance.IsAnomaly && sig.Performance.Confidence >= h.confidenceFloor &&
		sig.Performance.Observation.ResponseTime > sig.Performance.BaselineMean {
		idx++
		factors = append(factors, factorDegradedPerformance)
	}
	if sig.Trend.Direction == model.DirectionDegrading {
		idx++
		factors = append(factors, factorDegradingTrend)
	}
	if idx >= len(h.breakpoints) {
		idx = len(h.breakpoints) - 1
	}

	numeric := ob.Availability - downgradePenalty*float64(idx-base)
	if numeric < 0 {
		numeric = 0
	}
	return model.HealthScore{
		Grade:        h.breakpoints[idx].Grade,
		NumericScore: numeric,
		Factors:      factors,
	}
}

// gradeIndex finds the first breakpoint the availability meets; the last
// breakpoint is the catch-all worst grade.
func (h *HealthScorer) gradeIndex(availability float64) int {
	for i, bp := range h.breakpoints {
		if availability >= bp.Min {
			return i
		}
	}
	return len(h.breakpoints) - 1
}
