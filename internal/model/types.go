package model

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for comparison; unknown values rank lowest.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionStable    Direction = "stable"
	DirectionDegrading Direction = "degrading"
)

// Observation is one timestamped availability reading, immutable once recorded.
type Observation struct {
	Timestamp        time.Time `json:"timestamp"`
	Availability     float64   `json:"availability_pct"`
	OperationalCount int       `json:"operational_count"`
	TotalCount       int       `json:"total_count"`
	ResponseTime     float64   `json:"response_time_seconds,omitempty"`
}

type AnomalyResult struct {
	Observation    Observation `json:"observation"`
	DeviationScore float64     `json:"deviation_score"`
	IsAnomaly      bool        `json:"is_anomaly"`
	Confidence     float64     `json:"confidence"`
	BaselineMean   float64     `json:"baseline_mean"`
	BaselineStdDev float64     `json:"baseline_stddev"`
	SampleCount    int         `json:"sample_count"`
}

// FlappingResult reports operational-count churn over the recent window.
type FlappingResult struct {
	DistinctStates int     `json:"distinct_states"`
	SampleCount    int     `json:"sample_count"`
	IsFlapping     bool    `json:"is_flapping"`
	Confidence     float64 `json:"confidence"`
}

type TrendResult struct {
	Direction     Direction `json:"direction"`
	Slope         float64   `json:"slope"`
	ProjectedNext float64   `json:"projected_next_value"`
	HasProjection bool      `json:"has_projection"`
	SampleCount   int       `json:"sample_count"`
}

type HealthScore struct {
	Grade        string   `json:"grade"`
	NumericScore float64  `json:"numeric_score"`
	Factors      []string `json:"contributing_factors,omitempty"`
}

type AlertRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Severity     Severity  `json:"severity"`
	Component    string    `json:"component"`
	Category     string    `json:"category"`
	Message      string    `json:"message"`
	Fingerprint  string    `json:"fingerprint"`
	Availability float64   `json:"availability_pct"`
}

// Evaluation is the result of one engine pass over the current window.
// Anomaly and Trend describe availability; Performance and PerformanceTrend
// describe response time.
type Evaluation struct {
	Timestamp        time.Time      `json:"timestamp"`
	Observation      Observation    `json:"observation"`
	Health           HealthScore    `json:"health"`
	Anomaly          AnomalyResult  `json:"anomaly"`
	Performance      AnomalyResult  `json:"performance"`
	Trend            TrendResult    `json:"trend"`
	PerformanceTrend TrendResult    `json:"performance_trend"`
	Flapping         FlappingResult `json:"flapping"`
	Alerts           []AlertRecord  `json:"alerts,omitempty"`
}
