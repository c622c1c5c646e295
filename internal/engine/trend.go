package engine

import (
	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

// TrendEstimator fits a short-horizon slope over the window, for availability
// and for response time.
type TrendEstimator struct {
	epsilon float64
}

func NewTrendEstimator(cfg config.AnalyticsConfig) *TrendEstimator {
	return &TrendEstimator{epsilon: cfg.TrendEpsilon}
}

// leastSquaresFloor is the sample count below which a first/last delta
// replaces the regression fit.
const leastSquaresFloor = 5

// Estimate returns the availability slope per observation step, a direction
// classified against a small epsilon band, and a one-step projection clamped
// to [0,100]. With fewer than two samples the result is an explicit
// no-signal: stable, slope 0, no projection.
func (t *TrendEstimator) Estimate(window []model.Observation) model.TrendResult {
	values := make([]float64, 0, len(window))
	for _, ob := range window {
		values = append(values, ob.Availability)
	}
	res := t.fitTrend(values)
	if !res.HasProjection {
		return res
	}

	switch {
	case res.Slope > t.epsilon:
		res.Direction = model.DirectionImproving
	case res.Slope < -t.epsilon:
		res.Direction = model.DirectionDegrading
	}
	if res.ProjectedNext > 100 {
		res.ProjectedNext = 100
	}
	return res
}

// EstimateResponseTime fits the slope of measured response times. Rising
// latency is the degrading direction. Unmeasured observations are skipped,
// and the projection is clamped at zero with no upper bound.
func (t *TrendEstimator) EstimateResponseTime(window []model.Observation) model.TrendResult {
	values := make([]float64, 0, len(window))
	for _, ob := range window {
		if ob.ResponseTime > 0 {
			values = append(values, ob.ResponseTime)
		}
	}
	res := t.fitTrend(values)
	if !res.HasProjection {
		return res
	}

	switch {
	case res.Slope > t.epsilon:
		res.Direction = model.DirectionDegrading
	case res.Slope < -t.epsilon:
		res.Direction = model.DirectionImproving
	}
	return res
}

// fitTrend computes the raw slope, intercept-derived one-step projection
// clamped at zero, and sample count. Direction classification stays with the
// callers since its sign depends on the metric.
func (t *TrendEstimator) fitTrend(values []float64) model.TrendResult {
	n := len(values)
	res := model.TrendResult{
		Direction:   model.DirectionStable,
		SampleCount: n,
	}
	if n < 2 {
		return res
	}

	var slope, intercept float64
	if n < leastSquaresFloor {
		slope = (values[n-1] - values[0]) / float64(n-1)
		intercept = values[0]
	} else {
		slope, intercept = linearFit(values)
	}
	res.Slope = slope

	projected := slope*float64(n) + intercept
	if projected < 0 {
		projected = 0
	}
	res.ProjectedNext = projected
	res.HasProjection = true
	return res
}

// linearFit is an ordinary least-squares regression of the values over their
// index.
func linearFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
