package engine

import (
	"math"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

// AnomalyDetector scores the latest observation against a trailing baseline.
// This is a plain parametric outlier test (a z-score against the window mean),
// not a learned model. The same test runs over availability and over response
// time.
type AnomalyDetector struct {
	threshold       float64
	epsilon         float64
	minSamples      int
	reliableSamples int
}

func NewAnomalyDetector(cfg config.AnalyticsConfig) *AnomalyDetector {
	return &AnomalyDetector{
		threshold:       cfg.AnomalyThreshold,
		epsilon:         cfg.Epsilon,
		minSamples:      cfg.MinSamples,
		reliableSamples: cfg.ReliableSamples,
	}
}

// Detect computes the deviation of the newest entry from the mean and
// standard deviation of all earlier entries. Fewer than min_samples
// observations yields confidence 0 and no anomaly: absence of data is a
// normal state, never a trigger.
func (d *AnomalyDetector) Detect(window []model.Observation) model.AnomalyResult {
	n := len(window)
	if n == 0 {
		return model.AnomalyResult{}
	}
	latest := window[n-1]
	res := model.AnomalyResult{
		Observation: latest,
		SampleCount: n,
	}
	if n < d.minSamples {
		return res
	}

	baseline := make([]float64, 0, n-1)
	for _, ob := range window[:n-1] {
		baseline = append(baseline, ob.Availability)
	}
	mean, stddev := meanStdDev(baseline)
	res.BaselineMean = mean
	res.BaselineStdDev = stddev

	denom := stddev
	if denom < d.epsilon {
		denom = d.epsilon
	}
	res.DeviationScore = math.Abs(latest.Availability-mean) / denom
	res.IsAnomaly = res.DeviationScore > d.threshold
	res.Confidence = d.confidence(res.DeviationScore, len(baseline))
	return res
}

// DetectResponseTime runs the same outlier test over measured response times.
// Observations without a measurement (pushed over REST or Kafka, or served
// from cache) are skipped rather than treated as zero-latency samples, and a
// spreadless baseline yields no signal.
func (d *AnomalyDetector) DetectResponseTime(window []model.Observation) model.AnomalyResult {
	timed := make([]model.Observation, 0, len(window))
	for _, ob := range window {
		if ob.ResponseTime > 0 {
			timed = append(timed, ob)
		}
	}
	n := len(timed)
	if n == 0 {
		return model.AnomalyResult{}
	}
	latest := timed[n-1]
	res := model.AnomalyResult{
		Observation: latest,
		SampleCount: n,
	}
	if n < d.minSamples {
		return res
	}

	baseline := make([]float64, 0, n-1)
	for _, ob := range timed[:n-1] {
		baseline = append(baseline, ob.ResponseTime)
	}
	mean, stddev := meanStdDev(baseline)
	res.BaselineMean = mean
	res.BaselineStdDev = stddev
	if stddev == 0 {
		return res
	}

	res.DeviationScore = math.Abs(latest.ResponseTime-mean) / stddev
	res.IsAnomaly = res.DeviationScore > d.threshold
	res.Confidence = d.confidence(res.DeviationScore, len(baseline))
	return res
}

// confidence grows with the deviation score, saturating at 1 once the latest
// value sits three baseline deviations out, and is scaled down while the
// baseline is smaller than the reliable-sample floor.
func (d *AnomalyDetector) confidence(deviation float64, baselineN int) float64 {
	conf := deviation / 3.0
	if conf > 1 {
		conf = 1
	}
	if d.reliableSamples > 0 && baselineN < d.reliableSamples {
		conf *= float64(baselineN) / float64(d.reliableSamples)
	}
	return conf
}

// meanStdDev is the sample standard deviation (n-1 denominator); fewer than
// two values gives zero spread.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		diff := v - mean
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
