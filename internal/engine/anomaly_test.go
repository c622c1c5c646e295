package engine

import (
	"testing"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

func windowOf(values ...float64) []model.Observation {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, 0, len(values))
	for i, v := range values {
		obs = append(obs, model.Observation{
			Timestamp:    base.Add(time.Duration(i) * 5 * time.Minute),
			Availability: v,
		})
	}
	return obs
}

func TestAnomalyBelowMinSamplesYieldsNoSignal(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	res := d.Detect(windowOf(100, 100, 100, 40))
	if res.IsAnomaly {
		t.Fatalf("anomaly flagged with only %d samples", res.SampleCount)
	}
	if res.Confidence != 0 {
		t.Fatalf("expected zero confidence below min samples, got %v", res.Confidence)
	}
	if res.SampleCount != 4 {
		t.Fatalf("expected sample count 4, got %d", res.SampleCount)
	}
}

func TestAnomalyDetectsOutlierAgainstFlatBaseline(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	values := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		values = append(values, 100)
	}
	values = append(values, 10)
	res := d.Detect(windowOf(values...))
	if !res.IsAnomaly {
		t.Fatalf("expected anomaly, got deviation %v", res.DeviationScore)
	}
	if res.Confidence != 1 {
		t.Fatalf("expected full confidence with mature baseline, got %v", res.Confidence)
	}
	if res.BaselineMean != 100 {
		t.Fatalf("expected baseline mean 100, got %v", res.BaselineMean)
	}
}

func TestAnomalyConfidenceScalesWithBaselineSize(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	values := make([]float64, 0, 11)
	for i := 0; i < 10; i++ {
		values = append(values, 100)
	}
	values = append(values, 50)
	res := d.Detect(windowOf(values...))
	if !res.IsAnomaly {
		t.Fatalf("expected anomaly")
	}
	// 10 of 20 reliable samples halves the saturated confidence.
	if res.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", res.Confidence)
	}
}

func TestAnomalyToleratesNormalVariation(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	res := d.Detect(windowOf(98, 100, 99, 101, 100, 98, 99, 100, 101, 99, 100))
	if res.IsAnomaly {
		t.Fatalf("flagged ordinary variation as anomaly: deviation %v", res.DeviationScore)
	}
}

func timedWindowOf(responseTimes ...float64) []model.Observation {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, 0, len(responseTimes))
	for i, rt := range responseTimes {
		obs = append(obs, model.Observation{
			Timestamp:    base.Add(time.Duration(i) * 5 * time.Minute),
			Availability: 100,
			ResponseTime: rt,
		})
	}
	return obs
}

func TestResponseTimeBelowMinSamplesYieldsNoSignal(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	res := d.DetectResponseTime(timedWindowOf(0.2, 0.21, 0.19, 5.0))
	if res.IsAnomaly {
		t.Fatalf("anomaly flagged with only %d timed samples", res.SampleCount)
	}
	if res.Confidence != 0 {
		t.Fatalf("expected zero confidence below min samples, got %v", res.Confidence)
	}
}

func TestResponseTimeSpikeDetected(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	values := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			values = append(values, 0.18)
		} else {
			values = append(values, 0.22)
		}
	}
	values = append(values, 5.0)
	res := d.DetectResponseTime(timedWindowOf(values...))
	if !res.IsAnomaly {
		t.Fatalf("expected anomaly, got deviation %v", res.DeviationScore)
	}
	if res.Confidence != 1 {
		t.Fatalf("expected full confidence with mature baseline, got %v", res.Confidence)
	}
	if res.Observation.ResponseTime != 5.0 {
		t.Fatalf("expected the spike as the scored observation, got %v", res.Observation.ResponseTime)
	}
}

func TestResponseTimeSpreadlessBaselineYieldsNoSignal(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	res := d.DetectResponseTime(timedWindowOf(0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 5.0))
	if res.IsAnomaly {
		t.Fatalf("identical baseline values should yield no signal, got deviation %v", res.DeviationScore)
	}
	if res.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", res.Confidence)
	}
}

func TestResponseTimeSkipsUnmeasuredObservations(t *testing.T) {
	d := NewAnomalyDetector(config.DefaultConfig().Analytics)
	window := timedWindowOf(0.18, 0.22, 0.18, 0.22, 0.18, 0.22, 1.5)
	// Interleave observations pushed without a measurement; they must not
	// drag the baseline toward zero.
	unmeasured := windowOf(100, 100, 100)
	window = append(unmeasured, window...)
	res := d.DetectResponseTime(window)
	if res.SampleCount != 7 {
		t.Fatalf("expected 7 timed samples, got %d", res.SampleCount)
	}
	if !res.IsAnomaly {
		t.Fatalf("expected anomaly against the timed baseline, got deviation %v", res.DeviationScore)
	}
}
