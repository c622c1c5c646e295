package engine

import (
	"math"
	"testing"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

func TestTrendTooFewSamplesIsStable(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(97))
	if res.Direction != model.DirectionStable {
		t.Fatalf("expected stable, got %s", res.Direction)
	}
	if res.HasProjection {
		t.Fatalf("single sample should not yield a projection")
	}
	if res.Slope != 0 {
		t.Fatalf("expected zero slope, got %v", res.Slope)
	}
}

func TestTrendImproving(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(90, 91, 92, 93, 94, 95, 96, 97, 98, 99))
	if res.Direction != model.DirectionImproving {
		t.Fatalf("expected improving, got %s (slope %v)", res.Direction, res.Slope)
	}
	if math.Abs(res.Slope-1) > 1e-9 {
		t.Fatalf("expected slope 1, got %v", res.Slope)
	}
}

func TestTrendDegrading(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(99, 98, 97, 96, 95, 94, 93))
	if res.Direction != model.DirectionDegrading {
		t.Fatalf("expected degrading, got %s (slope %v)", res.Direction, res.Slope)
	}
}

func TestTrendFlatIsStable(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(100, 100, 100, 100, 100))
	if res.Direction != model.DirectionStable {
		t.Fatalf("expected stable, got %s", res.Direction)
	}
	if !res.HasProjection || res.ProjectedNext != 100 {
		t.Fatalf("expected projection 100, got %v (has=%v)", res.ProjectedNext, res.HasProjection)
	}
}

func TestTrendSmallWindowUsesEndpointDelta(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(90, 95, 94))
	if math.Abs(res.Slope-2) > 1e-9 {
		t.Fatalf("expected endpoint-delta slope 2, got %v", res.Slope)
	}
	if res.Direction != model.DirectionImproving {
		t.Fatalf("expected improving, got %s", res.Direction)
	}
	if math.Abs(res.ProjectedNext-96) > 1e-9 {
		t.Fatalf("expected projection 96, got %v", res.ProjectedNext)
	}
}

func TestTrendProjectionClampedToValidRange(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.Estimate(windowOf(96, 97, 98, 99, 100))
	if !res.HasProjection {
		t.Fatalf("expected a projection")
	}
	if res.ProjectedNext != 100 {
		t.Fatalf("expected projection clamped to 100, got %v", res.ProjectedNext)
	}
}

func TestResponseTimeTrendRisingLatencyIsDegrading(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.EstimateResponseTime(timedWindowOf(0.2, 0.4, 0.6, 0.8, 1.0, 1.2))
	if res.Direction != model.DirectionDegrading {
		t.Fatalf("rising latency should be degrading, got %s (slope %v)", res.Direction, res.Slope)
	}
	if res.Slope <= 0 {
		t.Fatalf("expected positive slope, got %v", res.Slope)
	}
}

func TestResponseTimeTrendFallingLatencyIsImproving(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	res := tr.EstimateResponseTime(timedWindowOf(1.2, 1.0, 0.8, 0.6, 0.4, 0.2))
	if res.Direction != model.DirectionImproving {
		t.Fatalf("falling latency should be improving, got %s (slope %v)", res.Direction, res.Slope)
	}
}

func TestResponseTimeTrendIgnoresUnmeasuredObservations(t *testing.T) {
	tr := NewTrendEstimator(config.DefaultConfig().Analytics)
	window := append(windowOf(100, 100, 100), timedWindowOf(0.2, 0.2, 0.2, 0.2, 0.2, 0.2)...)
	res := tr.EstimateResponseTime(window)
	if res.SampleCount != 6 {
		t.Fatalf("expected 6 timed samples, got %d", res.SampleCount)
	}
	if res.Direction != model.DirectionStable {
		t.Fatalf("flat latency should be stable, got %s (slope %v)", res.Direction, res.Slope)
	}
}
