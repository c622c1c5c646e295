package engine

import (
	"time"

	"statuswatch/internal/model"
)

// flappingLookback bounds the history inspected for operational-count churn.
const flappingLookback = time.Hour

// flappingStates is the distinct-state count above which churn is flagged:
// two states describe one transition, more describe instability.
const flappingStates = 2

// flappingConfidence is fixed; churn counting has no deviation score to
// scale by.
const flappingConfidence = 0.75

// DetectFlapping flags components whose operational count keeps changing.
// The lookback is anchored to the newest observation, not the wall clock, so
// rehydrated windows evaluate the same way they were recorded.
func DetectFlapping(window []model.Observation) model.FlappingResult {
	n := len(window)
	if n == 0 {
		return model.FlappingResult{}
	}
	cutoff := window[n-1].Timestamp.Add(-flappingLookback)

	states := make(map[int]struct{})
	samples := 0
	for i := n - 1; i >= 0; i-- {
		if window[i].Timestamp.Before(cutoff) {
			break
		}
		states[window[i].OperationalCount] = struct{}{}
		samples++
	}
	res := model.FlappingResult{
		DistinctStates: len(states),
		SampleCount:    samples,
	}
	if samples < 2 {
		return res
	}
	if len(states) > flappingStates {
		res.IsFlapping = true
		res.Confidence = flappingConfidence
	}
	return res
}
