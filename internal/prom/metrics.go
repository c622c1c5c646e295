package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeOK labels evaluation passes that ran over a non-empty window.
	OutcomeOK = "ok"
	// OutcomeEmpty labels passes skipped because no observations exist yet.
	OutcomeEmpty = "empty"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "evaluations_total",
			Help:      "Total evaluation passes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "anomalies_total",
			Help:      "Observations flagged as statistical anomalies.",
		},
		[]string{"component"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "alerts_total",
			Help:      "Alert records emitted, partitioned by severity.",
		},
		[]string{"severity"},
	)

	availabilityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "statuswatch",
			Name:      "availability_percent",
			Help:      "Latest observed availability percentage.",
		},
		[]string{"component"},
	)

	healthScoreGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "statuswatch",
			Name:      "health_score",
			Help:      "Latest numeric health score.",
		},
		[]string{"component"},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "polls_total",
			Help:      "Status feed polls, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches statuswatch collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		evaluationsTotal,
		anomaliesTotal,
		alertsTotal,
		availabilityGauge,
		healthScoreGauge,
		pollsTotal,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveEvaluation(outcome string) {
	evaluationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveAnomaly(component string) {
	anomaliesTotal.WithLabelValues(component).Inc()
}

func ObserveAlert(severity string) {
	alertsTotal.WithLabelValues(severity).Inc()
}

func SetAvailability(component string, pct float64) {
	availabilityGauge.WithLabelValues(component).Set(pct)
}

func SetHealthScore(component string, score float64) {
	healthScoreGauge.WithLabelValues(component).Set(score)
}

func ObservePoll(result string) {
	pollsTotal.WithLabelValues(result).Inc()
}
