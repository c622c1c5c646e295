package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"statuswatch/internal/alerts"
	"statuswatch/internal/config"
	"statuswatch/internal/metrics"
	"statuswatch/internal/model"
	"statuswatch/internal/prom"
	"statuswatch/internal/storage"
)

// Dispatcher hands finalized alert records to the notification boundary.
// Delivery mechanics (rendering, retries) live behind it.
type Dispatcher interface {
	Dispatch(ctx context.Context, records []model.AlertRecord)
}

// Engine ties the metric window, the statistical analyzers, and the alert
// evaluator into the single Record/Evaluate surface the rest of the
// application calls. All analysis is pure and in-memory; side effects are
// limited to the result stores, persistence, and the dispatcher.
type Engine struct {
	logger  *slog.Logger
	results *metrics.Store
	alerts  *alerts.Store
	store   storage.Store
	router  Dispatcher
	cfg     atomic.Value

	mu        sync.Mutex
	window    *metrics.Window
	detector  *AnomalyDetector
	trender   *TrendEstimator
	scorer    *HealthScorer
	evaluator *Evaluator
}

func NewEngine(cfg *config.Config, logger *slog.Logger, results *metrics.Store, alertsStore *alerts.Store, store storage.Store, router Dispatcher) *Engine {
	e := &Engine{
		logger:    logger,
		results:   results,
		alerts:    alertsStore,
		store:     store,
		router:    router,
		window:    metrics.NewWindow(cfg.Analytics.LearningWindow),
		detector:  NewAnomalyDetector(cfg.Analytics),
		trender:   NewTrendEstimator(cfg.Analytics),
		scorer:    NewHealthScorer(cfg.Grades, cfg.Alerting),
		evaluator: NewEvaluator(cfg.Component, cfg.Alerting, NewLedger()),
	}
	e.cfg.Store(cfg)
	return e
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// UpdateConfig swaps thresholds and window capacity in place. The ledger
// survives so re-alert intervals keep counting across reloads.
func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Store(cfg)
	e.window.Resize(cfg.Analytics.LearningWindow)
	e.detector = NewAnomalyDetector(cfg.Analytics)
	e.trender = NewTrendEstimator(cfg.Analytics)
	e.scorer = NewHealthScorer(cfg.Grades, cfg.Alerting)
	e.evaluator = NewEvaluator(cfg.Component, cfg.Alerting, e.evaluator.Ledger())
}

// Record appends one observation to the window and persists it. Validation
// failures surface as ErrInvalidObservation; the caller logs and continues.
func (e *Engine) Record(ob model.Observation) error {
	if err := e.window.Record(ob); err != nil {
		return err
	}
	if e.store != nil {
		cfg := e.config()
		if err := e.store.SaveObservation(context.Background(), cfg.Component, ob); err != nil && e.logger != nil {
			e.logger.Warn("failed to persist observation", "err", err)
		}
	}
	return nil
}

// Evaluate runs one full analysis pass over the current window snapshot.
// Concurrent passes are excluded by the engine mutex, which also covers
// ledger mutation for the evaluation's fingerprints.
func (e *Engine) Evaluate() model.Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	cfg := e.config()
	snapshot := e.window.Snapshot()

	ev := model.Evaluation{
		Timestamp:        now,
		Trend:            model.TrendResult{Direction: model.DirectionStable},
		PerformanceTrend: model.TrendResult{Direction: model.DirectionStable},
	}
	if len(snapshot) == 0 {
		prom.ObserveEvaluation(prom.OutcomeEmpty)
		return ev
	}

	ev.Observation = snapshot[len(snapshot)-1]
	ev.Anomaly = e.detector.Detect(snapshot)
	ev.Performance = e.detector.DetectResponseTime(snapshot)
	ev.Trend = e.trender.Estimate(snapshot)
	ev.PerformanceTrend = e.trender.EstimateResponseTime(snapshot)
	ev.Flapping = DetectFlapping(snapshot)
	sig := Signals{
		Anomaly:     ev.Anomaly,
		Performance: ev.Performance,
		Trend:       ev.Trend,
		Flapping:    ev.Flapping,
	}
	ev.Health = e.scorer.Score(ev.Observation, sig)
	ev.Alerts = e.evaluator.Evaluate(now, ev.Observation, sig)

	prom.ObserveEvaluation(prom.OutcomeOK)
	prom.SetAvailability(cfg.Component, ev.Observation.Availability)
	prom.SetHealthScore(cfg.Component, ev.Health.NumericScore)
	if ev.Anomaly.IsAnomaly || ev.Performance.IsAnomaly {
		prom.ObserveAnomaly(cfg.Component)
	}

	for _, alert := range ev.Alerts {
		prom.ObserveAlert(string(alert.Severity))
		if e.alerts != nil {
			e.alerts.Add(alert)
		}
		if e.logger != nil {
			e.logger.Warn("alert fired",
				"component", alert.Component,
				"severity", alert.Severity,
				"category", alert.Category,
				"availability", alert.Availability,
			)
		}
		if e.store != nil {
			if err := e.store.SaveAlert(context.Background(), alert); err != nil && e.logger != nil {
				e.logger.Warn("failed to persist alert", "err", err)
			}
		}
	}

	if e.results != nil {
		e.results.Update(cfg.Component, ev)
	}
	if e.store != nil {
		if err := e.store.SaveEvaluation(context.Background(), cfg.Component, ev); err != nil && e.logger != nil {
			e.logger.Warn("failed to persist evaluation", "err", err)
		}
		if len(ev.Alerts) > 0 {
			if err := e.store.SaveLedger(context.Background(), cfg.Component, e.evaluator.Ledger().Export()); err != nil && e.logger != nil {
				e.logger.Warn("failed to persist alert ledger", "err", err)
			}
		}
	}
	if e.router != nil && len(ev.Alerts) > 0 {
		e.router.Dispatch(context.Background(), ev.Alerts)
	}
	return ev
}

// Process records an observation and, when the record was accepted, runs an
// evaluation pass. One call per polling cycle.
func (e *Engine) Process(ob model.Observation) (model.Evaluation, error) {
	if err := e.Record(ob); err != nil {
		return model.Evaluation{}, err
	}
	return e.Evaluate(), nil
}

// Start consumes observations from the ingest channel until the context ends.
func (e *Engine) Start(ctx context.Context, in <-chan model.Observation) {
	go func() {
		for {
			select {
			case ob := <-in:
				if _, err := e.Process(ob); err != nil && e.logger != nil {
					e.logger.Warn("observation rejected", "err", err, "timestamp", ob.Timestamp)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Rehydrate reloads the observation window and the alert ledger from the
// store. Best effort: a failed load logs and starts empty.
func (e *Engine) Rehydrate(ctx context.Context) {
	if e.store == nil {
		return
	}
	cfg := e.config()
	obs, err := e.store.RecentObservations(ctx, cfg.Component, cfg.Analytics.LearningWindow)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to rehydrate observations", "err", err)
		}
	} else {
		for _, ob := range obs {
			if err := e.window.Record(ob); err != nil && e.logger != nil {
				e.logger.Warn("skipping persisted observation", "err", err)
			}
		}
	}
	entries, err := e.store.LoadLedger(ctx, cfg.Component)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to rehydrate alert ledger", "err", err)
		}
		return
	}
	e.evaluator.Ledger().Restore(entries)
}

func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window.Clear()
	e.evaluator.Reset()
	if e.results != nil {
		e.results.Clear()
	}
}
