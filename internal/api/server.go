package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statuswatch/internal/alerts"
	"statuswatch/internal/config"
	"statuswatch/internal/metrics"
	"statuswatch/internal/model"
	"statuswatch/internal/notify"
)

type EngineControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
}

type Server struct {
	cfg     *config.Manager
	results *metrics.Store
	alerts  *alerts.Store
	engine  EngineControl
	router  *notify.Router
	logger  *slog.Logger
	version string
	started time.Time
}

type statusResponse struct {
	Status    string                         `json:"status"`
	Time      string                         `json:"time"`
	Version   string                         `json:"version"`
	UptimeSec float64                        `json:"uptime_sec"`
	Component string                         `json:"component"`
	Poller    pollerStatus                   `json:"poller"`
	Ingest    ingestStatus                   `json:"ingest"`
	Alerting  config.AlertingConfig          `json:"alerting"`
	Notify    map[string]notify.ChannelStats `json:"notify,omitempty"`
}

type pollerStatus struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Interval string `json:"interval"`
}

type ingestStatus struct {
	REST  bool `json:"rest"`
	Kafka bool `json:"kafka"`
}

func Start(ctx context.Context, cfg *config.Manager, results *metrics.Store, alertsStore *alerts.Store, engine EngineControl, router *notify.Router, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		results: results,
		alerts:  alertsStore,
		engine:  engine,
		router:  router,
		logger:  logger,
		version: version,
		started: time.Now().UTC(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/evaluation", server.handleEvaluation)
	mux.HandleFunc("/observations/latest", server.handleLatestObservation)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:    "ok",
		Time:      time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		UptimeSec: time.Since(s.started).Seconds(),
		Component: cfg.Component,
		Poller: pollerStatus{
			Enabled:  cfg.Poller.Enabled,
			URL:      cfg.Poller.URL,
			Interval: cfg.Poller.Interval.String(),
		},
		Ingest: ingestStatus{
			REST:  cfg.Ingest.REST.Enabled,
			Kafka: cfg.Ingest.Kafka.Enabled,
		},
		Alerting: cfg.Alerting,
	}
	if s.router != nil {
		resp.Notify = s.router.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	component := r.URL.Query().Get("component")
	if component == "" {
		component = s.cfg.Get().Component
	}
	ev, updatedAt, ok := s.results.Get(component)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no evaluation recorded for component"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component":  component,
		"updated_at": updatedAt.Format(time.RFC3339),
		"evaluation": ev,
	})
}

func (s *Server) handleLatestObservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	component := r.URL.Query().Get("component")
	if component == "" {
		component = s.cfg.Get().Component
	}
	ev, updatedAt, ok := s.results.Get(component)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no observation recorded for component"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component":   component,
		"updated_at":  updatedAt.Format(time.RFC3339),
		"observation": ev.Observation,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		since = ts
		limit = 0
	}
	var minSeverity model.Severity
	if v := r.URL.Query().Get("severity"); v != "" {
		sev := model.Severity(strings.ToLower(v))
		if model.SeverityRank(sev) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "severity must be info, warning, or critical"})
			return
		}
		minSeverity = sev
	}
	list := s.alerts.Query(minSeverity, since, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(list),
		"alerts": list,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	if s.alerts != nil {
		s.alerts.Clear()
	}
	if s.logger != nil {
		s.logger.Info("engine state cleared via api")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
