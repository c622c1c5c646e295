package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"statuswatch/internal/alerts"
	"statuswatch/internal/api"
	"statuswatch/internal/config"
	"statuswatch/internal/engine"
	"statuswatch/internal/ingest"
	"statuswatch/internal/logging"
	"statuswatch/internal/metrics"
	"statuswatch/internal/model"
	"statuswatch/internal/notify"
	"statuswatch/internal/poller"
	"statuswatch/internal/prom"
	"statuswatch/internal/storage"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	once := flag.Bool("once", false, "poll the status feed once, print the evaluation, and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("statuswatch " + version)
		return
	}

	var mgr *config.Manager
	var err error
	if *configPath != "" {
		mgr, err = config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		mgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)

	if err := prom.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register prometheus collectors", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			logger.Error("failed to initialize storage", "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	results := metrics.NewStore(100)
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	router := notify.NewRouter(cfg.Notify, logger)
	eng := engine.NewEngine(cfg, logger, results, alertsStore, store, router)
	eng.Rehydrate(ctx)

	if *once {
		runOnce(ctx, cfg, eng, logger)
		return
	}

	observations := make(chan model.Observation, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, observations)
	ingest.StartREST(ctx, mgr, observations, logger)
	ingest.StartKafka(ctx, mgr, observations, logger)
	poller.Run(ctx, mgr, observations, logger)
	api.Start(ctx, mgr, results, alertsStore, eng, router, logger, version)

	if mgr.Path() != "" {
		go mgr.Watch(3*time.Second,
			func(updated *config.Config) {
				logger.Info("config reloaded", "path", mgr.Path())
				eng.UpdateConfig(updated)
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			ctx.Done(),
		)
	}
	if store != nil && cfg.Storage.Retention > 0 {
		go pruneLoop(ctx, store, cfg.Storage.Retention, logger)
	}

	logger.Info("statuswatch started", "version", version, "component", cfg.Component)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond)
}

// pruneLoop deletes persisted rows older than the retention period once a
// day, starting with one pass shortly after boot.
func pruneLoop(ctx context.Context, store storage.Store, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	prune := func() {
		if err := store.PruneBefore(ctx, time.Now().UTC().Add(-retention)); err != nil {
			logger.Warn("retention prune failed", "err", err)
		}
	}
	if !ingest.BackoffSleep(ctx, time.Minute) {
		return
	}
	prune()
	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}

// runOnce performs a single poll-and-evaluate cycle and prints the
// evaluation as JSON, for cron-style use and smoke testing.
func runOnce(ctx context.Context, cfg *config.Config, eng *engine.Engine, logger *slog.Logger) {
	client := poller.NewClient(cfg.Poller, logger)
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Poller.Timeout+5*time.Second)
	defer cancel()
	summary, elapsed, cached, err := client.Fetch(fetchCtx)
	if err != nil {
		logger.Error("status poll failed", "err", err)
		os.Exit(1)
	}
	if cached {
		logger.Info("served from cache")
	}
	ob := poller.ObservationFrom(summary, time.Now().UTC(), elapsed)
	ev, err := eng.Process(ob)
	if err != nil {
		logger.Error("observation rejected", "err", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(ev)
}
