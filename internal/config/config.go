package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Component string          `json:"component" yaml:"component"`
	Poller    PollerConfig    `json:"poller" yaml:"poller"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics"`
	Grades    GradesConfig    `json:"grades" yaml:"grades"`
	Alerting  AlertingConfig  `json:"alerting" yaml:"alerting"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
}

type PollerConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	URL      string        `json:"url" yaml:"url"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	Cache    CacheConfig   `json:"cache" yaml:"cache"`
}

type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Dir     string        `json:"dir" yaml:"dir"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig  `json:"rest" yaml:"rest"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type AnalyticsConfig struct {
	LearningWindow   int     `json:"learning_window" yaml:"learning_window"`
	MinSamples       int     `json:"min_samples" yaml:"min_samples"`
	ReliableSamples  int     `json:"reliable_samples" yaml:"reliable_samples"`
	AnomalyThreshold float64 `json:"anomaly_threshold" yaml:"anomaly_threshold"`
	TrendEpsilon     float64 `json:"trend_epsilon" yaml:"trend_epsilon"`
	Epsilon          float64 `json:"epsilon" yaml:"epsilon"`
}

type GradesConfig struct {
	Breakpoints []GradeBreakpoint `json:"breakpoints" yaml:"breakpoints"`
}

type GradeBreakpoint struct {
	Grade string  `json:"grade" yaml:"grade"`
	Min   float64 `json:"min" yaml:"min"`
}

type AlertingConfig struct {
	AvailabilityCritical float64       `json:"availability_critical" yaml:"availability_critical"`
	AvailabilityWarning  float64       `json:"availability_warning" yaml:"availability_warning"`
	MinConfidence        float64       `json:"min_confidence" yaml:"min_confidence"`
	DegradingCycles      int           `json:"degrading_cycles" yaml:"degrading_cycles"`
	MinReAlertInterval   time.Duration `json:"min_realert_interval" yaml:"min_realert_interval"`
}

type NotifyConfig struct {
	Email   EmailConfig   `json:"email" yaml:"email"`
	Webhook WebhookConfig `json:"webhook" yaml:"webhook"`
}

type EmailConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	SMTPAddr    string   `json:"smtp_addr" yaml:"smtp_addr"`
	Username    string   `json:"username" yaml:"username"`
	Password    string   `json:"password" yaml:"password"`
	From        string   `json:"from" yaml:"from"`
	Recipients  []string `json:"recipients" yaml:"recipients"`
	MaxPerHour  int      `json:"max_per_hour" yaml:"max_per_hour"`
	MinSeverity string   `json:"min_severity" yaml:"min_severity"`
}

type WebhookConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	URL         string            `json:"url" yaml:"url"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	BearerToken string            `json:"bearer_token" yaml:"bearer_token"`
	Timeout     time.Duration     `json:"timeout" yaml:"timeout"`
	MaxRetries  int               `json:"max_retries" yaml:"max_retries"`
	MinSeverity string            `json:"min_severity" yaml:"min_severity"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Driver    string        `json:"driver" yaml:"driver"`
	DSN       string        `json:"dsn" yaml:"dsn"`
	Retention time.Duration `json:"retention" yaml:"retention"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		Component: "redhat_services",
		Poller: PollerConfig{
			Enabled:  true,
			URL:      "https://status.redhat.com/api/v2/summary.json",
			Interval: 5 * time.Minute,
			Timeout:  10 * time.Second,
			Cache:    CacheConfig{Enabled: true, Dir: ".statuswatch_cache", TTL: 5 * time.Minute},
		},
		Ingest: IngestConfig{
			ChannelBuffer: 1000,
			REST:          RESTConfig{Enabled: false, Addr: ":8080"},
			Kafka:         KafkaConfig{Enabled: false},
		},
		Analytics: AnalyticsConfig{
			LearningWindow:   100,
			MinSamples:       5,
			ReliableSamples:  20,
			AnomalyThreshold: 2.0,
			TrendEpsilon:     0.05,
			Epsilon:          0.0001,
		},
		Grades: GradesConfig{
			Breakpoints: []GradeBreakpoint{
				{Grade: "A+", Min: 99.9},
				{Grade: "A", Min: 99.5},
				{Grade: "B", Min: 95.0},
				{Grade: "C", Min: 90.0},
				{Grade: "D", Min: 80.0},
				{Grade: "F", Min: 0},
			},
		},
		Alerting: AlertingConfig{
			AvailabilityCritical: 85.0,
			AvailabilityWarning:  95.0,
			MinConfidence:        0.5,
			DegradingCycles:      3,
			MinReAlertInterval:   30 * time.Minute,
		},
		Notify: NotifyConfig{
			Email: EmailConfig{
				Enabled:     false,
				SMTPAddr:    "localhost:587",
				From:        "statuswatch@localhost",
				MaxPerHour:  10,
				MinSeverity: "warning",
			},
			Webhook: WebhookConfig{
				Enabled:     false,
				Timeout:     10 * time.Second,
				MaxRetries:  3,
				MinSeverity: "info",
			},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:statuswatch.db?_pragma=busy_timeout(5000)", Retention: 90 * 24 * time.Hour},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Component == "" {
		cfg.Component = "redhat_services"
	}
	if cfg.Analytics.LearningWindow <= 0 {
		cfg.Analytics.LearningWindow = 100
	}
	if cfg.Analytics.MinSamples <= 0 {
		cfg.Analytics.MinSamples = 5
	}
	if cfg.Analytics.ReliableSamples < cfg.Analytics.MinSamples {
		cfg.Analytics.ReliableSamples = cfg.Analytics.MinSamples * 4
	}
	if cfg.Analytics.AnomalyThreshold <= 0 {
		cfg.Analytics.AnomalyThreshold = 2.0
	}
	if cfg.Analytics.TrendEpsilon <= 0 {
		cfg.Analytics.TrendEpsilon = 0.05
	}
	if cfg.Analytics.Epsilon <= 0 {
		cfg.Analytics.Epsilon = 0.0001
	}
	if len(cfg.Grades.Breakpoints) == 0 {
		cfg.Grades = DefaultConfig().Grades
	}
	if cfg.Alerting.AvailabilityCritical <= 0 {
		cfg.Alerting.AvailabilityCritical = 85.0
	}
	if cfg.Alerting.AvailabilityWarning <= 0 {
		cfg.Alerting.AvailabilityWarning = 95.0
	}
	if cfg.Alerting.MinConfidence <= 0 {
		cfg.Alerting.MinConfidence = 0.5
	}
	if cfg.Alerting.DegradingCycles <= 0 {
		cfg.Alerting.DegradingCycles = 3
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1000
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 5 * time.Minute
	}
	if cfg.Poller.Timeout <= 0 {
		cfg.Poller.Timeout = 10 * time.Second
	}
	if cfg.Poller.Cache.TTL <= 0 {
		cfg.Poller.Cache.TTL = cfg.Poller.Interval
	}
	if cfg.Notify.Webhook.Timeout <= 0 {
		cfg.Notify.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Notify.Email.MaxPerHour <= 0 {
		cfg.Notify.Email.MaxPerHour = 10
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Poller.Enabled && cfg.Poller.URL == "" {
		return errors.New("poller.url required when poller.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Alerting.AvailabilityWarning < cfg.Alerting.AvailabilityCritical {
		return errors.New("alerting.availability_warning must be >= alerting.availability_critical")
	}
	if cfg.Alerting.MinConfidence < 0 || cfg.Alerting.MinConfidence > 1 {
		return errors.New("alerting.min_confidence must be within [0,1]")
	}
	prev := -1.0
	for i := len(cfg.Grades.Breakpoints) - 1; i >= 0; i-- {
		bp := cfg.Grades.Breakpoints[i]
		if bp.Grade == "" {
			return errors.New("grades.breakpoints entries require a grade")
		}
		if bp.Min < 0 || bp.Min > 100 {
			return fmt.Errorf("grades.breakpoints min out of range: %v", bp.Min)
		}
		if bp.Min <= prev {
			return errors.New("grades.breakpoints must be ordered from best to worst")
		}
		prev = bp.Min
	}
	if cfg.Notify.Email.Enabled && len(cfg.Notify.Email.Recipients) == 0 {
		return errors.New("notify.email.recipients required when notify.email.enabled is true")
	}
	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL == "" {
		return errors.New("notify.webhook.url required when notify.webhook.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
