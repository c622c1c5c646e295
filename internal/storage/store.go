package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

// Store persists observations, alerts, evaluations, and the alert ledger.
// Reload must reproduce an equivalent window ordering: RecentObservations
// returns ascending by timestamp.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveObservation(ctx context.Context, component string, ob model.Observation) error
	SaveAlert(ctx context.Context, alert model.AlertRecord) error
	SaveEvaluation(ctx context.Context, component string, ev model.Evaluation) error
	RecentObservations(ctx context.Context, component string, limit int) ([]model.Observation, error)
	SaveLedger(ctx context.Context, component string, entries map[string]time.Time) error
	LoadLedger(ctx context.Context, component string) (map[string]time.Time, error)
	PruneBefore(ctx context.Context, cutoff time.Time) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}
