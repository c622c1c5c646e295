package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"statuswatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/statuswatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			component TEXT NOT NULL,
			availability DOUBLE PRECISION NOT NULL,
			operational_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			response_time DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_component_ts ON observations(component, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			component TEXT NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			availability DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			component TEXT NOT NULL,
			grade TEXT NOT NULL,
			numeric_score DOUBLE PRECISION NOT NULL,
			deviation_score DOUBLE PRECISION NOT NULL,
			is_anomaly BOOLEAN NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL,
			slope DOUBLE PRECISION NOT NULL,
			projected DOUBLE PRECISION NOT NULL,
			factors_json JSONB,
			alert_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_component_ts ON evaluations(component, ts)`,
		`CREATE TABLE IF NOT EXISTS alert_ledger (
			component TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			last_sent TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (component, fingerprint)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveObservation(ctx context.Context, component string, ob model.Observation) error {
	if s.db == nil || component == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (ts, component, availability, operational_count, total_count, response_time)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ob.Timestamp.UTC(),
		component,
		ob.Availability,
		ob.OperationalCount,
		ob.TotalCount,
		ob.ResponseTime,
	)
	return err
}

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.AlertRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, component, severity, category, message, fingerprint, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		alert.Timestamp.UTC(),
		alert.Component,
		string(alert.Severity),
		alert.Category,
		alert.Message,
		alert.Fingerprint,
		alert.Availability,
	)
	return err
}

func (s *postgresStore) SaveEvaluation(ctx context.Context, component string, ev model.Evaluation) error {
	if s.db == nil || component == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (ts, component, grade, numeric_score, deviation_score, is_anomaly, confidence, direction, slope, projected, factors_json, alert_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.Timestamp.UTC(),
		component,
		ev.Health.Grade,
		ev.Health.NumericScore,
		ev.Anomaly.DeviationScore,
		ev.Anomaly.IsAnomaly,
		ev.Anomaly.Confidence,
		string(ev.Trend.Direction),
		ev.Trend.Slope,
		ev.Trend.ProjectedNext,
		encodeJSON(ev.Health.Factors),
		len(ev.Alerts),
	)
	return err
}

func (s *postgresStore) RecentObservations(ctx context.Context, component string, limit int) ([]model.Observation, error) {
	if s.db == nil || component == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, availability, operational_count, total_count, response_time
		FROM observations WHERE component = $1
		ORDER BY ts DESC LIMIT $2`,
		component, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Observation
	for rows.Next() {
		var ob model.Observation
		var rt sql.NullFloat64
		if err := rows.Scan(&ob.Timestamp, &ob.Availability, &ob.OperationalCount, &ob.TotalCount, &rt); err != nil {
			return nil, err
		}
		if rt.Valid {
			ob.ResponseTime = rt.Float64
		}
		out = append(out, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func (s *postgresStore) SaveLedger(ctx context.Context, component string, entries map[string]time.Time) error {
	if s.db == nil || component == "" || len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alert_ledger (component, fingerprint, last_sent) VALUES ($1, $2, $3)
		ON CONFLICT (component, fingerprint) DO UPDATE SET last_sent = EXCLUDED.last_sent`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for fp, ts := range entries {
		if _, err := stmt.ExecContext(ctx, component, fp, ts.UTC()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *postgresStore) LoadLedger(ctx context.Context, component string) (map[string]time.Time, error) {
	if s.db == nil || component == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, last_sent FROM alert_ledger WHERE component = $1`, component)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var fp string
		var ts time.Time
		if err := rows.Scan(&fp, &ts); err != nil {
			return nil, err
		}
		out[fp] = ts
	}
	return out, rows.Err()
}

func (s *postgresStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	if s.db == nil {
		return nil
	}
	for _, table := range []string{"observations", "alerts", "evaluations"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < $1`, cutoff.UTC()); err != nil {
			return err
		}
	}
	return nil
}
