package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"statuswatch/internal/model"
)

// sqliteTimeLayout keeps a fixed-width fraction so lexicographic ordering of
// the TEXT column matches chronological ordering; RFC3339Nano trims trailing
// zeros and breaks ORDER BY for whole-second values.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:statuswatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			component TEXT NOT NULL,
			availability REAL NOT NULL,
			operational_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			response_time REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_component_ts ON observations(component, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			component TEXT NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			availability REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			component TEXT NOT NULL,
			grade TEXT NOT NULL,
			numeric_score REAL NOT NULL,
			deviation_score REAL NOT NULL,
			is_anomaly INTEGER NOT NULL,
			confidence REAL NOT NULL,
			direction TEXT NOT NULL,
			slope REAL NOT NULL,
			projected REAL NOT NULL,
			factors_json TEXT,
			alert_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_component_ts ON evaluations(component, ts)`,
		`CREATE TABLE IF NOT EXISTS alert_ledger (
			component TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			last_sent TEXT NOT NULL,
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

func (s *sqliteStore) SaveObservation(ctx context.Context, component string, ob model.Observation) error {
	if s.db == nil || component == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (ts, component, availability, operational_count, total_count, response_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ob.Timestamp.UTC().Format(sqliteTimeLayout),
		component,
		ob.Availability,
		ob.OperationalCount,
		ob.TotalCount,
		ob.ResponseTime,
	)
	return err
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.AlertRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, component, severity, category, message, fingerprint, availability)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.Timestamp.UTC().Format(sqliteTimeLayout),
		alert.Component,
		string(alert.Severity),
		alert.Category,
		alert.Message,
		alert.Fingerprint,
		alert.Availability,
	)
	return err
}

func (s *sqliteStore) SaveEvaluation(ctx context.Context, component string, ev model.Evaluation) error {
	if s.db == nil || component == "" {
		return nil
	}
	isAnomaly := 0
	if ev.Anomaly.IsAnomaly {
		isAnomaly = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (ts, component, grade, numeric_score, deviation_score, is_anomaly, confidence, direction, slope, projected, factors_json, alert_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC().Format(sqliteTimeLayout),
		component,
		ev.Health.Grade,
		ev.Health.NumericScore,
		ev.Anomaly.DeviationScore,
		isAnomaly,
		ev.Anomaly.Confidence,
		string(ev.Trend.Direction),
		ev.Trend.Slope,
		ev.Trend.ProjectedNext,
		encodeJSON(ev.Health.Factors),
		len(ev.Alerts),
	)
	return err
}

func (s *sqliteStore) RecentObservations(ctx context.Context, component string, limit int) ([]model.Observation, error) {
	if s.db == nil || component == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, availability, operational_count, total_count, response_time
		FROM observations WHERE component = ?
		ORDER BY ts DESC LIMIT ?`,
		component, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Observation
	for rows.Next() {
		var ts string
		var ob model.Observation
		var rt sql.NullFloat64
		if err := rows.Scan(&ts, &ob.Availability, &ob.OperationalCount, &ob.TotalCount, &rt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			continue
		}
		ob.Timestamp = parsed
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

func (s *sqliteStore) SaveLedger(ctx context.Context, component string, entries map[string]time.Time) error {
	if s.db == nil || component == "" || len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alert_ledger (component, fingerprint, last_sent) VALUES (?, ?, ?)
		ON CONFLICT(component, fingerprint) DO UPDATE SET last_sent = excluded.last_sent`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for fp, ts := range entries {
		if _, err := stmt.ExecContext(ctx, component, fp, ts.UTC().Format(sqliteTimeLayout)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadLedger(ctx context.Context, component string) (map[string]time.Time, error) {
	if s.db == nil || component == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, last_sent FROM alert_ledger WHERE component = ?`, component)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var fp, ts string
		if err := rows.Scan(&fp, &ts); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			continue
		}
		out[fp] = parsed
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	if s.db == nil {
		return nil
	}
	mark := cutoff.UTC().Format(sqliteTimeLayout)
	for _, table := range []string{"observations", "alerts", "evaluations"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, mark); err != nil {
			return err
		}
	}
	return nil
}

func reverse(obs []model.Observation) {
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
}
