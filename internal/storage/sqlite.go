package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:hrvguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, placeholder: func(int) string { return "?" }}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	return s.initSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			ts_ms INTEGER NOT NULL,
			record_id TEXT NOT NULL,
			channel INTEGER NOT NULL,
			source TEXT NOT NULL,
			sampling_rate REAL NOT NULL,
			peaks INTEGER NOT NULL,
			intervals INTEGER NOT NULL,
			corrected_count INTEGER NOT NULL,
			raw_mean_rr REAL NOT NULL,
			raw_std_rr REAL NOT NULL,
			raw_mean_hr REAL NOT NULL,
			clean_mean_rr REAL NOT NULL,
			clean_std_rr REAL NOT NULL,
			clean_mean_hr REAL NOT NULL,
			tp INTEGER,
			fn INTEGER,
			fp INTEGER,
			sensitivity REAL,
			ppv REAL,
			reference_beats INTEGER NOT NULL,
			corrected_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_record_ts ON results(record_id, ts_ms)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			record_id TEXT NOT NULL,
			result_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			rules_json TEXT NOT NULL,
			context_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms)`,
	})
}
