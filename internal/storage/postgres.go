package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/hrvguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	return s.initSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			ts_ms BIGINT NOT NULL,
			record_id TEXT NOT NULL,
			channel INTEGER NOT NULL,
			source TEXT NOT NULL,
			sampling_rate DOUBLE PRECISION NOT NULL,
			peaks INTEGER NOT NULL,
			intervals INTEGER NOT NULL,
			corrected_count INTEGER NOT NULL,
			raw_mean_rr DOUBLE PRECISION NOT NULL,
			raw_std_rr DOUBLE PRECISION NOT NULL,
			raw_mean_hr DOUBLE PRECISION NOT NULL,
			clean_mean_rr DOUBLE PRECISION NOT NULL,
			clean_std_rr DOUBLE PRECISION NOT NULL,
			clean_mean_hr DOUBLE PRECISION NOT NULL,
			tp INTEGER,
			fn INTEGER,
			fp INTEGER,
			sensitivity DOUBLE PRECISION,
			ppv DOUBLE PRECISION,
			reference_beats INTEGER NOT NULL,
			corrected_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_record_ts ON results(record_id, ts_ms)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			ts_ms BIGINT NOT NULL,
			record_id TEXT NOT NULL,
			result_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			rules_json JSONB NOT NULL,
			context_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms)`,
	})
}
