package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveResult(ctx context.Context, res model.Result) error
	SaveAlert(ctx context.Context, alert model.Alert) error
	RecentResults(ctx context.Context, recordID string, limit int) ([]model.Result, error)
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
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// baseStore holds the SQL shared by both drivers; placeholder renders the
// n-th (1-based) bind parameter in the driver's syntax.
type baseStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) binds(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = b.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (b *baseStore) initSchema(ctx context.Context, stmts []string) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const resultColumns = `id, ts_ms, record_id, channel, source, sampling_rate, peaks, intervals, corrected_count,
	raw_mean_rr, raw_std_rr, raw_mean_hr, clean_mean_rr, clean_std_rr, clean_mean_hr,
	tp, fn, fp, sensitivity, ppv, reference_beats, corrected_json`

func (b *baseStore) SaveResult(ctx context.Context, res model.Result) error {
	if b.db == nil {
		return nil
	}
	var tp, fn, fp, sens, ppv any
	if res.Match != nil {
		tp, fn, fp = res.Match.TP, res.Match.FN, res.Match.FP
		sens, ppv = res.Match.Sensitivity, res.Match.PPV
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES (`+b.binds(22)+`)`,
		res.ID,
		res.Timestamp.UTC().UnixMilli(),
		res.RecordID,
		res.Channel,
		res.Source,
		res.SamplingRate,
		res.Peaks,
		res.Intervals,
		res.CorrectedCount,
		res.Raw.MeanRRMs,
		res.Raw.StdRRMs,
		res.Raw.MeanHRBPM,
		res.Corrected.MeanRRMs,
		res.Corrected.StdRRMs,
		res.Corrected.MeanHRBPM,
		tp, fn, fp, sens, ppv,
		res.ReferenceBeats,
		encodeJSON(res.CorrectedIndices),
	)
	return err
}

func (b *baseStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if b.db == nil {
		return nil
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO alerts (ts_ms, record_id, result_id, severity, alert_type, rules_json, context_json)
		VALUES (`+b.binds(7)+`)`,
		alert.Timestamp.UTC().UnixMilli(),
		alert.RecordID,
		alert.ResultID,
		alert.Severity,
		alert.AlertType,
		encodeJSON(alert.Rules),
		encodeJSON(alert.Context),
	)
	return err
}

// RecentResults returns up to limit results for a record, newest first.
func (b *baseStore) RecentResults(ctx context.Context, recordID string, limit int) ([]model.Result, error) {
	if b.db == nil {
		return nil, errors.New("storage not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE record_id = `+b.placeholder(1)+
			` ORDER BY ts_ms DESC LIMIT `+b.placeholder(2),
		recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Result, 0, limit)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResult(rows *sql.Rows) (model.Result, error) {
	var (
		res           model.Result
		tsMs          int64
		tp, fn, fp    sql.NullInt64
		sens, ppv     sql.NullFloat64
		correctedJSON sql.NullString
	)
	err := rows.Scan(
		&res.ID, &tsMs, &res.RecordID, &res.Channel, &res.Source, &res.SamplingRate,
		&res.Peaks, &res.Intervals, &res.CorrectedCount,
		&res.Raw.MeanRRMs, &res.Raw.StdRRMs, &res.Raw.MeanHRBPM,
		&res.Corrected.MeanRRMs, &res.Corrected.StdRRMs, &res.Corrected.MeanHRBPM,
		&tp, &fn, &fp, &sens, &ppv, &res.ReferenceBeats, &correctedJSON,
	)
	if err != nil {
		return model.Result{}, err
	}
	res.Timestamp = time.UnixMilli(tsMs).UTC()
	if tp.Valid {
		res.Match = &model.MatchResult{
			TP:          int(tp.Int64),
			FN:          int(fn.Int64),
			FP:          int(fp.Int64),
			Sensitivity: sens.Float64,
			PPV:         ppv.Float64,
		}
	}
	if correctedJSON.Valid && correctedJSON.String != "" {
		_ = json.Unmarshal([]byte(correctedJSON.String), &res.CorrectedIndices)
	}
	return res, nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}
