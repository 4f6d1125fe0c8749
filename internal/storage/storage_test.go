package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
)

func newSQLiteForTest(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "hrv.db") + "?_pragma=busy_timeout(5000)"
	st, err := NewStore(config.StorageConfig{Enabled: true, Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return st
}

func TestSQLiteResultRoundTrip(t *testing.T) {
	st := newSQLiteForTest(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	withMatch := model.Result{
		ID:               "r2",
		Timestamp:        now,
		RecordID:         "100",
		Source:           "rest",
		SamplingRate:     360,
		Peaks:            5,
		Intervals:        4,
		CorrectedCount:   1,
		CorrectedIndices: []int{2},
		Raw:              model.Stats{MeanRRMs: 812, StdRRMs: 40, MeanHRBPM: 74},
		Corrected:        model.Stats{MeanRRMs: 800, StdRRMs: 8, MeanHRBPM: 75},
		Match:            &model.MatchResult{TP: 4, FN: 1, FP: 0, Sensitivity: 80, PPV: 100},
		ReferenceBeats:   5,
	}
	withoutMatch := withMatch
	withoutMatch.ID = "r1"
	withoutMatch.Timestamp = now.Add(-time.Minute)
	withoutMatch.Match = nil
	withoutMatch.CorrectedIndices = nil
	if err := st.SaveResult(ctx, withoutMatch); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveResult(ctx, withMatch); err != nil {
		t.Fatalf("save: %v", err)
	}
	list, err := st.RecentResults(ctx, "100", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(list) != 2 || list[0].ID != "r2" || list[1].ID != "r1" {
		t.Fatalf("unexpected order: %+v", list)
	}
	got := list[0]
	if got.Match == nil || got.Match.TP != 4 || got.Match.Sensitivity != 80 {
		t.Fatalf("match not restored: %+v", got.Match)
	}
	if !got.Timestamp.Equal(now) || len(got.CorrectedIndices) != 1 || got.CorrectedIndices[0] != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if list[1].Match != nil {
		t.Fatalf("expected nil match, got %+v", list[1].Match)
	}
}

func TestSQLiteSaveAlert(t *testing.T) {
	st := newSQLiteForTest(t)
	err := st.SaveAlert(context.Background(), model.Alert{
		Timestamp: time.Now(),
		RecordID:  "100",
		ResultID:  "r1",
		Severity:  "high",
		AlertType: "detection_quality",
		Rules:     []string{"low_sensitivity"},
	})
	if err != nil {
		t.Fatalf("save alert: %v", err)
	}
}

func TestNewStoreDisabledAndUnknown(t *testing.T) {
	st, err := NewStore(config.StorageConfig{Enabled: false})
	if err != nil || st != nil {
		t.Fatalf("disabled storage should be nil, got %v %v", st, err)
	}
	if _, err := NewStore(config.StorageConfig{Enabled: true, Driver: "mongo"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
