package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncJobsReceived("rest")
	m.ObserveRun("ok", 2*time.Millisecond, 3)
	m.IncAlert("low_sensitivity")
	called := false
	rec := httptest.NewRecorder()
	m.Handler(func() {
		called = true
		m.SetStoredRecords(4)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	if !called {
		t.Fatalf("gauge callback not invoked")
	}
	for _, want := range []string{
		`hrv_jobs_received_total{source="rest"} 1`,
		`hrv_runs_total{status="ok"} 1`,
		`hrv_corrected_intervals_total 3`,
		`hrv_alerts_total{rule="low_sensitivity"} 1`,
		`hrv_stored_records 4`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncJobsReceived("rest")
	m.ObserveRun("failed", time.Millisecond, 0)
	m.ObserveMatch(100, 100)
}
