package ingest

import (
	"path/filepath"
	"testing"

	"hrvguard/internal/config"
)

func newManagerForTest(t *testing.T, mutate func(*config.Config)) *config.Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	m, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestParseKeyValue(t *testing.T) {
	p := NewParser()
	job, err := p.ParseLine("record=100 fs=360 channel=1 peaks=77,370,662 ann=77:N,370:V,500:+ tol=0.05", config.DefaultConfig())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if job.RecordID != "100" || job.SamplingRate != 360 {
		t.Fatalf("unexpected header fields: %+v", job)
	}
	if job.Channel == nil || *job.Channel != 1 {
		t.Fatalf("channel not parsed")
	}
	if len(job.Peaks) != 3 || job.Peaks[2] != 662 {
		t.Fatalf("peaks: %v", job.Peaks)
	}
	if len(job.Annotations) != 3 || job.Annotations[1].Symbol != "V" {
		t.Fatalf("annotations: %v", job.Annotations)
	}
	if job.ToleranceSec != 0.05 {
		t.Fatalf("tolerance: %v", job.ToleranceSec)
	}
}

func TestParseKeyValueDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Ingest.Parser.DefaultSamplingRate = 250
	job, err := NewParser().ParseLine("peaks=1,2,3", cfg)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if job.RecordID != "unknown" || job.SamplingRate != 250 || job.Channel != nil {
		t.Fatalf("defaults not applied: %+v", job)
	}
}

func TestParseJSON(t *testing.T) {
	p := NewParser()
	line := `{"record_id":"101","sampling_rate":360,"peaks":[10,400],"annotations":[{"sample":10,"symbol":"N"}]}`
	job, err := p.ParseLine(line, config.DefaultConfig())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if job.RecordID != "101" || len(job.Peaks) != 2 || len(job.Annotations) != 1 {
		t.Fatalf("json parse mismatch: %+v", job)
	}
}

func TestParseJSONShortNames(t *testing.T) {
	job, err := NewParser().ParseLine(`{"record":"102","fs":500,"peaks":[1,2]}`, config.DefaultConfig())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if job.RecordID != "102" || job.SamplingRate != 500 {
		t.Fatalf("short names not honoured: %+v", job)
	}
}

func TestParseSkipsBlankAndComments(t *testing.T) {
	p := NewParser()
	for _, line := range []string{"", "   ", "# header"} {
		job, err := p.ParseLine(line, config.DefaultConfig())
		if err != nil || job != nil {
			t.Fatalf("line %q: expected nil job, got %v %v", line, job, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser()
	cases := []string{
		"just some text",
		"record=1 peaks=1,x",
		"record=1 ann=77",
		`{"record_id": 5}`,
		`{}`,
	}
	for _, line := range cases {
		if _, err := p.ParseLine(line, config.DefaultConfig()); err == nil {
			t.Fatalf("line %q: expected error", line)
		}
	}
}

func TestParseJSONList(t *testing.T) {
	body := []byte(` [{"record_id":"a","peaks":[1,2]}, {"record_id":7}, {"record_id":"b","peaks":[3,4]}] `)
	jobs, errs, err := ParseJSONList(body, config.DefaultConfig())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || len(errs) != 1 {
		t.Fatalf("expected 2 jobs and 1 error, got %d %d", len(jobs), len(errs))
	}
	if _, _, err := ParseJSONList([]byte("[1,"), config.DefaultConfig()); err == nil {
		t.Fatalf("expected malformed array error")
	}
}
