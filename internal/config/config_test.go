package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hrvguard.yaml")
	content := `
log_level: debug
pipeline:
  window_size: 5
  relative_threshold: 0.2
  tolerance_sec: 0.15
  workers: 2
  detector:
    refractory: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Pipeline.WindowSize != 5 || cfg.Pipeline.RelativeThreshold != 0.2 {
		t.Fatalf("unexpected pipeline: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Detector.Refractory != 250*time.Millisecond {
		t.Fatalf("refractory = %s", cfg.Pipeline.Detector.Refractory)
	}
	if len(cfg.Pipeline.BeatSymbols) != len(DefaultBeatSymbols) {
		t.Fatalf("beat symbols not defaulted: %v", cfg.Pipeline.BeatSymbols)
	}
	if !cfg.Pipeline.Filter.Enabled || cfg.Pipeline.Filter.Order != 4 {
		t.Fatalf("filter defaults lost: %+v", cfg.Pipeline.Filter)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hrvguard.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"window_size":7,"relative_threshold":0.1,"tolerance_sec":0.1,"workers":1}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.WindowSize != 7 {
		t.Fatalf("window_size = %d", cfg.Pipeline.WindowSize)
	}
}

func TestValidatePipeline(t *testing.T) {
	p := DefaultConfig().Pipeline
	if err := ValidatePipeline(p); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := p
	bad.RelativeThreshold = 0
	if err := ValidatePipeline(bad); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	bad = p
	bad.ToleranceSec = -1
	if err := ValidatePipeline(bad); err == nil {
		t.Fatalf("expected error for negative tolerance")
	}
	bad = p
	bad.Filter.LowHz = 50
	if err := ValidatePipeline(bad); err == nil {
		t.Fatalf("expected error for inverted band")
	}
}

func TestManagerUpdateAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hrvguard.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.Pipeline.RelativeThreshold = 0.2
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Pipeline.RelativeThreshold != 0.2 {
		t.Fatalf("threshold not persisted: %v", cfg.Pipeline.RelativeThreshold)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HRVGUARD_LOG_LEVEL", "warn")
	t.Setenv("HRVGUARD_WORKERS", "8")
	cfg := DefaultConfig()
	ApplyEnv(cfg)
	if cfg.LogLevel != "warn" || cfg.Pipeline.Workers != 8 {
		t.Fatalf("env not applied: %s %d", cfg.LogLevel, cfg.Pipeline.Workers)
	}
}

func TestReloadAppliesEnvBeforePublishing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("HRVGUARD_API_ADDR", ":9999")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	first := m.Get()
	if first.API.Addr != ":9999" {
		t.Fatalf("env not applied on load: %q", first.API.Addr)
	}
	t.Setenv("HRVGUARD_API_ADDR", ":7777")
	next, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if next.API.Addr != ":7777" || m.Get().API.Addr != ":7777" {
		t.Fatalf("env not applied on reload: %q", m.Get().API.Addr)
	}
	if first.API.Addr != ":9999" {
		t.Fatalf("published config was mutated: %q", first.API.Addr)
	}
}
