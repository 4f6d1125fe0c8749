package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
	Quality   QualityConfig   `json:"quality" yaml:"quality"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Results   ResultsConfig   `json:"results" yaml:"results"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	FileTail      FileTailConfig  `json:"file_tail" yaml:"file_tail"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	NATS          NATSConfig      `json:"nats" yaml:"nats"`
	Parser        ParserConfig    `json:"parser" yaml:"parser"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type FileTailConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type NATSConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
	Queue   string `json:"queue" yaml:"queue"`
}

type ParserConfig struct {
	DefaultRecordID     string  `json:"default_record_id" yaml:"default_record_id"`
	DefaultSamplingRate float64 `json:"default_sampling_rate" yaml:"default_sampling_rate"`
}

type PipelineConfig struct {
	Workers           int            `json:"workers" yaml:"workers"`
	Channel           int            `json:"channel" yaml:"channel"`
	WindowSize        int            `json:"window_size" yaml:"window_size"`
	RelativeThreshold float64        `json:"relative_threshold" yaml:"relative_threshold"`
	ToleranceSec      float64        `json:"tolerance_sec" yaml:"tolerance_sec"`
	BeatSymbols       []string       `json:"beat_symbols" yaml:"beat_symbols"`
	Filter            FilterConfig   `json:"filter" yaml:"filter"`
	Detector          DetectorConfig `json:"detector" yaml:"detector"`
}

type FilterConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	LowHz   float64 `json:"low_hz" yaml:"low_hz"`
	HighHz  float64 `json:"high_hz" yaml:"high_hz"`
	Order   int     `json:"order" yaml:"order"`
}

type DetectorConfig struct {
	Refractory     time.Duration `json:"refractory" yaml:"refractory"`
	Integration    time.Duration `json:"integration" yaml:"integration"`
	ThresholdRatio float64       `json:"threshold_ratio" yaml:"threshold_ratio"`
}

type QualityConfig struct {
	MinSensitivity   float64       `json:"min_sensitivity" yaml:"min_sensitivity"`
	MinPPV           float64       `json:"min_ppv" yaml:"min_ppv"`
	MaxArtifactRatio float64       `json:"max_artifact_ratio" yaml:"max_artifact_ratio"`
	MinHeartRate     float64       `json:"min_heart_rate" yaml:"min_heart_rate"`
	MaxHeartRate     float64       `json:"max_heart_rate" yaml:"max_heart_rate"`
	AlertCooldown    time.Duration `json:"alert_cooldown" yaml:"alert_cooldown"`
	DedupeWindow     time.Duration `json:"dedupe_window" yaml:"dedupe_window"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type ResultsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

// DefaultBeatSymbols are the MIT-BIH annotation codes that mark a beat;
// rhythm and signal-quality annotations are excluded.
var DefaultBeatSymbols = []string{"N", "L", "R", "A", "a", "J", "S", "V", "F", "e", "j", "/", "E", "f", "Q"}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Ingest: IngestConfig{
			ChannelBuffer: 256,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			FileTail:      FileTailConfig{Enabled: false, StartAtEnd: true},
			Kafka:         KafkaConfig{Enabled: false},
			NATS:          NATSConfig{Enabled: false, URL: "nats://127.0.0.1:4222", Subject: "hrv.jobs"},
			Parser:        ParserConfig{DefaultRecordID: "unknown", DefaultSamplingRate: 360},
		},
		Pipeline: PipelineConfig{
			Workers:           4,
			Channel:           0,
			WindowSize:        10,
			RelativeThreshold: 0.10,
			ToleranceSec:      0.100,
			BeatSymbols:       append([]string(nil), DefaultBeatSymbols...),
			Filter:            FilterConfig{Enabled: true, LowHz: 0.5, HighHz: 40, Order: 4},
			Detector: DetectorConfig{
				Refractory:     200 * time.Millisecond,
				Integration:    150 * time.Millisecond,
				ThresholdRatio: 0.35,
			},
		},
		Quality: QualityConfig{
			MinSensitivity:   99.0,
			MinPPV:           99.0,
			MaxArtifactRatio: 0.05,
			MinHeartRate:     30,
			MaxHeartRate:     220,
			AlertCooldown:    30 * time.Second,
			DedupeWindow:     10 * time.Second,
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:hrvguard.db?_pragma=busy_timeout(5000)"},
		Results: ResultsConfig{StoreLimit: 5000},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Results.StoreLimit <= 0 {
		cfg.Results.StoreLimit = 5000
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 256
	}
	if cfg.Ingest.Parser.DefaultRecordID == "" {
		cfg.Ingest.Parser.DefaultRecordID = "unknown"
	}
	if len(cfg.Pipeline.BeatSymbols) == 0 {
		cfg.Pipeline.BeatSymbols = append([]string(nil), DefaultBeatSymbols...)
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 4
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.FileTail.Enabled && len(cfg.Ingest.FileTail.Files) == 0 {
		return errors.New("ingest.file_tail.files required when ingest.file_tail.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.NATS.Enabled && (cfg.Ingest.NATS.URL == "" || cfg.Ingest.NATS.Subject == "") {
		return errors.New("ingest.nats requires url and subject")
	}
	return ValidatePipeline(cfg.Pipeline)
}

// ValidatePipeline is also used when the pipeline section is replaced
// through the API.
func ValidatePipeline(p PipelineConfig) error {
	if p.WindowSize < 1 {
		return errors.New("pipeline.window_size must be >= 1")
	}
	if p.RelativeThreshold <= 0 {
		return errors.New("pipeline.relative_threshold must be > 0")
	}
	if p.ToleranceSec <= 0 {
		return errors.New("pipeline.tolerance_sec must be > 0")
	}
	if p.Channel < 0 {
		return errors.New("pipeline.channel must be >= 0")
	}
	if p.Workers < 1 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if p.Filter.Enabled {
		if p.Filter.Order < 1 {
			return errors.New("pipeline.filter.order must be >= 1")
		}
		if p.Filter.LowHz <= 0 || p.Filter.HighHz <= p.Filter.LowHz {
			return fmt.Errorf("pipeline.filter band invalid: low=%g high=%g", p.Filter.LowHz, p.Filter.HighHz)
		}
	}
	if p.Detector.ThresholdRatio < 0 || p.Detector.ThresholdRatio >= 1 {
		return errors.New("pipeline.detector.threshold_ratio must be in [0, 1)")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Save(m.path, cfg); err != nil {
		return err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
