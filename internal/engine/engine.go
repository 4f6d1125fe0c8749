package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hrvguard/internal/alerts"
	"hrvguard/internal/config"
	"hrvguard/internal/model"
	"hrvguard/internal/normalize"
	"hrvguard/internal/results"
	"hrvguard/internal/storage"
	"hrvguard/internal/telemetry"
)

var ErrDuplicate = errors.New("duplicate job")

// Publisher receives every result and alert, e.g. the websocket hub.
type Publisher interface {
	Publish(kind string, payload any)
}

type Engine struct {
	logger    *slog.Logger
	results   *results.Store
	alerts    *alerts.Store
	store     storage.Store
	telemetry *telemetry.Metrics
	publisher Publisher
	cfg       atomic.Value
	pipeline  atomic.Pointer[Pipeline]
	mu        sync.Mutex
	started   time.Time
	cooldown  *Cooldown
	deDupe    *DedupeCache
	wg        sync.WaitGroup

	processed  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
}

type Status struct {
	Started    time.Time `json:"started"`
	Uptime     string    `json:"uptime"`
	Workers    int       `json:"workers"`
	Processed  int64     `json:"processed"`
	Failed     int64     `json:"failed"`
	Duplicates int64     `json:"duplicates"`
}

func NewEngine(cfg *config.Config, logger *slog.Logger, resultsStore *results.Store, alertsStore *alerts.Store, store storage.Store) *Engine {
	e := &Engine{
		logger:   logger,
		results:  resultsStore,
		alerts:   alertsStore,
		store:    store,
		started:  time.Now().UTC(),
		cooldown: NewCooldown(),
		deDupe:   NewDedupeCache(),
	}
	e.UpdateConfig(cfg)
	return e
}

func (e *Engine) SetTelemetry(m *telemetry.Metrics) {
	e.telemetry = m
}

func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

// UpdateConfig swaps the pipeline; jobs already running finish on the old one.
func (e *Engine) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e.cfg.Store(cfg)
	e.pipeline.Store(NewPipeline(cfg.Pipeline, nil, nil))
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// Start launches pipeline.workers goroutines draining in until ctx is done
// or in is closed.
func (e *Engine) Start(ctx context.Context, in <-chan model.Job) {
	workers := e.config().Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case job, ok := <-in:
					if !ok {
						return
					}
					_, _, _ = e.ProcessJob(job)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Wait blocks until every worker started by Start has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ProcessJob runs a queued job, dropping it when an identical job was seen
// within the dedupe window.
func (e *Engine) ProcessJob(job model.Job) (model.Result, []model.Alert, error) {
	return e.process(job, true)
}

// Analyze runs a job synchronously without the duplicate check.
func (e *Engine) Analyze(job model.Job) (model.Result, []model.Alert, error) {
	return e.process(job, false)
}

func (e *Engine) process(job model.Job, dedupe bool) (model.Result, []model.Alert, error) {
	cfg := e.config()
	job = normalize.Job(job, cfg)
	channel := cfg.Pipeline.Channel
	if job.Channel != nil {
		channel = *job.Channel
	}
	if dedupe && e.isDuplicate(job, channel, cfg.Quality.DedupeWindow) {
		e.duplicates.Add(1)
		e.telemetry.IncJobsDropped("duplicate")
		if e.logger != nil {
			e.logger.Debug("duplicate job dropped", "record_id", job.RecordID, "source", job.Source)
		}
		return model.Result{}, nil, ErrDuplicate
	}

	start := time.Now()
	res, err := e.pipeline.Load().Run(job)
	elapsed := time.Since(start)
	if err != nil {
		e.failed.Add(1)
		e.telemetry.ObserveRun("error", elapsed, 0)
		if e.logger != nil {
			e.logger.Warn("pipeline run failed",
				"record_id", job.RecordID,
				"source", job.Source,
				"err", err,
			)
		}
		e.publish("error", map[string]string{"record_id": job.RecordID, "error": err.Error()})
		return model.Result{}, nil, err
	}
	e.processed.Add(1)
	e.telemetry.ObserveRun("ok", elapsed, res.CorrectedCount)
	if res.Match != nil {
		e.telemetry.ObserveMatch(res.Match.Sensitivity, res.Match.PPV)
	}
	if e.results != nil {
		e.results.Update(res)
	}
	if e.store != nil {
		if err := e.store.SaveResult(context.Background(), res); err != nil && e.logger != nil {
			e.logger.Error("save result failed", "record_id", res.RecordID, "err", err)
		}
	}
	if e.logger != nil {
		e.logger.Info("record analysed",
			"record_id", res.RecordID,
			"channel", res.Channel,
			"peaks", res.Peaks,
			"corrected", res.CorrectedCount,
			"mean_hr_bpm", res.Corrected.MeanHRBPM,
			"duration", elapsed,
		)
	}
	e.publish("result", res)

	alertsOut := make([]model.Alert, 0, 1)
	if alert, ok := e.evaluate(cfg.Quality, res); ok {
		alertsOut = append(alertsOut, alert)
		if e.alerts != nil {
			e.alerts.Add(alert)
		}
		for _, rule := range alert.Rules {
			e.telemetry.IncAlert(rule)
		}
		if e.logger != nil {
			e.logger.Warn("quality alert",
				"record_id", alert.RecordID,
				"severity", alert.Severity,
				"rules", alert.Rules,
			)
		}
		if e.store != nil {
			if err := e.store.SaveAlert(context.Background(), alert); err != nil && e.logger != nil {
				e.logger.Error("save alert failed", "record_id", alert.RecordID, "err", err)
			}
		}
		e.publish("alert", alert)
	}
	return res, alertsOut, nil
}

func (e *Engine) Reset() {
	e.mu.Lock()
	e.cooldown = NewCooldown()
	e.deDupe = NewDedupeCache()
	e.mu.Unlock()
	e.processed.Store(0)
	e.failed.Store(0)
	e.duplicates.Store(0)
}

func (e *Engine) Status() Status {
	now := time.Now().UTC()
	return Status{
		Started:    e.started,
		Uptime:     now.Sub(e.started).Truncate(time.Second).String(),
		Workers:    e.config().Pipeline.Workers,
		Processed:  e.processed.Load(),
		Failed:     e.failed.Load(),
		Duplicates: e.duplicates.Load(),
	}
}

func (e *Engine) evaluate(q config.QualityConfig, res model.Result) (model.Alert, bool) {
	var rules []string
	critical := false
	if m := res.Match; m != nil {
		if q.MinSensitivity > 0 && m.Sensitivity < q.MinSensitivity {
			rules = append(rules, "low_sensitivity")
			critical = critical || m.Sensitivity < q.MinSensitivity/2
		}
		if q.MinPPV > 0 && m.PPV < q.MinPPV {
			rules = append(rules, "low_ppv")
			critical = critical || m.PPV < q.MinPPV/2
		}
	}
	ratio := res.ArtifactRatio()
	if q.MaxArtifactRatio > 0 && ratio > q.MaxArtifactRatio {
		rules = append(rules, "artifact_burden")
	}
	hr := res.Corrected.MeanHRBPM
	if (q.MinHeartRate > 0 && hr < q.MinHeartRate) || (q.MaxHeartRate > 0 && hr > q.MaxHeartRate) {
		rules = append(rules, "heart_rate_out_of_range")
	}
	if len(rules) == 0 {
		return model.Alert{}, false
	}
	if !e.cooldownSet().Allow(res.RecordID, res.Channel, q.AlertCooldown) {
		return model.Alert{}, false
	}
	severity := "medium"
	if critical {
		severity = "critical"
	} else if len(rules) >= 2 {
		severity = "high"
	}
	details := map[string]string{
		"engine":         "hrvguard",
		"channel":        strconv.Itoa(res.Channel),
		"artifact_ratio": formatFloat(ratio),
		"mean_hr_bpm":    formatFloat(hr),
	}
	if m := res.Match; m != nil {
		details["sensitivity_pct"] = formatFloat(m.Sensitivity)
		details["ppv_pct"] = formatFloat(m.PPV)
	}
	return model.Alert{
		Timestamp: time.Now().UTC(),
		RecordID:  res.RecordID,
		ResultID:  res.ID,
		Severity:  severity,
		AlertType: "signal_quality",
		Rules:     rules,
		Context:   details,
	}, true
}

func (e *Engine) isDuplicate(job model.Job, channel int, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	e.mu.Lock()
	cache := e.deDupe
	e.mu.Unlock()
	return cache.Seen(hashJob(job, channel), time.Now().UTC(), window)
}

func (e *Engine) cooldownSet() *Cooldown {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cooldown
}

func (e *Engine) publish(kind string, payload any) {
	if e.publisher != nil {
		e.publisher.Publish(kind, payload)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
