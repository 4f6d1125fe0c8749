package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hrvguard/internal/accuracy"
	"hrvguard/internal/config"
	"hrvguard/internal/hrv"
	"hrvguard/internal/model"
	"hrvguard/internal/normalize"
	"hrvguard/internal/signal"
)

var (
	ErrNoInput            = errors.New("job has neither peaks nor signals")
	ErrChannelOutOfRange  = errors.New("channel not present in signals")
	ErrNoPeaksDetected    = errors.New("detector found fewer than two peaks")
	ErrMissingRecordID    = errors.New("record id is required")
	ErrNegativeTolerance  = errors.New("tolerance must not be negative")
	errPipelineNotStarted = errors.New("pipeline not configured")
)

type BandpassFilter interface {
	Apply(samples []float64, fs float64) ([]float64, error)
}

type PeakDetector interface {
	Detect(samples []float64, fs float64) ([]int, error)
}

// Pipeline turns one job into a Result. It holds no per-job state and may be
// shared between workers.
type Pipeline struct {
	cfg       config.PipelineConfig
	filter    BandpassFilter
	detector  PeakDetector
	corrector hrv.Corrector
	now       func() time.Time
}

// NewPipeline uses the default signal collaborators when filter or detector
// is nil. A disabled filter config leaves the signal untouched.
func NewPipeline(cfg config.PipelineConfig, filter BandpassFilter, detector PeakDetector) *Pipeline {
	if filter == nil && cfg.Filter.Enabled {
		filter = signal.NewBandpass(cfg.Filter.LowHz, cfg.Filter.HighHz, cfg.Filter.Order)
	}
	if detector == nil {
		detector = signal.NewEnergyDetector(cfg.Detector.Refractory, cfg.Detector.Integration, cfg.Detector.ThresholdRatio)
	}
	if len(cfg.BeatSymbols) == 0 {
		cfg.BeatSymbols = config.DefaultBeatSymbols
	}
	return &Pipeline{
		cfg:       cfg,
		filter:    filter,
		detector:  detector,
		corrector: hrv.NewCorrector(cfg.WindowSize, cfg.RelativeThreshold),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Run(job model.Job) (model.Result, error) {
	if p == nil {
		return model.Result{}, errPipelineNotStarted
	}
	if job.RecordID == "" {
		return model.Result{}, ErrMissingRecordID
	}
	if job.ToleranceSec < 0 {
		return model.Result{}, ErrNegativeTolerance
	}
	channel := p.cfg.Channel
	if job.Channel != nil {
		channel = *job.Channel
	}

	peaks, err := p.resolvePeaks(job, channel)
	if err != nil {
		return model.Result{}, err
	}
	series, err := hrv.BuildSeries(peaks, job.SamplingRate)
	if err != nil {
		return model.Result{}, fmt.Errorf("build rr series: %w", err)
	}
	raw, err := hrv.Summarize(series.IntervalsMs, series.RateBPM)
	if err != nil {
		return model.Result{}, fmt.Errorf("raw stats: %w", err)
	}
	corrected, err := p.corrector.Correct(series.IntervalsMs)
	if err != nil {
		return model.Result{}, fmt.Errorf("correct rr series: %w", err)
	}
	clean, err := hrv.Summarize(corrected.IntervalsMs, corrected.RateBPM)
	if err != nil {
		return model.Result{}, fmt.Errorf("corrected stats: %w", err)
	}

	res := model.Result{
		ID:               uuid.NewString(),
		Timestamp:        p.now(),
		RecordID:         job.RecordID,
		Channel:          channel,
		Source:           job.Source,
		SamplingRate:     job.SamplingRate,
		Peaks:            len(peaks),
		Intervals:        series.Len(),
		CorrectedCount:   corrected.Count(),
		CorrectedIndices: corrected.Indices,
		Raw:              raw,
		Corrected:        clean,
	}

	reference := normalize.ReferenceBeats(job.Annotations, p.cfg.BeatSymbols)
	if len(reference) > 0 {
		tolSec := p.cfg.ToleranceSec
		if job.ToleranceSec > 0 {
			tolSec = job.ToleranceSec
		}
		match, err := accuracy.Score(reference, peaks, accuracy.ToleranceSamples(tolSec, job.SamplingRate))
		if err != nil {
			return model.Result{}, fmt.Errorf("score detections: %w", err)
		}
		res.Match = &match
		res.ReferenceBeats = len(reference)
	}
	return res, nil
}

func (p *Pipeline) resolvePeaks(job model.Job, channel int) ([]int, error) {
	if len(job.Peaks) > 0 {
		return job.Peaks, nil
	}
	if len(job.Signals) == 0 {
		return nil, ErrNoInput
	}
	if channel < 0 || channel >= len(job.Signals) {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrChannelOutOfRange, channel, len(job.Signals))
	}
	if job.SamplingRate <= 0 {
		return nil, hrv.ErrNonPositiveRate
	}
	samples := job.Signals[channel]
	if p.filter != nil {
		filtered, err := p.filter.Apply(samples, job.SamplingRate)
		if err != nil {
			return nil, fmt.Errorf("bandpass: %w", err)
		}
		samples = filtered
	}
	peaks, err := p.detector.Detect(samples, job.SamplingRate)
	if err != nil {
		return nil, fmt.Errorf("detect peaks: %w", err)
	}
	if len(peaks) < 2 {
		return nil, ErrNoPeaksDetected
	}
	return peaks, nil
}
