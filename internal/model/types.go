package model

import "time"

type Annotation struct {
	Sample int    `json:"sample"`
	Symbol string `json:"symbol"`
}

// Job is one recording submitted for analysis. Peaks take precedence over
// Signals; Signals holds one sample slice per channel.
type Job struct {
	RecordID     string       `json:"record_id"`
	Channel      *int         `json:"channel,omitempty"`
	SamplingRate float64      `json:"sampling_rate"`
	Signals      [][]float64  `json:"signals,omitempty"`
	Peaks        []int        `json:"peaks,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
	ToleranceSec float64      `json:"tolerance_sec,omitempty"`
	Source       string       `json:"source,omitempty"`
}

// RRSeries holds co-indexed interval, rate and midpoint series.
type RRSeries struct {
	IntervalsSec  []float64 `json:"intervals_sec"`
	IntervalsMs   []float64 `json:"intervals_ms"`
	RateBPM       []float64 `json:"rate_bpm"`
	TimestampsSec []float64 `json:"timestamps_sec"`
}

func (s RRSeries) Len() int {
	return len(s.IntervalsSec)
}

type Stats struct {
	MeanRRMs  float64 `json:"mean_rr_ms"`
	StdRRMs   float64 `json:"std_rr_ms"`
	MeanHRBPM float64 `json:"mean_hr_bpm"`
}

type MatchResult struct {
	TP          int     `json:"tp"`
	FN          int     `json:"fn"`
	FP          int     `json:"fp"`
	Sensitivity float64 `json:"sensitivity_pct"`
	PPV         float64 `json:"ppv_pct"`
}

type Result struct {
	ID               string       `json:"id"`
	Timestamp        time.Time    `json:"timestamp"`
	RecordID         string       `json:"record_id"`
	Channel          int          `json:"channel"`
	Source           string       `json:"source,omitempty"`
	SamplingRate     float64      `json:"sampling_rate"`
	Peaks            int          `json:"peaks"`
	Intervals        int          `json:"intervals"`
	CorrectedCount   int          `json:"corrected_count"`
	CorrectedIndices []int        `json:"corrected_indices,omitempty"`
	Raw              Stats        `json:"raw"`
	Corrected        Stats        `json:"corrected"`
	Match            *MatchResult `json:"match,omitempty"`
	ReferenceBeats   int          `json:"reference_beats,omitempty"`
}

// ArtifactRatio is the share of intervals the corrector replaced.
func (r Result) ArtifactRatio() float64 {
	if r.Intervals == 0 {
		return 0
	}
	return float64(r.CorrectedCount) / float64(r.Intervals)
}

type Alert struct {
	Timestamp time.Time         `json:"timestamp"`
	RecordID  string            `json:"record_id"`
	ResultID  string            `json:"result_id"`
	Severity  string            `json:"severity"`
	AlertType string            `json:"alert_type"`
	Rules     []string          `json:"rules"`
	Context   map[string]string `json:"context,omitempty"`
}
