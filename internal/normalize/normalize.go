package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
)

// Fields are the raw string values of a job decoded from a text line.
type Fields struct {
	RecordID     string
	Channel      string
	SamplingRate string
	Peaks        string
	Annotations  string
	ToleranceSec string
}

// Job fills in the configured defaults for record ID and sampling rate.
func Job(job model.Job, cfg *config.Config) model.Job {
	job.RecordID = strings.TrimSpace(job.RecordID)
	if job.RecordID == "" {
		job.RecordID = cfg.Ingest.Parser.DefaultRecordID
	}
	if job.SamplingRate == 0 {
		job.SamplingRate = cfg.Ingest.Parser.DefaultSamplingRate
	}
	for i := range job.Annotations {
		job.Annotations[i].Symbol = strings.TrimSpace(job.Annotations[i].Symbol)
	}
	return job
}

func FromFields(fields Fields, cfg *config.Config) (model.Job, error) {
	job := model.Job{RecordID: fields.RecordID}
	if v := strings.TrimSpace(fields.SamplingRate); v != "" {
		fs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.Job{}, fmt.Errorf("parse sampling rate: %w", err)
		}
		job.SamplingRate = fs
	}
	if v := strings.TrimSpace(fields.Channel); v != "" {
		ch, err := strconv.Atoi(v)
		if err != nil {
			return model.Job{}, fmt.Errorf("parse channel: %w", err)
		}
		job.Channel = &ch
	}
	if v := strings.TrimSpace(fields.ToleranceSec); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.Job{}, fmt.Errorf("parse tolerance: %w", err)
		}
		job.ToleranceSec = tol
	}
	peaks, err := ParsePeaks(fields.Peaks)
	if err != nil {
		return model.Job{}, err
	}
	job.Peaks = peaks
	anns, err := ParseAnnotations(fields.Annotations)
	if err != nil {
		return model.Job{}, err
	}
	job.Annotations = anns
	return Job(job, cfg), nil
}

// ParsePeaks reads a comma separated list of sample indices.
func ParsePeaks(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse peak %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseAnnotations reads "sample:symbol" pairs separated by commas.
func ParseAnnotations(value string) ([]model.Annotation, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]model.Annotation, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sample, symbol, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("annotation %q: expected sample:symbol", p)
		}
		n, err := strconv.Atoi(strings.TrimSpace(sample))
		if err != nil {
			return nil, fmt.Errorf("parse annotation sample %q: %w", sample, err)
		}
		out = append(out, model.Annotation{Sample: n, Symbol: strings.TrimSpace(symbol)})
	}
	return out, nil
}

// ReferenceBeats keeps the sample indices of annotations whose symbol is a
// beat code, sorted ascending.
func ReferenceBeats(anns []model.Annotation, symbols []string) []int {
	if len(anns) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	out := make([]int, 0, len(anns))
	for _, a := range anns {
		if _, ok := set[a.Symbol]; ok {
			out = append(out, a.Sample)
		}
	}
	sort.Ints(out)
	return out
}
