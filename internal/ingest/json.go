package ingest

import (
	"encoding/json"
	"errors"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
	"hrvguard/internal/normalize"
)

// jobWire accepts the short field names used by the key=value form.
type jobWire struct {
	model.Job
	Record string  `json:"record"`
	FS     float64 `json:"fs"`
}

var errEmptyJob = errors.New("job object is empty")

func ParseJSONBytes(data []byte, cfg *config.Config) (model.Job, error) {
	var w jobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Job{}, err
	}
	return fromWire(w, cfg)
}

// ParseJSONList decodes a single job object or an array of them. Entries
// that fail to decode are reported in errs without stopping the rest.
func ParseJSONList(data []byte, cfg *config.Config) ([]model.Job, []error, error) {
	trim := bytesTrim(data)
	if len(trim) == 0 {
		return nil, nil, errEmptyJob
	}
	if trim[0] != '[' {
		job, err := ParseJSONBytes(trim, cfg)
		if err != nil {
			return nil, []error{err}, nil
		}
		return []model.Job{job}, nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trim, &raw); err != nil {
		return nil, nil, err
	}
	jobs := make([]model.Job, 0, len(raw))
	var errs []error
	for _, item := range raw {
		job, err := ParseJSONBytes(item, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, errs, nil
}

func fromWire(w jobWire, cfg *config.Config) (model.Job, error) {
	job := w.Job
	if job.RecordID == "" {
		job.RecordID = w.Record
	}
	if job.SamplingRate == 0 {
		job.SamplingRate = w.FS
	}
	if job.RecordID == "" && len(job.Peaks) == 0 && len(job.Signals) == 0 && len(job.Annotations) == 0 {
		return model.Job{}, errEmptyJob
	}
	return normalize.Job(job, cfg), nil
}

func bytesTrim(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\n' || b[start] == '\r' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\r' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
