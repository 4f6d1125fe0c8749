package ingest

import (
	"errors"
	"regexp"
	"strings"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
	"hrvguard/internal/normalize"
)

var reKV = regexp.MustCompile(`(?i)([a-zA-Z_]+)=([^\s]+)`)

var errNoFields = errors.New("line has no key=value fields")

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseLine decodes a JSON job or the compact form
// "record=100 fs=360 channel=0 peaks=77,370 ann=77:N,370:N".
// Blank lines and # comments yield a nil job.
func (p *Parser) ParseLine(line string, cfg *config.Config) (*model.Job, error) {
	trim := strings.TrimSpace(line)
	if trim == "" || strings.HasPrefix(trim, "#") {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		job, err := ParseJSONBytes([]byte(trim), cfg)
		if err != nil {
			return nil, err
		}
		return &job, nil
	}
	fields, err := parsePlain(trim)
	if err != nil {
		return nil, err
	}
	job, err := normalize.FromFields(*fields, cfg)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func parsePlain(line string) (*normalize.Fields, error) {
	kv := map[string]string{}
	for _, match := range reKV.FindAllStringSubmatch(line, -1) {
		kv[strings.ToLower(match[1])] = match[2]
	}
	if len(kv) == 0 {
		return nil, errNoFields
	}
	fields := &normalize.Fields{
		RecordID:     firstNonEmpty(kv, "record", "record_id", "rec"),
		Channel:      firstNonEmpty(kv, "channel", "ch"),
		SamplingRate: firstNonEmpty(kv, "fs", "sampling_rate", "rate"),
		Peaks:        firstNonEmpty(kv, "peaks", "r_peaks"),
		Annotations:  firstNonEmpty(kv, "ann", "annotations"),
		ToleranceSec: firstNonEmpty(kv, "tol", "tolerance", "tolerance_sec"),
	}
	return fields, nil
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}
