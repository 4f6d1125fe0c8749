package hrv

import (
	"gonum.org/v1/gonum/stat"

	"hrvguard/internal/model"
)

// Summarize returns mean and population standard deviation of the RR series
// and the arithmetic mean of the co-indexed rate series.
func Summarize(rrMs, rateBPM []float64) (model.Stats, error) {
	if len(rrMs) == 0 || len(rateBPM) == 0 {
		return model.Stats{}, ErrEmptySeries
	}
	if len(rrMs) != len(rateBPM) {
		return model.Stats{}, ErrLengthMismatch
	}
	mean, std := stat.PopMeanStdDev(rrMs, nil)
	return model.Stats{
		MeanRRMs:  mean,
		StdRRMs:   std,
		MeanHRBPM: stat.Mean(rateBPM, nil),
	}, nil
}
