package hrv

import "hrvguard/internal/model"

// BuildSeries converts ascending R-peak sample indices into the RR interval
// series with its instantaneous heart rate and interval midpoints.
func BuildSeries(peaks []int, fs float64) (model.RRSeries, error) {
	if fs <= 0 {
		return model.RRSeries{}, ErrNonPositiveRate
	}
	if len(peaks) < 2 {
		return model.RRSeries{}, ErrInsufficientPeaks
	}
	n := len(peaks) - 1
	out := model.RRSeries{
		IntervalsSec:  make([]float64, n),
		IntervalsMs:   make([]float64, n),
		RateBPM:       make([]float64, n),
		TimestampsSec: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		if peaks[i+1] <= peaks[i] {
			return model.RRSeries{}, ErrNonIncreasingPeaks
		}
		start := float64(peaks[i]) / fs
		end := float64(peaks[i+1]) / fs
		rr := float64(peaks[i+1]-peaks[i]) / fs
		out.IntervalsSec[i] = rr
		out.IntervalsMs[i] = rr * 1000
		out.RateBPM[i] = 60 / rr
		out.TimestampsSec[i] = start + (end-start)/2
	}
	return out, nil
}
