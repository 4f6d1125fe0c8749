package signal

import (
	"math"
	"sort"
	"time"
)

const (
	DefaultRefractory     = 200 * time.Millisecond
	DefaultIntegration    = 150 * time.Millisecond
	DefaultThresholdRatio = 0.35
)

// EnergyDetector locates R-peaks on a band-passed ECG: the squared slope is
// integrated over a short window, regions above a fraction of its 99th
// percentile mark QRS complexes, and the largest sample around each region is
// the peak.
type EnergyDetector struct {
	Refractory     time.Duration
	Integration    time.Duration
	ThresholdRatio float64
}

func NewEnergyDetector(refractory, integration time.Duration, ratio float64) *EnergyDetector {
	if refractory <= 0 {
		refractory = DefaultRefractory
	}
	if integration <= 0 {
		integration = DefaultIntegration
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultThresholdRatio
	}
	return &EnergyDetector{Refractory: refractory, Integration: integration, ThresholdRatio: ratio}
}

// Detect returns strictly increasing sample indices, possibly none.
func (d *EnergyDetector) Detect(samples []float64, fs float64) ([]int, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySignal
	}
	if fs <= 0 {
		return nil, ErrInvalidBand
	}
	n := len(samples)
	width := int(math.Round(d.Integration.Seconds() * fs))
	if width < 1 {
		width = 1
	}
	refractory := int(math.Round(d.Refractory.Seconds() * fs))

	energy := make([]float64, n)
	for i := 1; i < n-1; i++ {
		slope := samples[i+1] - samples[i-1]
		energy[i] = slope * slope
	}
	integrated := centeredSum(energy, width)
	threshold := d.ThresholdRatio * percentile(integrated, 99)
	if threshold <= 0 {
		return nil, nil
	}

	peaks := make([]int, 0, 64)
	for i := 0; i < n; {
		if integrated[i] <= threshold {
			i++
			continue
		}
		start := i
		for i < n && integrated[i] > threshold {
			i++
		}
		peak := argmax(samples, start-width/2, i+width/2)
		if len(peaks) > 0 {
			last := peaks[len(peaks)-1]
			if peak <= last {
				continue
			}
			if peak-last < refractory {
				if samples[peak] > samples[last] {
					peaks[len(peaks)-1] = peak
				}
				continue
			}
		}
		peaks = append(peaks, peak)
	}
	return peaks, nil
}

func centeredSum(x []float64, width int) []float64 {
	n := len(x)
	prefix := make([]float64, n+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, n)
	half := width / 2
	for i := range x {
		lo := i - half
		hi := i + width - half
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		out[i] = prefix[hi] - prefix[lo]
	}
	return out
}

func argmax(x []float64, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	if hi > len(x) {
		hi = len(x)
	}
	best := lo
	for i := lo + 1; i < hi; i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	index := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
