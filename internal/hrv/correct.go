package hrv

import (
	"math"
	"sort"
)

const (
	DefaultWindowSize        = 10
	DefaultRelativeThreshold = 0.10
)

// Corrector replaces RR intervals that stray from a centered moving average
// by more than Threshold (relative to the average). Series length and index
// alignment are preserved.
type Corrector struct {
	Window    int
	Threshold float64
}

type Correction struct {
	IntervalsMs   []float64
	RateBPM       []float64
	// MovingAverage is taken over the uncorrected input.
	MovingAverage []float64
	Indices       []int
}

func (c Correction) Count() int {
	return len(c.Indices)
}

// NewCorrector falls back to the defaults for non-positive arguments.
func NewCorrector(window int, threshold float64) Corrector {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if threshold <= 0 {
		threshold = DefaultRelativeThreshold
	}
	return Corrector{Window: window, Threshold: threshold}
}

// Correct works on intervals in milliseconds. Intervals closer than
// (Window-1)/2 to either end are never touched. A flagged interval is only
// replaced when its relative deviation is the largest in its window, so the
// neighbours of a single ectopic interval keep their values. After each round
// the average is recomputed from the partly corrected series and the
// remaining intervals are checked again until a round replaces nothing.
// Replaced intervals are never revisited.
func (c Corrector) Correct(rrMs []float64) (Correction, error) {
	if c.Window < 1 {
		return Correction{}, ErrInvalidWindow
	}
	if c.Threshold <= 0 {
		return Correction{}, ErrNonPositiveThreshold
	}
	if len(rrMs) == 0 {
		return Correction{}, ErrEmptySeries
	}
	if c.Window >= len(rrMs) {
		return Correction{}, ErrWindowTooLarge
	}

	n := len(rrMs)
	half := (c.Window - 1) / 2
	out := Correction{
		IntervalsMs: append([]float64(nil), rrMs...),
		RateBPM:     make([]float64, n),
	}
	cur := out.IntervalsMs
	replaced := make([]bool, n)
	for {
		ma := movingAverage(cur, c.Window)
		if out.MovingAverage == nil {
			out.MovingAverage = ma
		}
		rel := relativeDeviation(cur, ma)
		var round []int
		for i := half; i < n-half; i++ {
			if replaced[i] || math.Abs(cur[i]-ma[i]) <= c.Threshold*ma[i] {
				continue
			}
			if dominates(rel, i, c.Window) {
				round = append(round, i)
			}
		}
		if len(round) == 0 {
			break
		}
		for _, i := range round {
			cur[i] = ma[i]
			replaced[i] = true
		}
		out.Indices = append(out.Indices, round...)
	}
	sort.Ints(out.Indices)
	for i, v := range out.IntervalsMs {
		out.RateBPM[i] = 60000 / v
	}
	return out, nil
}

// windowBounds mirrors a 'same'-mode convolution: for even sizes the window
// reaches one sample further back than forward.
func windowBounds(i, n, window int) (int, int) {
	right := (window - 1) / 2
	left := window - 1 - right
	lo := i - left
	hi := i + right
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

func movingAverage(values []float64, window int) []float64 {
	n := len(values)
	prefix := make([]float64, n+1)
	for i, v := range values {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, n)
	for i := range values {
		lo, hi := windowBounds(i, n, window)
		out[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}
	return out
}

func relativeDeviation(values, avg []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Abs(v-avg[i]) / avg[i]
	}
	return out
}

// dominates reports whether rel[i] is the largest in the window around i.
// Ties go to the earlier index.
func dominates(rel []float64, i, window int) bool {
	lo, hi := windowBounds(i, len(rel), window)
	for j := lo; j <= hi; j++ {
		if rel[j] > rel[i] || (rel[j] == rel[i] && j < i) {
			return false
		}
	}
	return true
}
