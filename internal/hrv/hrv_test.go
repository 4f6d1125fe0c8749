package hrv

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBuildSeries(t *testing.T) {
	peaks := []int{0, 360, 756, 1080}
	s, err := BuildSeries(peaks, 360)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.Len() != len(peaks)-1 {
		t.Fatalf("expected %d intervals, got %d", len(peaks)-1, s.Len())
	}
	if !almostEqual(s.IntervalsSec[0], 1.0, 1e-12) || !almostEqual(s.IntervalsMs[1], 1100, 1e-9) {
		t.Fatalf("unexpected intervals: %v", s.IntervalsMs)
	}
	for i := range s.IntervalsSec {
		if !almostEqual(s.RateBPM[i], 60/s.IntervalsSec[i], 1e-9) {
			t.Fatalf("rate[%d] = %f, want %f", i, s.RateBPM[i], 60/s.IntervalsSec[i])
		}
	}
	if !almostEqual(s.TimestampsSec[0], 0.5, 1e-12) || !almostEqual(s.TimestampsSec[1], 1.55, 1e-12) {
		t.Fatalf("unexpected midpoints: %v", s.TimestampsSec)
	}
}

func TestBuildSeriesErrors(t *testing.T) {
	if _, err := BuildSeries([]int{10}, 360); !errors.Is(err, ErrInsufficientPeaks) {
		t.Fatalf("expected ErrInsufficientPeaks, got %v", err)
	}
	if _, err := BuildSeries(nil, 360); !errors.Is(err, ErrInsufficientPeaks) {
		t.Fatalf("expected ErrInsufficientPeaks, got %v", err)
	}
	if _, err := BuildSeries([]int{1, 2}, 0); !errors.Is(err, ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}
	if _, err := BuildSeries([]int{10, 10, 20}, 360); !errors.Is(err, ErrNonIncreasingPeaks) {
		t.Fatalf("expected ErrNonIncreasingPeaks, got %v", err)
	}
}

func TestCorrectEctopicInterval(t *testing.T) {
	rr := []float64{800, 810, 790, 1600, 805}
	c := Corrector{Window: 3, Threshold: 0.10}
	out, err := c.Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if out.Count() != 1 || out.Indices[0] != 3 {
		t.Fatalf("expected only index 3 corrected, got %v", out.Indices)
	}
	if !almostEqual(out.IntervalsMs[3], 1065, 1e-9) {
		t.Fatalf("index 3 = %f, want 1065", out.IntervalsMs[3])
	}
	for _, i := range []int{0, 1, 2, 4} {
		if out.IntervalsMs[i] != rr[i] {
			t.Fatalf("index %d changed: %f -> %f", i, rr[i], out.IntervalsMs[i])
		}
	}
	if rr[3] != 1600 {
		t.Fatalf("input mutated")
	}
	if !almostEqual(out.RateBPM[3], 60000/1065.0, 1e-9) {
		t.Fatalf("rate not recomputed: %f", out.RateBPM[3])
	}
}

func TestCorrectBoundaryUntouched(t *testing.T) {
	rr := []float64{2000, 800, 800, 800, 800, 800, 400}
	out, err := Corrector{Window: 3, Threshold: 0.10}.Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if out.IntervalsMs[0] != 2000 || out.IntervalsMs[6] != 400 {
		t.Fatalf("boundary intervals corrected: %v", out.IntervalsMs)
	}
}

func TestCorrectWindowTooLarge(t *testing.T) {
	rr := []float64{800, 810, 790, 805, 800}
	if _, err := (Corrector{Window: 5, Threshold: 0.1}).Correct(rr); !errors.Is(err, ErrWindowTooLarge) {
		t.Fatalf("expected ErrWindowTooLarge, got %v", err)
	}
	if _, err := NewCorrector(0, 0).Correct(rr); !errors.Is(err, ErrWindowTooLarge) {
		t.Fatalf("expected ErrWindowTooLarge with default window, got %v", err)
	}
	if _, err := (Corrector{Window: 0, Threshold: 0.1}).Correct(rr); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := (Corrector{Window: 3, Threshold: 0}).Correct(rr); !errors.Is(err, ErrNonPositiveThreshold) {
		t.Fatalf("expected ErrNonPositiveThreshold, got %v", err)
	}
}

func TestCorrectIdempotentWithDefaults(t *testing.T) {
	rr := make([]float64, 30)
	for i := range rr {
		rr[i] = 800
	}
	rr[15] = 1600
	c := NewCorrector(0, 0)
	first, err := c.Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if first.Count() != 1 || !almostEqual(first.IntervalsMs[15], 880, 1e-9) {
		t.Fatalf("unexpected first pass: %v %v", first.Indices, first.IntervalsMs[15])
	}
	second, err := c.Correct(first.IntervalsMs)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if second.Count() != 0 {
		t.Fatalf("second pass flagged %v", second.Indices)
	}
	for i := range first.IntervalsMs {
		if first.IntervalsMs[i] != second.IntervalsMs[i] {
			t.Fatalf("index %d changed on second pass", i)
		}
	}
}

// A second pass over a small-window correction still sees the replaced
// interval as an outlier, because its own value pulls the first average up.
func TestCorrectSmallWindowNotIdempotent(t *testing.T) {
	c := Corrector{Window: 3, Threshold: 0.10}
	first, err := c.Correct([]float64{800, 810, 790, 1600, 805})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	second, err := c.Correct(first.IntervalsMs)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if second.Count() != 1 || second.Indices[0] != 3 {
		t.Fatalf("expected index 3 flagged again, got %v", second.Indices)
	}
	if !almostEqual(second.IntervalsMs[3], (790+1065+805)/3.0, 1e-9) {
		t.Fatalf("index 3 = %f, want %f", second.IntervalsMs[3], (790+1065+805)/3.0)
	}
}

func TestCorrectPrematureBeatPair(t *testing.T) {
	rr := make([]float64, 40)
	for i := range rr {
		rr[i] = 800
	}
	rr[20] = 600
	rr[21] = 1100
	out, err := NewCorrector(10, 0.10).Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if out.Count() != 2 || out.Indices[0] != 20 || out.Indices[1] != 21 {
		t.Fatalf("expected indices [20 21], got %v", out.Indices)
	}
	if !almostEqual(out.IntervalsMs[21], 810, 1e-9) {
		t.Fatalf("index 21 = %f, want 810", out.IntervalsMs[21])
	}
	// recomputed with index 21 already at 810
	if !almostEqual(out.IntervalsMs[20], 781, 1e-9) {
		t.Fatalf("index 20 = %f, want 781", out.IntervalsMs[20])
	}
	if !almostEqual(out.MovingAverage[20], 810, 1e-9) {
		t.Fatalf("moving average should describe the input, got %f", out.MovingAverage[20])
	}
}

func TestCorrectAdjacentShortIntervals(t *testing.T) {
	rr := []float64{800, 800, 800, 400, 400, 800, 800, 800}
	out, err := Corrector{Window: 3, Threshold: 0.10}.Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	seen := map[int]bool{}
	for _, i := range out.Indices {
		seen[i] = true
	}
	if !seen[3] || !seen[4] {
		t.Fatalf("expected both short intervals corrected, got %v", out.Indices)
	}
	if !almostEqual(out.IntervalsMs[3], 1600/3.0, 1e-9) {
		t.Fatalf("index 3 = %f", out.IntervalsMs[3])
	}
	for _, i := range []int{0, 1, 6, 7} {
		if out.IntervalsMs[i] != 800 {
			t.Fatalf("index %d changed to %f", i, out.IntervalsMs[i])
		}
	}
	for k := 1; k < len(out.Indices); k++ {
		if out.Indices[k] <= out.Indices[k-1] {
			t.Fatalf("indices not ascending: %v", out.Indices)
		}
	}
}

func TestCorrectTighterThresholdFlagsMore(t *testing.T) {
	rr := make([]float64, 60)
	for i := range rr {
		rr[i] = 850 + 60*math.Sin(float64(i)/3)
	}
	rr[12] = 1500
	rr[30] = 450
	rr[44] = 1200
	loose, err := NewCorrector(10, 0.20).Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	tight, err := NewCorrector(10, 0.05).Correct(rr)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if tight.Count() < loose.Count() {
		t.Fatalf("tight=%d loose=%d", tight.Count(), loose.Count())
	}
	if loose.Count() == 0 {
		t.Fatalf("expected outliers flagged at 20%%")
	}
}

func TestSummarize(t *testing.T) {
	rr := []float64{600, 1000}
	rate := []float64{100, 60}
	st, err := Summarize(rr, rate)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !almostEqual(st.MeanRRMs, 800, 1e-9) || !almostEqual(st.StdRRMs, 200, 1e-9) {
		t.Fatalf("unexpected rr stats: %+v", st)
	}
	// mean of rates, not 60000/meanRR (75)
	if !almostEqual(st.MeanHRBPM, 80, 1e-9) {
		t.Fatalf("mean hr = %f, want 80", st.MeanHRBPM)
	}
	if _, err := Summarize(nil, nil); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	if _, err := Summarize([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}
