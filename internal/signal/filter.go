package signal

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptySignal  = errors.New("signal is empty")
	ErrInvalidBand  = errors.New("band edges must satisfy 0 < low < high < fs/2")
	ErrInvalidOrder = errors.New("filter order must be >= 1")
)

// biquad holds normalized coefficients (a0 == 1). First-order sections leave
// b2 and a2 at zero.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (q biquad) run(in []float64) []float64 {
	out := make([]float64, len(in))
	var z1, z2 float64
	for i, x := range in {
		y := q.b0*x + z1
		z1 = q.b1*x - q.a1*y + z2
		z2 = q.b2*x - q.a2*y
		out[i] = y
	}
	return out
}

// Bandpass is a Butterworth high-pass/low-pass cascade applied forward and
// backward, so the output has no phase shift.
type Bandpass struct {
	LowHz  float64
	HighHz float64
	Order  int
}

func NewBandpass(lowHz, highHz float64, order int) *Bandpass {
	return &Bandpass{LowHz: lowHz, HighHz: highHz, Order: order}
}

func (b *Bandpass) Apply(samples []float64, fs float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySignal
	}
	sections, err := b.design(fs)
	if err != nil {
		return nil, err
	}
	pad := 3 * (2*b.Order + 1)
	if pad > len(samples)-1 {
		pad = len(samples) - 1
	}
	x := reflectPad(samples, pad)
	x = cascade(sections, x)
	reverse(x)
	x = cascade(sections, x)
	reverse(x)
	return x[pad : pad+len(samples)], nil
}

func (b *Bandpass) design(fs float64) ([]biquad, error) {
	if b.Order < 1 {
		return nil, ErrInvalidOrder
	}
	if fs <= 0 || b.LowHz <= 0 || b.HighHz <= b.LowHz || b.HighHz >= fs/2 {
		return nil, fmt.Errorf("%w: low=%g high=%g fs=%g", ErrInvalidBand, b.LowHz, b.HighHz, fs)
	}
	sections := make([]biquad, 0, b.Order+1)
	sections = append(sections, butterworth(b.LowHz, fs, b.Order, true)...)
	sections = append(sections, butterworth(b.HighHz, fs, b.Order, false)...)
	return sections, nil
}

// butterworth returns the sections of an order-n high-pass or low-pass
// filter with cutoff fc.
func butterworth(fc, fs float64, n int, highpass bool) []biquad {
	out := make([]biquad, 0, n/2+1)
	for k := 0; k < n/2; k++ {
		q := 1 / (2 * math.Cos(math.Pi*float64(2*k+1)/float64(2*n)))
		out = append(out, rbj(fc, fs, q, highpass))
	}
	if n%2 == 1 {
		out = append(out, firstOrder(fc, fs, highpass))
	}
	return out
}

func rbj(fc, fs, q float64, highpass bool) biquad {
	w0 := 2 * math.Pi * fc / fs
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	var b0, b1, b2 float64
	if highpass {
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
	} else {
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
	}
	b2 = b0
	return biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func firstOrder(fc, fs float64, highpass bool) biquad {
	k := math.Tan(math.Pi * fc / fs)
	a1 := (k - 1) / (k + 1)
	if highpass {
		b0 := 1 / (1 + k)
		return biquad{b0: b0, b1: -b0, a1: a1}
	}
	b0 := k / (1 + k)
	return biquad{b0: b0, b1: b0, a1: a1}
}

func cascade(sections []biquad, x []float64) []float64 {
	for _, s := range sections {
		x = s.run(x)
	}
	return x
}

// reflectPad extends both ends with an odd reflection about the end samples.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		out[i] = 2*x[0] - x[pad-i]
		out[n+pad+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(out[pad:], x)
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
