package accuracy

import (
	"errors"
	"math"

	"hrvguard/internal/model"
)

var (
	ErrEmptyReference       = errors.New("reference annotation sequence is empty")
	ErrNonPositiveTolerance = errors.New("tolerance must be > 0")
	ErrUnsorted             = errors.New("sequences must be sorted ascending")
)

// ToleranceSamples converts a tolerance in seconds to samples at rate fs.
// A non-positive tolerance stays non-positive so Score rejects it.
func ToleranceSamples(sec, fs float64) float64 {
	return sec * fs
}

// Score matches candidate peaks to reference beats one-to-one. Each
// reference, in ascending order, takes the closest unmatched candidate within
// tolerance; equal distances go to the earlier candidate.
func Score(reference, candidate []int, tolerance float64) (model.MatchResult, error) {
	if len(reference) == 0 {
		return model.MatchResult{}, ErrEmptyReference
	}
	if tolerance <= 0 {
		return model.MatchResult{}, ErrNonPositiveTolerance
	}
	if !sorted(reference) || !sorted(candidate) {
		return model.MatchResult{}, ErrUnsorted
	}

	matched := make([]bool, len(candidate))
	lo := 0
	tp := 0
	for _, r := range reference {
		for lo < len(candidate) && float64(r-candidate[lo]) > tolerance {
			lo++
		}
		best := -1
		bestDist := math.Inf(1)
		for j := lo; j < len(candidate); j++ {
			dist := float64(candidate[j] - r)
			if dist > tolerance {
				break
			}
			if matched[j] {
				continue
			}
			if d := math.Abs(dist); d < bestDist {
				best = j
				bestDist = d
			}
		}
		if best >= 0 {
			matched[best] = true
			tp++
		}
	}

	res := model.MatchResult{
		TP: tp,
		FN: len(reference) - tp,
		FP: len(candidate) - tp,
	}
	res.Sensitivity = percent(res.TP, res.TP+res.FN)
	res.PPV = percent(res.TP, res.TP+res.FP)
	return res, nil
}

func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func sorted(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}
