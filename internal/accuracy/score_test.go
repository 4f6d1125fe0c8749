package accuracy

import (
	"errors"
	"math"
	"testing"
)

func TestScoreScenario(t *testing.T) {
	ref := []int{100, 300, 500, 900}
	cand := []int{102, 298, 700}
	res, err := Score(ref, cand, 20)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP != 2 || res.FN != 2 || res.FP != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if math.Abs(res.Sensitivity-50) > 1e-9 {
		t.Fatalf("sensitivity = %f", res.Sensitivity)
	}
	if math.Abs(res.PPV-66.6667) > 1e-3 {
		t.Fatalf("ppv = %f", res.PPV)
	}
}

func TestScoreIdentity(t *testing.T) {
	ref := []int{10, 370, 730, 1095, 1460}
	res, err := Score(ref, append([]int(nil), ref...), ToleranceSamples(0.1, 360))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP != len(ref) || res.FN != 0 || res.FP != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if res.Sensitivity != 100 || res.PPV != 100 {
		t.Fatalf("expected 100%%, got %+v", res)
	}
}

func TestScoreRejectsZeroToleranceInSeconds(t *testing.T) {
	ref := []int{10, 370, 730}
	if got := ToleranceSamples(0, 360); got != 0 {
		t.Fatalf("tolerance = %f, want 0", got)
	}
	if _, err := Score(ref, ref, ToleranceSamples(0, 360)); !errors.Is(err, ErrNonPositiveTolerance) {
		t.Fatalf("expected ErrNonPositiveTolerance, got %v", err)
	}
	if _, err := Score(ref, ref, ToleranceSamples(-0.1, 360)); !errors.Is(err, ErrNonPositiveTolerance) {
		t.Fatalf("expected ErrNonPositiveTolerance for negative tolerance, got %v", err)
	}
}

func TestScoreClosestCandidateWins(t *testing.T) {
	// 95 is earlier but 101 is closer to 100; 95 then matches 110.
	res, err := Score([]int{100, 110}, []int{95, 101}, 20)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP != 2 || res.FP != 0 || res.FN != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
}

func TestScoreTieGoesToEarlierCandidate(t *testing.T) {
	// 90 and 110 are both 10 away from 100; 90 must be taken so 110
	// stays free for 125.
	res, err := Score([]int{100, 125}, []int{90, 110}, 15)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP != 2 {
		t.Fatalf("expected both references matched, got %+v", res)
	}
}

func TestScoreNoDoubleCounting(t *testing.T) {
	res, err := Score([]int{100}, []int{98, 99, 103}, 10)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP != 1 || res.FP != 2 || res.FN != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
}

func TestScoreCountsAddUp(t *testing.T) {
	ref := []int{50, 400, 760, 1100, 1500, 1850, 2200}
	cand := []int{45, 300, 410, 790, 1490, 1495, 2300, 2600}
	res, err := Score(ref, cand, 36)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.TP+res.FN != len(ref) || res.TP+res.FP != len(cand) {
		t.Fatalf("counts do not add up: %+v", res)
	}
}

func TestScoreErrors(t *testing.T) {
	if _, err := Score(nil, []int{1}, 10); !errors.Is(err, ErrEmptyReference) {
		t.Fatalf("expected ErrEmptyReference, got %v", err)
	}
	if _, err := Score([]int{1}, []int{1}, 0); !errors.Is(err, ErrNonPositiveTolerance) {
		t.Fatalf("expected ErrNonPositiveTolerance, got %v", err)
	}
	if _, err := Score([]int{5, 1}, []int{1}, 10); !errors.Is(err, ErrUnsorted) {
		t.Fatalf("expected ErrUnsorted, got %v", err)
	}
}

func TestScoreEmptyCandidate(t *testing.T) {
	res, err := Score([]int{1, 2, 3}, nil, 10)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.FN != 3 || res.Sensitivity != 0 || res.PPV != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
