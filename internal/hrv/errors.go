package hrv

import "errors"

var (
	ErrInsufficientPeaks    = errors.New("at least two peaks are required")
	ErrNonPositiveRate      = errors.New("sampling rate must be > 0")
	ErrNonIncreasingPeaks   = errors.New("peaks must be strictly increasing")
	ErrWindowTooLarge       = errors.New("window size must be smaller than the rr series")
	ErrInvalidWindow        = errors.New("window size must be >= 1")
	ErrNonPositiveThreshold = errors.New("relative threshold must be > 0")
	ErrEmptySeries          = errors.New("series is empty")
	ErrLengthMismatch       = errors.New("interval and rate series differ in length")
)
