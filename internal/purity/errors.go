package purity

import (
	"errors"
	"fmt"
)

// Signal names a stage of the pipeline. It identifies which computation
// produced an InvalidSignalError.
type Signal string

const (
	SignalNoise           Signal = "noise"
	SignalCorrelation     Signal = "correlation"
	SignalAgilent         Signal = "agilent_ratio"
	SignalUnimodality     Signal = "unimodality"
	SignalPCA             Signal = "pca_ratio"
	SignalMinCorrelation  Signal = "min_correlation"
	SignalMeanCorrelation Signal = "mean_correlation"
)

// BoundsError reports peak boundaries that do not satisfy
// 0 <= left < right <= number of time columns.
type BoundsError struct {
	Left, Right int
	Times       int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("peak bounds [%d, %d) invalid for %d time columns", e.Left, e.Right, e.Times)
}

// DegeneratePeakError reports a peak region where no column survives the
// low-signal trim.
type DegeneratePeakError struct {
	Left, Right int
	MaxSignal   float64
}

func (e *DegeneratePeakError) Error() string {
	return fmt.Sprintf("degenerate peak [%d, %d): no column above trim threshold (max total signal %g)",
		e.Left, e.Right, e.MaxSignal)
}

// InsufficientDataError reports too few retained columns for the smoothing
// window used by the unimodality test.
type InsufficientDataError struct {
	Retained int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d retained columns, unimodality test needs %d", e.Retained, e.Required)
}

// InvalidSignalError reports a signal that is NaN, infinite or otherwise
// undefined. Column is the offending time index in the full matrix, or -1
// when the failure is not tied to one column.
type InvalidSignalError struct {
	Signal Signal
	Column int
	Reason string
}

func (e *InvalidSignalError) Error() string {
	if e.Column >= 0 {
		return fmt.Sprintf("invalid %s signal at column %d: %s", e.Signal, e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid %s signal: %s", e.Signal, e.Reason)
}

// IsIndeterminate reports whether err means the peak could not be
// classified, as opposed to an infrastructure failure.
func IsIndeterminate(err error) bool {
	return ErrorKind(err) != ""
}

// ErrorKind returns a short stable name for the analysis error class of
// err, or "" when err is not an analysis error.
func ErrorKind(err error) string {
	var (
		be *BoundsError
		de *DegeneratePeakError
		ie *InsufficientDataError
		se *InvalidSignalError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be):
		return "bounds"
	case errors.As(err, &de):
		return "degenerate_peak"
	case errors.As(err, &ie):
		return "insufficient_data"
	case errors.As(err, &se):
		return "invalid_signal"
	}
	return ""
}
