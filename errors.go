package flct

import (
	"errors"
	"fmt"
)

// InvalidArgumentError reports a caller parameter that failed
// validation. It is returned before any computation starts and no
// partial output is produced.
type InvalidArgumentError struct {
	Param  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Reason)
}

// FormatError reports malformed or inconsistent contents in a binary
// image container on read, or a shape mismatch between arrays on write.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ComputationError reports a numerical precondition failure at a grid
// location, such as a degenerate correlation window or a non-finite
// input sample. Ordinary signal conditions (threshold failures,
// out-of-domain latitudes) are mask outcomes, never errors.
type ComputationError struct {
	I, J   int
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed at (%d, %d): %s", e.I, e.J, e.Reason)
}

// ErrMissingDependency is returned when the FFT backend fails its
// one-time self-check. The check runs on first use of Track, before
// argument validation.
var ErrMissingDependency = errors.New("flct: fft backend unavailable")
