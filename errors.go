package hubness

import "errors"

// Sentinel errors. Use errors.Is to check error kinds; returned errors carry
// additional context.
var (
	// ErrInvalidConfig indicates a bad configuration value: an unknown metric,
	// algorithm or hubness method, an out-of-range contamination, and so on.
	ErrInvalidConfig = errors.New("hubness: invalid configuration")

	// ErrInvalidInput indicates malformed input data (ragged rows, NaN or Inf).
	ErrInvalidInput = errors.New("hubness: invalid input")

	// ErrEmptyInput indicates an input matrix without rows or columns.
	ErrEmptyInput = errors.New("hubness: empty input")

	// ErrNotFitted indicates a query method was called before Fit.
	ErrNotFitted = errors.New("hubness: not fitted")

	// ErrDimensionMismatch indicates the query feature width differs from the
	// width seen at fit time.
	ErrDimensionMismatch = errors.New("hubness: dimension mismatch")

	// ErrUnsupportedOperation indicates a method that the current novelty
	// mode disables.
	ErrUnsupportedOperation = errors.New("hubness: unsupported operation")

	// ErrPlatformUnavailable indicates the chosen approximate backend cannot
	// run on this platform. Backends log it as a warning and return no results.
	ErrPlatformUnavailable = errors.New("hubness: approximate nearest neighbor method not available on this platform")
)
