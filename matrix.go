package hubness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// toDense copies row-oriented input into a gonum dense matrix. All rows must
// have the same, non-zero width and only finite values.
func toDense(X [][]float64) (*mat.Dense, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("hubness: input has no samples: %w", ErrEmptyInput)
	}
	dims := len(X[0])
	if dims == 0 {
		return nil, fmt.Errorf("hubness: input has no features: %w", ErrEmptyInput)
	}

	flat := make([]float64, n*dims)
	for i, row := range X {
		if len(row) != dims {
			return nil, fmt.Errorf("hubness: row %d has %d features, want %d: %w", i, len(row), dims, ErrInvalidInput)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("hubness: row %d column %d is not finite (%v): %w", i, j, v, ErrInvalidInput)
			}
		}
		copy(flat[i*dims:], row)
	}
	return mat.NewDense(n, dims, flat), nil
}

// flatData returns the row-major backing slice of a dense matrix created by
// toDense (stride equals column count).
func flatData(d *mat.Dense) []float64 {
	raw := d.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		out = append(out, d.RawRowView(i)...)
	}
	return out
}

// checkPrecomputed validates a fit-time distance matrix: square, with
// non-negative entries.
func checkPrecomputed(d *mat.Dense) error {
	n, c := d.Dims()
	if n != c {
		return fmt.Errorf("hubness: precomputed matrix must be square, got %dx%d: %w", n, c, ErrInvalidInput)
	}
	return checkNonNegative(d)
}

func checkNonNegative(d *mat.Dense) error {
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		for j, v := range d.RawRowView(i) {
			if v < 0 {
				return fmt.Errorf("hubness: precomputed distance [%d,%d] is negative (%v): %w", i, j, v, ErrInvalidInput)
			}
		}
	}
	return nil
}
