package smkgp

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
)

//////
// Helper functions.
//////

// defaultHyper is the initial value of a positive hyperparameter nobody
// configured: softplus(0).
const defaultHyper = math.Ln2

// FromRows builds an n x d matrix out of row slices of any numeric type. It
// is the usual entry point for callers holding integer features, such as
// buffer sizes or worker counts.
//
// Parameters:
// - rows: n rows of equal, non-zero length
//
// Returns:
// - *mat.Dense: New matrix holding float64 copies of the values
// - error: ErrEmptyData for no rows or empty rows, ErrShapeMismatch for ragged rows
//
// Usage example:
//
//	x, err := FromRows([][]int{{1024, 4}, {2048, 8}})
func FromRows[T constraints.Integer | constraints.Float](rows [][]T) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyData
	}

	d := len(rows[0])
	data := make([]float64, 0, len(rows)*d)

	for i, row := range rows {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d columns, expected %d: %w", i, len(row), d, ErrShapeMismatch)
		}

		data = append(data, toFloat64s(row)...)
	}

	return mat.NewDense(len(rows), d, data), nil
}

// toFloat64s converts a numeric slice to float64, preserving order.
func toFloat64s[T constraints.Integer | constraints.Float](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}

	return out
}

// prod returns the number of elements described by a shape. The empty shape
// describes a single element.
func prod[T constraints.Integer](shape []T) T {
	p := T(1)
	for _, s := range shape {
		p *= s
	}

	return p
}

// cloneShape copies a shape so callers can't alias internal state.
func cloneShape(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	out := make([]int, len(shape))
	copy(out, shape)

	return out
}

// sinc is the normalised sinc function sin(pi x) / (pi x).
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	px := math.Pi * x

	return math.Sin(px) / px
}
