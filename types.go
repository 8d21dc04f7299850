package smkgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a batch of equally shaped n x k matrices. It stands in for a
// `batch_shape x n x k` array: the matrices are stored in row-major order of
// the batch shape and addressed by a flat batch index.
//
// Fields:
// - batchShape: Leading batch dimensions, empty for an unbatched tensor
// - mats: prod(batchShape) matrices, all with the same dimensions
//
// Usage example:
//
//	// Unbatched 20 x 2 inputs.
//	x := NewTensor(mat.NewDense(20, 2, data))
//
//	// Two independent 20 x 2 input sets.
//	xb, err := NewBatchTensor([]int{2}, m0, m1)
type Tensor struct {
	batchShape []int
	mats       []*mat.Dense
}

// NewTensor wraps a single matrix as an unbatched tensor. The matrix is not
// copied.
func NewTensor(m *mat.Dense) *Tensor {
	return &Tensor{batchShape: []int{}, mats: []*mat.Dense{m}}
}

// NewBatchTensor builds a tensor with the given batch shape out of
// prod(batchShape) matrices of equal dimensions. The matrices are not copied.
//
// Returns:
// - *Tensor: The batched tensor
// - error: ErrEmptyData for nil or empty matrices, ErrShapeMismatch when the
// count or dimensions of the matrices don't match the batch shape
func NewBatchTensor(batchShape []int, mats ...*mat.Dense) (*Tensor, error) {
	for _, s := range batchShape {
		if s <= 0 {
			return nil, fmt.Errorf("batch shape %v: %w", batchShape, ErrShapeMismatch)
		}
	}

	if len(mats) != prod(batchShape) {
		return nil, fmt.Errorf("batch shape %v needs %d matrices, got %d: %w",
			batchShape, prod(batchShape), len(mats), ErrShapeMismatch)
	}

	var r, c int

	for i, m := range mats {
		if m == nil || m.IsEmpty() {
			return nil, fmt.Errorf("batch index %d: %w", i, ErrEmptyData)
		}

		mr, mc := m.Dims()
		if i == 0 {
			r, c = mr, mc

			continue
		}

		if mr != r || mc != c {
			return nil, fmt.Errorf("batch index %d is %dx%d, expected %dx%d: %w", i, mr, mc, r, c, ErrShapeMismatch)
		}
	}

	return &Tensor{batchShape: cloneShape(batchShape), mats: mats}, nil
}

// BatchShape returns a copy of the leading batch dimensions.
func (t *Tensor) BatchShape() []int {
	return cloneShape(t.batchShape)
}

// BatchSize returns the number of matrices in the batch.
func (t *Tensor) BatchSize() int {
	return len(t.mats)
}

// Rows returns n, the number of rows of every matrix in the batch.
func (t *Tensor) Rows() int {
	r, _ := t.dims()

	return r
}

// Cols returns k, the number of columns of every matrix in the batch.
func (t *Tensor) Cols() int {
	_, c := t.dims()

	return c
}

func (t *Tensor) dims() (int, int) {
	if t == nil || len(t.mats) == 0 || t.mats[0] == nil || t.mats[0].IsEmpty() {
		return 0, 0
	}

	return t.mats[0].Dims()
}

// Matrix returns the matrix at flat batch index b.
func (t *Tensor) Matrix(b int) *mat.Dense {
	return t.mats[b]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	mats := make([]*mat.Dense, len(t.mats))
	for i, m := range t.mats {
		mats[i] = mat.DenseCopyOf(m)
	}

	return &Tensor{batchShape: cloneShape(t.batchShape), mats: mats}
}

// Map applies fn to every matrix of the batch and collects the results in a
// tensor with the same batch shape.
func (t *Tensor) Map(fn func(b int, m *mat.Dense) (*mat.Dense, error)) (*Tensor, error) {
	mats := make([]*mat.Dense, len(t.mats))

	for b, m := range t.mats {
		out, err := fn(b, m)
		if err != nil {
			return nil, err
		}

		mats[b] = out
	}

	return NewBatchTensor(t.batchShape, mats...)
}

// Each calls fn with every element of the tensor until fn returns false.
func (t *Tensor) Each(fn func(b, i, j int, v float64) bool) {
	for b, m := range t.mats {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if !fn(b, i, j, m.At(i, j)) {
					return
				}
			}
		}
	}
}

// HasNaN reports whether any element is NaN.
func (t *Tensor) HasNaN() bool {
	found := false

	t.Each(func(_, _, _ int, v float64) bool {
		found = math.IsNaN(v)

		return !found
	})

	return found
}

// TrainingSet bundles the raw observations a model is built from.
type TrainingSet struct {
	// X holds the `batch x n x d` training features.
	X *Tensor

	// Y holds the `batch x n x m` training observations.
	Y *Tensor

	// Yvar optionally holds the `batch x n x m` observed measurement noise.
	// Every element must be non-negative. Nil means the noise is inferred.
	Yvar *Tensor
}

// MultivariateNormal is a Gaussian over n points.
type MultivariateNormal struct {
	// Mean is the length-n mean vector.
	Mean *mat.VecDense

	// Covariance is the n x n covariance matrix.
	Covariance *mat.SymDense
}

// Len returns the number of points the distribution is over.
func (d *MultivariateNormal) Len() int {
	return d.Mean.Len()
}

// Variance returns the diagonal of the covariance matrix.
func (d *MultivariateNormal) Variance() []float64 {
	n := d.Covariance.SymmetricDim()
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		out[i] = d.Covariance.At(i, i)
	}

	return out
}

// DiagnosticKind classifies a non-fatal construction diagnostic.
type DiagnosticKind int

const (
	// DiagnosticInputScaling flags input features outside the unit cube.
	DiagnosticInputScaling DiagnosticKind = iota + 1

	// DiagnosticStandardization flags outcomes that are not standardized.
	DiagnosticStandardization

	// DiagnosticDeprecation flags use of a deprecated argument.
	DiagnosticDeprecation
)

// String implements fmt.Stringer.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticInputScaling:
		return "input_scaling"
	case DiagnosticStandardization:
		return "standardization"
	case DiagnosticDeprecation:
		return "deprecation"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal finding surfaced while building a model. It never
// changes control flow.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
}
