package smkgp

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minStd is the smallest standard deviation or feature range a transform
// divides by; anything smaller is replaced by one.
const minStd = 1e-8

//////
// Outcome transforms.
//////

// OutcomeTransform preprocesses training targets and maps predictions back to
// the original scale.
type OutcomeTransform interface {
	// Transform maps targets and optional noise (nil when inferred) into the
	// space the model trains in.
	Transform(y, yvar *Tensor) (*Tensor, *Tensor, error)

	// Untransform maps means and variances back to the original scale.
	Untransform(mean, variance *Tensor) (*Tensor, *Tensor, error)
}

// Standardize shifts and scales every output of every batch to zero mean and
// unit variance.
//
// Important notes:
// - The statistics are taken over the n observations of each batch and output
// - The standard deviation is the unbiased one; a single observation, or a
// deviation below 1e-8, is treated as 1
// - Noise variances are divided by the squared standard deviation
type Standardize struct {
	m          int
	batchShape []int

	means []float64
	stds  []float64
}

// NewStandardize creates a Standardize transform for m outputs and the given
// batch shape.
func NewStandardize(m int, batchShape []int) *Standardize {
	if m <= 0 {
		panic(fmt.Sprintf("smkgp: NewStandardize(%d)", m))
	}

	return &Standardize{m: m, batchShape: cloneShape(batchShape)}
}

// Means returns the fitted per-batch, per-output means, batch-major.
func (s *Standardize) Means() []float64 { return append([]float64(nil), s.means...) }

// Stds returns the fitted per-batch, per-output standard deviations.
func (s *Standardize) Stds() []float64 { return append([]float64(nil), s.stds...) }

func (s *Standardize) check(t *Tensor) error {
	if !slices.Equal(t.BatchShape(), s.batchShape) || t.Cols() != s.m {
		return fmt.Errorf("standardize for batch %v with %d outputs got batch %v with %d outputs: %w",
			s.batchShape, s.m, t.BatchShape(), t.Cols(), ErrShapeMismatch)
	}

	return nil
}

// Transform implements OutcomeTransform. It refits the statistics on y.
func (s *Standardize) Transform(y, yvar *Tensor) (*Tensor, *Tensor, error) {
	if err := s.check(y); err != nil {
		return nil, nil, err
	}

	n := y.Rows()
	means := make([]float64, y.BatchSize()*s.m)
	stds := make([]float64, y.BatchSize()*s.m)

	for b := 0; b < y.BatchSize(); b++ {
		for j := 0; j < s.m; j++ {
			mean, std := stat.MeanStdDev(mat.Col(nil, j, y.Matrix(b)), nil)
			if n < 2 || std < minStd || math.IsNaN(std) {
				std = 1
			}

			means[b*s.m+j] = mean
			stds[b*s.m+j] = std
		}
	}

	s.means, s.stds = means, stds

	ty, err := y.Map(func(b int, m *mat.Dense) (*mat.Dense, error) {
		return s.apply(b, m, func(v, mean, std float64) float64 { return (v - mean) / std }), nil
	})
	if err != nil {
		return nil, nil, err
	}

	if yvar == nil {
		return ty, nil, nil
	}

	if err := s.check(yvar); err != nil {
		return nil, nil, err
	}

	tv, err := yvar.Map(func(b int, m *mat.Dense) (*mat.Dense, error) {
		return s.apply(b, m, func(v, _, std float64) float64 { return v / (std * std) }), nil
	})
	if err != nil {
		return nil, nil, err
	}

	return ty, tv, nil
}

// Untransform implements OutcomeTransform.
func (s *Standardize) Untransform(mean, variance *Tensor) (*Tensor, *Tensor, error) {
	if s.means == nil {
		return nil, nil, ErrNotFitted
	}

	if err := s.check(mean); err != nil {
		return nil, nil, err
	}

	tm, err := mean.Map(func(b int, m *mat.Dense) (*mat.Dense, error) {
		return s.apply(b, m, func(v, mu, std float64) float64 { return v*std + mu }), nil
	})
	if err != nil || variance == nil {
		return tm, nil, err
	}

	if err := s.check(variance); err != nil {
		return nil, nil, err
	}

	tv, err := variance.Map(func(b int, m *mat.Dense) (*mat.Dense, error) {
		return s.apply(b, m, func(v, _, std float64) float64 { return v * std * std }), nil
	})
	if err != nil {
		return nil, nil, err
	}

	return tm, tv, nil
}

func (s *Standardize) apply(b int, m *mat.Dense, fn func(v, mean, std float64) float64) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, j int, v float64) float64 {
		return fn(v, s.means[b*s.m+j], s.stds[b*s.m+j])
	}, m)

	return out
}

// OutcomeTransformChoice is the three-way outcome transform setting: use the
// default Standardize, use none, or use a given transform. The zero value
// selects the default.
type OutcomeTransformChoice struct {
	mode      outcomeMode
	transform OutcomeTransform
}

type outcomeMode int

const (
	outcomeDefault outcomeMode = iota
	outcomeNone
	outcomeCustom
)

// DefaultOutcomeTransform standardizes the targets per output and batch.
func DefaultOutcomeTransform() OutcomeTransformChoice {
	return OutcomeTransformChoice{mode: outcomeDefault}
}

// NoOutcomeTransform trains on the raw targets.
func NoOutcomeTransform() OutcomeTransformChoice {
	return OutcomeTransformChoice{mode: outcomeNone}
}

// CustomOutcomeTransform uses t. Panics on nil; use NoOutcomeTransform to
// disable transforming.
func CustomOutcomeTransform(t OutcomeTransform) OutcomeTransformChoice {
	if t == nil {
		panic("smkgp: CustomOutcomeTransform(nil)")
	}

	return OutcomeTransformChoice{mode: outcomeCustom, transform: t}
}

// resolve returns the transform to apply, nil for none.
func (c OutcomeTransformChoice) resolve(m int, batchShape []int) OutcomeTransform {
	switch c.mode {
	case outcomeNone:
		return nil
	case outcomeCustom:
		return c.transform
	default:
		return NewStandardize(m, batchShape)
	}
}

//////
// Input transforms.
//////

// InputTransform preprocesses training and test inputs.
type InputTransform interface {
	// Transform maps inputs into the space the kernel operates in.
	Transform(x *Tensor) (*Tensor, error)

	// Parameters returns the transform's learnable state.
	Parameters() []*Parameter
}

// Normalize min-max scales every feature to the unit interval. Bounds are
// either fixed at construction or learned from the first inputs it sees.
type Normalize struct {
	d      int
	learn  bool
	bounds *Parameter // 2 x d: lower row, upper row
	fitted bool
}

// NewNormalize creates a Normalize transform for d features that learns its
// bounds from data.
func NewNormalize(d int) *Normalize {
	if d <= 0 {
		panic(fmt.Sprintf("smkgp: NewNormalize(%d)", d))
	}

	return &Normalize{d: d, learn: true, bounds: newParameter("bounds", nil, []int{2, d}, 0)}
}

// NewNormalizeWithBounds creates a Normalize transform with fixed bounds.
func NewNormalizeWithBounds(lower, upper []float64) (*Normalize, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return nil, fmt.Errorf("bounds of length %d and %d: %w", len(lower), len(upper), ErrShapeMismatch)
	}

	n := &Normalize{d: len(lower), bounds: newParameter("bounds", nil, []int{2, len(lower)}, 0), fitted: true}
	n.bounds.RequiresGrad = false

	if err := n.bounds.Set(0, append(append([]float64(nil), lower...), upper...)); err != nil {
		return nil, err
	}

	return n, nil
}

// Bounds returns copies of the lower and upper bounds.
func (n *Normalize) Bounds() (lower, upper []float64) {
	v := n.bounds.Data()

	return v[:n.d], v[n.d:]
}

// Parameters implements InputTransform.
func (n *Normalize) Parameters() []*Parameter { return []*Parameter{n.bounds} }

// Transform implements InputTransform.
func (n *Normalize) Transform(x *Tensor) (*Tensor, error) {
	if x.Cols() != n.d {
		return nil, fmt.Errorf("normalize for %d features got %d: %w", n.d, x.Cols(), ErrShapeMismatch)
	}

	if n.learn && !n.fitted {
		n.fit(x)
	}

	lower, upper := n.Bounds()

	return x.Map(func(_ int, m *mat.Dense) (*mat.Dense, error) {
		out := mat.DenseCopyOf(m)
		out.Apply(func(_, j int, v float64) float64 {
			r := upper[j] - lower[j]
			if r < minStd {
				r = 1
			}

			return (v - lower[j]) / r
		}, m)

		return out, nil
	})
}

func (n *Normalize) fit(x *Tensor) {
	lower := make([]float64, n.d)
	upper := make([]float64, n.d)

	for j := 0; j < n.d; j++ {
		var col []float64
		for b := 0; b < x.BatchSize(); b++ {
			col = append(col, mat.Col(nil, j, x.Matrix(b))...)
		}

		lower[j], upper[j] = floats.Min(col), floats.Max(col)
	}

	copy(n.bounds.Values(0), append(lower, upper...))
	n.fitted = true
}
