package smkgp

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// unitInputs returns n x d features drawn uniformly from the unit cube.
func unitInputs(rng *rand.Rand, n, d int) *mat.Dense {
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.Float64()
	}

	return mat.NewDense(n, d, data)
}

// sinTargets returns y_i = sum_j sin(x_ij) for every output column.
func sinTargets(x *mat.Dense, m int) *mat.Dense {
	n, d := x.Dims()
	y := mat.NewDense(n, m, nil)

	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < d; j++ {
			s += math.Sin(x.At(i, j))
		}

		for k := 0; k < m; k++ {
			y.Set(i, k, s*float64(k+1))
		}
	}

	return y
}

// sinTrainingSet is the canonical 20 x 2 -> 20 x m fixture.
func sinTrainingSet(seed int64, m int) TrainingSet {
	x := unitInputs(rand.New(rand.NewSource(seed)), 20, 2)

	return TrainingSet{X: NewTensor(x), Y: NewTensor(sinTargets(x, m))}
}

// filled returns an r x c matrix with every element set to v.
func filled(r, c int, v float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, v)
		}
	}

	return m
}

// appendFeature is an input transform that appends a constant 0.5 column,
// so the transformed dimensionality differs from the raw one.
type appendFeature struct {
	state *Parameter

	sawRequiresGrad []bool
	err             error
}

func newAppendFeature() *appendFeature {
	return &appendFeature{state: newParameter("state", nil, []int{1}, 0)}
}

func (a *appendFeature) Parameters() []*Parameter { return []*Parameter{a.state} }

func (a *appendFeature) Transform(x *Tensor) (*Tensor, error) {
	a.sawRequiresGrad = append(a.sawRequiresGrad, a.state.RequiresGrad)
	if a.err != nil {
		return nil, a.err
	}

	return x.Map(func(_ int, m *mat.Dense) (*mat.Dense, error) {
		r, c := m.Dims()
		out := mat.NewDense(r, c+1, nil)

		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, j, m.At(i, j))
			}

			out.Set(i, c, 0.5)
		}

		return out, nil
	})
}

var errTransformFailed = errors.New("transform failed")
