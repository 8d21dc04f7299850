package smkgp

import "gonum.org/v1/gonum/mat"

// Mean is a GP prior mean function.
type Mean interface {
	// Eval returns the mean at every row of x for batch index b.
	Eval(b int, x *mat.Dense) *mat.VecDense

	// Parameters returns the mean's hyperparameters.
	Parameters() []*Parameter
}

// ConstantMean is a learned constant, one per batch index, starting at zero.
type ConstantMean struct {
	constant *Parameter
}

// NewConstantMean creates a constant mean for the given batch shape.
func NewConstantMean(batchShape []int) *ConstantMean {
	return &ConstantMean{constant: newParameter("constant", batchShape, []int{1}, 0)}
}

// Eval implements Mean.
func (m *ConstantMean) Eval(b int, x *mat.Dense) *mat.VecDense {
	n, _ := x.Dims()
	c := m.constant.Value(b)

	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetVec(i, c)
	}

	return out
}

// Parameters implements Mean.
func (m *ConstantMean) Parameters() []*Parameter { return []*Parameter{m.constant} }

// Constant returns the constant parameter.
func (m *ConstantMean) Constant() *Parameter { return m.constant }
