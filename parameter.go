package smkgp

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior scores a hyperparameter value.
type Prior interface {
	LogProb(x float64) float64
}

// LogNormalPrior is a log-normal prior on a positive hyperparameter.
type LogNormalPrior struct {
	distuv.LogNormal
}

// NewLogNormalPrior returns a log-normal prior with the given location and
// scale of the underlying normal.
func NewLogNormalPrior(loc, scale float64) LogNormalPrior {
	return LogNormalPrior{LogNormal: distuv.LogNormal{Mu: loc, Sigma: scale}}
}

// Parameter is a named hyperparameter. It holds one block of prod(Shape)
// values per flat batch index; a parameter with a single batch element
// broadcasts across every batch index.
//
// Values are stored in their constrained (natural) space. External
// optimizers mutate them through Set, the structure never changes.
type Parameter struct {
	// Name identifies the parameter within its owner, e.g. "lengthscale".
	Name string

	// Prior is optional.
	Prior Prior

	// RequiresGrad marks the parameter as tracked by an optimizer.
	RequiresGrad bool

	shape      []int
	batchShape []int
	data       []float64
}

func newParameter(name string, batchShape, shape []int, init float64) *Parameter {
	p := &Parameter{
		Name:         name,
		RequiresGrad: true,
		shape:        cloneShape(shape),
		batchShape:   cloneShape(batchShape),
	}

	p.data = make([]float64, prod(batchShape)*prod(shape))
	p.Fill(init)

	return p
}

// Shape returns the per-batch event shape.
func (p *Parameter) Shape() []int {
	return cloneShape(p.shape)
}

// BatchShape returns the batch shape the parameter was allocated for.
func (p *Parameter) BatchShape() []int {
	return cloneShape(p.batchShape)
}

// Size returns the number of values per batch index.
func (p *Parameter) Size() int {
	return prod(p.shape)
}

// Values returns the value block of batch index b. The slice aliases the
// parameter's storage.
func (p *Parameter) Values(b int) []float64 {
	n := p.Size()
	if len(p.data) == n {
		return p.data
	}

	return p.data[b*n : (b+1)*n]
}

// Value returns the first value of batch index b, for scalar parameters.
func (p *Parameter) Value(b int) float64 {
	return p.Values(b)[0]
}

// Set replaces the value block of batch index b.
func (p *Parameter) Set(b int, v []float64) error {
	if len(v) != p.Size() {
		return fmt.Errorf("parameter %s: got %d values, expected %d: %w", p.Name, len(v), p.Size(), ErrShapeMismatch)
	}

	if b < 0 || b >= prod(p.batchShape) {
		return fmt.Errorf("parameter %s: batch index %d out of range: %w", p.Name, b, ErrShapeMismatch)
	}

	copy(p.Values(b), v)

	return nil
}

// Fill sets every value of every batch index to v.
func (p *Parameter) Fill(v float64) {
	for i := range p.data {
		p.data[i] = v
	}
}

// Data returns a copy of all values, batch-major.
func (p *Parameter) Data() []float64 {
	out := make([]float64, len(p.data))
	copy(out, p.data)

	return out
}

// withoutGrad runs fn with gradient tracking disabled on ps. The previous
// flags are restored however fn returns, panics included.
func withoutGrad(ps []*Parameter, fn func() error) error {
	saved := make([]bool, len(ps))
	for i, p := range ps {
		saved[i] = p.RequiresGrad
		p.RequiresGrad = false
	}

	defer func() {
		for i, p := range ps {
			p.RequiresGrad = saved[i]
		}
	}()

	return fn()
}
