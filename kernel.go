package smkgp

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// Kernel is a covariance function. It measures how strongly the function
// values at two points co-vary.
//
// Implementation notes:
// - Eval must be symmetric in x1 and x2
// - b is a flat index into the kernel's batch shape; parameters allocated
// for a single batch element broadcast
// - Parameters returns the same slice of pointers on every call, in a stable
// order, so optimizers can address them
type Kernel interface {
	// Name identifies the kernel family, e.g. "rbf".
	Name() string

	// Eval computes k(x1, x2) under the hyperparameters of batch index b.
	Eval(b int, x1, x2 []float64) float64

	// Parameters returns the kernel's hyperparameters.
	Parameters() []*Parameter
}

// Lengthscaled is implemented by kernels whose structure is a single
// lengthscale over a distance.
type Lengthscaled interface {
	Kernel

	Lengthscale() *Parameter
}

// KernelOption customizes a kernel constructor.
type KernelOption func(*kernelConfig)

type kernelConfig struct {
	batchShape  []int
	ardDims     int
	lengthscale float64
	nu          float64
	numDeltas   int
	rng         *rand.Rand
}

func newKernelConfig(opts []KernelOption) kernelConfig {
	c := kernelConfig{
		batchShape:  []int{},
		ardDims:     1,
		lengthscale: defaultHyper,
		nu:          2.5,
		numDeltas:   128,
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(0))
	}

	return c
}

// WithKernelBatchShape allocates one hyperparameter set per batch index.
func WithKernelBatchShape(shape []int) KernelOption {
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("smkgp: WithKernelBatchShape(%v)", shape))
		}
	}

	return func(c *kernelConfig) {
		c.batchShape = cloneShape(shape)
	}
}

// WithARD allocates one lengthscale per input dimension.
func WithARD(dims int) KernelOption {
	if dims <= 0 {
		panic(fmt.Sprintf("smkgp: WithARD(%d)", dims))
	}

	return func(c *kernelConfig) {
		c.ardDims = dims
	}
}

// WithLengthscale sets the initial lengthscale. Defaults to ln 2.
func WithLengthscale(l float64) KernelOption {
	if l <= 0 {
		panic(fmt.Sprintf("smkgp: WithLengthscale(%v)", l))
	}

	return func(c *kernelConfig) {
		c.lengthscale = l
	}
}

// WithNu sets the Matérn smoothness. Only 0.5, 1.5 and 2.5 are supported.
func WithNu(nu float64) KernelOption {
	if nu != 0.5 && nu != 1.5 && nu != 2.5 {
		panic(fmt.Sprintf("smkgp: WithNu(%v)", nu))
	}

	return func(c *kernelConfig) {
		c.nu = nu
	}
}

// WithNumDeltas sets the number of spectral deltas. Defaults to 128.
func WithNumDeltas(n int) KernelOption {
	if n <= 0 {
		panic(fmt.Sprintf("smkgp: WithNumDeltas(%d)", n))
	}

	return func(c *kernelConfig) {
		c.numDeltas = n
	}
}

// WithKernelRand sets the random source used to initialise randomised
// hyperparameters.
func WithKernelRand(rng *rand.Rand) KernelOption {
	if rng == nil {
		panic("smkgp: WithKernelRand(nil)")
	}

	return func(c *kernelConfig) {
		c.rng = rng
	}
}

//////
// Matrix helpers.
//////

// CovarianceMatrix evaluates k on every pair of rows of x, for batch index b.
func CovarianceMatrix(k Kernel, b int, x *mat.Dense) *mat.SymDense {
	n, _ := x.Dims()
	cov := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		for j := i; j < n; j++ {
			cov.SetSym(i, j, k.Eval(b, xi, x.RawRowView(j)))
		}
	}

	return cov
}

// CrossCovariance evaluates k between every row of x1 and every row of x2.
func CrossCovariance(k Kernel, b int, x1, x2 *mat.Dense) *mat.Dense {
	n1, _ := x1.Dims()
	n2, _ := x2.Dims()
	cov := mat.NewDense(n1, n2, nil)

	for i := 0; i < n1; i++ {
		xi := x1.RawRowView(i)
		for j := 0; j < n2; j++ {
			cov.Set(i, j, k.Eval(b, xi, x2.RawRowView(j)))
		}
	}

	return cov
}

// scaledSqDist returns sum(((x1 - x2) / l)^2). A single lengthscale is shared
// by every dimension.
func scaledSqDist(ls, x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		l := ls[0]
		if len(ls) > 1 {
			l = ls[i]
		}

		d := (x1[i] - x2[i]) / l
		sum += d * d
	}

	return sum
}

//////
// Stationary kernels.
//////

// RBFKernel is the radial basis function (squared exponential) kernel.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-0.5 * sum(((x1 - x2) / l)^2))
type RBFKernel struct {
	lengthscale *Parameter
}

// NewRBFKernel creates an RBF kernel.
//
// Usage example:
//
//	k := NewRBFKernel(WithLengthscale(20))
func NewRBFKernel(opts ...KernelOption) *RBFKernel {
	c := newKernelConfig(opts)

	return &RBFKernel{
		lengthscale: newParameter("lengthscale", c.batchShape, []int{1, c.ardDims}, c.lengthscale),
	}
}

// Name implements Kernel.
func (k *RBFKernel) Name() string { return "rbf" }

// Eval implements Kernel.
func (k *RBFKernel) Eval(b int, x1, x2 []float64) float64 {
	return math.Exp(-0.5 * scaledSqDist(k.lengthscale.Values(b), x1, x2))
}

// Parameters implements Kernel.
func (k *RBFKernel) Parameters() []*Parameter { return []*Parameter{k.lengthscale} }

// Lengthscale implements Lengthscaled.
func (k *RBFKernel) Lengthscale() *Parameter { return k.lengthscale }

// MaternKernel is the Matérn kernel for half-integer smoothness.
type MaternKernel struct {
	nu          float64
	lengthscale *Parameter
}

// NewMaternKernel creates a Matérn kernel, smoothness 2.5 unless WithNu says
// otherwise.
func NewMaternKernel(opts ...KernelOption) *MaternKernel {
	c := newKernelConfig(opts)

	return &MaternKernel{
		nu:          c.nu,
		lengthscale: newParameter("lengthscale", c.batchShape, []int{1, c.ardDims}, c.lengthscale),
	}
}

// Name implements Kernel.
func (k *MaternKernel) Name() string { return "matern" }

// Nu returns the smoothness.
func (k *MaternKernel) Nu() float64 { return k.nu }

// Eval implements Kernel.
func (k *MaternKernel) Eval(b int, x1, x2 []float64) float64 {
	r := math.Sqrt(scaledSqDist(k.lengthscale.Values(b), x1, x2))

	switch k.nu {
	case 0.5:
		return math.Exp(-r)
	case 1.5:
		s := math.Sqrt(3) * r

		return (1 + s) * math.Exp(-s)
	default:
		s := math.Sqrt(5) * r

		return (1 + s + s*s/3) * math.Exp(-s)
	}
}

// Parameters implements Kernel.
func (k *MaternKernel) Parameters() []*Parameter { return []*Parameter{k.lengthscale} }

// Lengthscale implements Lengthscaled.
func (k *MaternKernel) Lengthscale() *Parameter { return k.lengthscale }

// RQKernel is the rational quadratic kernel, a scale mixture of RBF kernels.
//
// Mathematical formula:
//
//	k(x1, x2) = (1 + sum(((x1 - x2) / l)^2) / (2 * alpha))^(-alpha)
type RQKernel struct {
	lengthscale *Parameter
	alpha       *Parameter
}

// NewRQKernel creates a rational quadratic kernel.
func NewRQKernel(opts ...KernelOption) *RQKernel {
	c := newKernelConfig(opts)

	return &RQKernel{
		lengthscale: newParameter("lengthscale", c.batchShape, []int{1, c.ardDims}, c.lengthscale),
		alpha:       newParameter("alpha", c.batchShape, []int{1}, defaultHyper),
	}
}

// Name implements Kernel.
func (k *RQKernel) Name() string { return "rq" }

// Eval implements Kernel.
func (k *RQKernel) Eval(b int, x1, x2 []float64) float64 {
	alpha := k.alpha.Value(b)
	d2 := scaledSqDist(k.lengthscale.Values(b), x1, x2)

	return math.Pow(1+d2/(2*alpha), -alpha)
}

// Parameters implements Kernel.
func (k *RQKernel) Parameters() []*Parameter { return []*Parameter{k.lengthscale, k.alpha} }

// Lengthscale implements Lengthscaled.
func (k *RQKernel) Lengthscale() *Parameter { return k.lengthscale }

// Alpha returns the scale-mixture parameter.
func (k *RQKernel) Alpha() *Parameter { return k.alpha }

// PeriodicKernel models functions that repeat with a fixed period.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-2 * sum((sin(pi * |x1 - x2| / p) / l)^2))
type PeriodicKernel struct {
	lengthscale  *Parameter
	periodLength *Parameter
}

// NewPeriodicKernel creates a periodic kernel.
func NewPeriodicKernel(opts ...KernelOption) *PeriodicKernel {
	c := newKernelConfig(opts)

	return &PeriodicKernel{
		lengthscale:  newParameter("lengthscale", c.batchShape, []int{1, c.ardDims}, c.lengthscale),
		periodLength: newParameter("period_length", c.batchShape, []int{1, 1}, defaultHyper),
	}
}

// Name implements Kernel.
func (k *PeriodicKernel) Name() string { return "periodic" }

// Eval implements Kernel.
func (k *PeriodicKernel) Eval(b int, x1, x2 []float64) float64 {
	ls := k.lengthscale.Values(b)
	p := k.periodLength.Value(b)

	sin := make([]float64, len(x1))
	for i := range x1 {
		sin[i] = math.Sin(math.Pi * math.Abs(x1[i]-x2[i]) / p)
	}

	zero := make([]float64, len(x1))

	return math.Exp(-2 * scaledSqDist(ls, sin, zero))
}

// Parameters implements Kernel.
func (k *PeriodicKernel) Parameters() []*Parameter {
	return []*Parameter{k.lengthscale, k.periodLength}
}

// Lengthscale implements Lengthscaled.
func (k *PeriodicKernel) Lengthscale() *Parameter { return k.lengthscale }

// PeriodLength returns the period parameter.
func (k *PeriodicKernel) PeriodLength() *Parameter { return k.periodLength }

//////
// Non-stationary kernels.
//////

// LinearKernel is the dot-product kernel k(x1, x2) = v * <x1, x2>.
type LinearKernel struct {
	variance *Parameter
}

// NewLinearKernel creates a linear kernel.
func NewLinearKernel(opts ...KernelOption) *LinearKernel {
	c := newKernelConfig(opts)

	return &LinearKernel{variance: newParameter("variance", c.batchShape, []int{1}, defaultHyper)}
}

// Name implements Kernel.
func (k *LinearKernel) Name() string { return "linear" }

// Eval implements Kernel.
func (k *LinearKernel) Eval(b int, x1, x2 []float64) float64 {
	return k.variance.Value(b) * floats.Dot(x1, x2)
}

// Parameters implements Kernel.
func (k *LinearKernel) Parameters() []*Parameter { return []*Parameter{k.variance} }

// Variance returns the variance parameter.
func (k *LinearKernel) Variance() *Parameter { return k.variance }
