package smkgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// adaptiveJitter is added to the diagonal before factorising a member's
// covariance matrix.
const adaptiveJitter = 1e-6

// AdditiveKernel is the sum of its member kernels.
type AdditiveKernel struct {
	kernels []Kernel
}

// NewAdditiveKernel sums the given kernels. Panics on fewer than two.
func NewAdditiveKernel(kernels ...Kernel) *AdditiveKernel {
	if len(kernels) < 2 {
		panic(fmt.Sprintf("smkgp: NewAdditiveKernel with %d kernels", len(kernels)))
	}

	return &AdditiveKernel{kernels: append([]Kernel(nil), kernels...)}
}

// Name implements Kernel.
func (k *AdditiveKernel) Name() string { return "additive" }

// Kernels returns the members, in order.
func (k *AdditiveKernel) Kernels() []Kernel { return append([]Kernel(nil), k.kernels...) }

// Eval implements Kernel.
func (k *AdditiveKernel) Eval(b int, x1, x2 []float64) float64 {
	var sum float64
	for _, m := range k.kernels {
		sum += m.Eval(b, x1, x2)
	}

	return sum
}

// Parameters implements Kernel.
func (k *AdditiveKernel) Parameters() []*Parameter {
	var ps []*Parameter
	for _, m := range k.kernels {
		ps = append(ps, m.Parameters()...)
	}

	return ps
}

// AdaptiveKernel is a weighted sum of a fixed library of member kernels. The
// weights start uniform and are re-derived from the training data by
// SetTrainData: every member is scored by its log marginal likelihood and the
// weights become the softmax of the scores, so members that explain the data
// better dominate.
type AdaptiveKernel struct {
	kernels []Kernel
	weights *Parameter

	trainX []*mat.Dense
	trainY []*mat.VecDense
}

// NewAdaptiveKernel wraps the given member kernels.
func NewAdaptiveKernel(kernels []Kernel, opts ...KernelOption) *AdaptiveKernel {
	if len(kernels) == 0 {
		panic("smkgp: NewAdaptiveKernel with no kernels")
	}

	c := newKernelConfig(opts)

	return &AdaptiveKernel{
		kernels: append([]Kernel(nil), kernels...),
		weights: newParameter("weights", c.batchShape, []int{len(kernels)}, 1/float64(len(kernels))),
	}
}

// Name implements Kernel.
func (k *AdaptiveKernel) Name() string { return "adaptive" }

// Kernels returns the members, in order.
func (k *AdaptiveKernel) Kernels() []Kernel { return append([]Kernel(nil), k.kernels...) }

// Weights returns the member weights.
func (k *AdaptiveKernel) Weights() *Parameter { return k.weights }

// TrainInputs returns the inputs the kernel was seeded with.
func (k *AdaptiveKernel) TrainInputs() []*mat.Dense { return append([]*mat.Dense(nil), k.trainX...) }

// TrainTargets returns the targets the kernel was seeded with.
func (k *AdaptiveKernel) TrainTargets() []*mat.VecDense {
	return append([]*mat.VecDense(nil), k.trainY...)
}

// Eval implements Kernel.
func (k *AdaptiveKernel) Eval(b int, x1, x2 []float64) float64 {
	w := k.weights.Values(b)

	var sum float64
	for i, m := range k.kernels {
		sum += w[i] * m.Eval(b, x1, x2)
	}

	return sum
}

// Parameters implements Kernel.
func (k *AdaptiveKernel) Parameters() []*Parameter {
	ps := []*Parameter{k.weights}
	for _, m := range k.kernels {
		ps = append(ps, m.Parameters()...)
	}

	return ps
}

// SetTrainData seeds the kernel with one input matrix and one target vector
// per batch index and re-weights the members.
//
// Parameters:
// - x: n x d inputs per flat batch index
// - y: length-n targets per flat batch index
//
// Returns:
// - error: ErrShapeMismatch when the batch or row counts disagree
func (k *AdaptiveKernel) SetTrainData(x []*mat.Dense, y []*mat.VecDense) error {
	batches := prod(k.weights.BatchShape())
	if len(x) != len(y) || (len(x) != batches && batches != 1) || len(x) == 0 {
		return fmt.Errorf("adaptive kernel with %d batches seeded with %d inputs and %d targets: %w",
			batches, len(x), len(y), ErrShapeMismatch)
	}

	for b := range x {
		if n, _ := x[b].Dims(); n != y[b].Len() {
			return fmt.Errorf("batch %d: %d inputs, %d targets: %w", b, n, y[b].Len(), ErrShapeMismatch)
		}
	}

	k.trainX = append([]*mat.Dense(nil), x...)
	k.trainY = append([]*mat.VecDense(nil), y...)

	for b := 0; b < batches; b++ {
		scores := make([]float64, len(k.kernels))
		for i, m := range k.kernels {
			scores[i] = logMarginalLikelihood(m, b, x[b], y[b])
		}

		if err := k.weights.Set(b, softmax(scores)); err != nil {
			return err
		}
	}

	return nil
}

// logMarginalLikelihood scores y under a zero-mean GP with kernel m. A
// covariance that can't be factorised scores -Inf.
func logMarginalLikelihood(m Kernel, b int, x *mat.Dense, y *mat.VecDense) float64 {
	cov := CovarianceMatrix(m, b, x)

	n := cov.SymmetricDim()
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+adaptiveJitter)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return math.Inf(-1)
	}

	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, y); err != nil {
		return math.Inf(-1)
	}

	return -0.5 * (mat.Dot(y, alpha) + chol.LogDet() + float64(n)*math.Log(2*math.Pi))
}

// softmax maps scores to weights summing to one. All -Inf scores give
// uniform weights.
func softmax(scores []float64) []float64 {
	best := math.Inf(-1)
	for _, s := range scores {
		best = math.Max(best, s)
	}

	out := make([]float64, len(scores))

	if math.IsInf(best, -1) {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}

		return out
	}

	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - best)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}
