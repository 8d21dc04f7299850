package smkgp

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Mixture kernels.
//
// Both mixture kernels model the spectral density of a stationary kernel as
// Q components, each with a weight, a per-dimension frequency mean and a
// per-dimension scale. They differ in the shape of each component.
//////

// mixture holds the parameterisation shared by the mixture kernels.
type mixture struct {
	numMixtures int
	ardDims     int
	weights     *Parameter
	means       *Parameter
	scales      *Parameter
}

func newMixture(numMixtures int, c kernelConfig) mixture {
	return mixture{
		numMixtures: numMixtures,
		ardDims:     c.ardDims,
		weights:     newParameter("mixture_weights", c.batchShape, []int{numMixtures}, defaultHyper),
		means:       newParameter("mixture_means", c.batchShape, []int{numMixtures, 1, c.ardDims}, defaultHyper),
		scales:      newParameter("mixture_scales", c.batchShape, []int{numMixtures, 1, c.ardDims}, defaultHyper),
	}
}

// NumMixtures returns Q.
func (m *mixture) NumMixtures() int { return m.numMixtures }

// ARDDims returns the number of input dimensions the kernel was sized for.
func (m *mixture) ARDDims() int { return m.ardDims }

// Parameters implements Kernel.
func (m *mixture) Parameters() []*Parameter {
	return []*Parameter{m.weights, m.means, m.scales}
}

// eval sums w_q * prod_d envelope(tau_d, scale_qd) * cos(2 pi tau_d mean_qd).
func (m *mixture) eval(b int, x1, x2 []float64, envelope func(tau, scale float64) float64) float64 {
	if len(x1) != m.ardDims || len(x2) != m.ardDims {
		panic(fmt.Sprintf("mixture kernel sized for %d dims, got %d and %d", m.ardDims, len(x1), len(x2)))
	}

	w := m.weights.Values(b)
	mu := m.means.Values(b)
	sc := m.scales.Values(b)

	var sum float64

	for q := 0; q < m.numMixtures; q++ {
		term := w[q]

		for d := 0; d < m.ardDims; d++ {
			tau := x1[d] - x2[d]
			i := q*m.ardDims + d
			term *= envelope(tau, sc[i]) * math.Cos(2*math.Pi*tau*mu[i])
		}

		sum += term
	}

	return sum
}

// InitializeFromData sets the mixture hyperparameters from the spread of the
// training data: scales from the widest distance per dimension, means below
// the Nyquist frequency of the closest distinct points, and weights sharing
// the standard deviation of y.
func (m *mixture) InitializeFromData(x *mat.Dense, y *mat.VecDense, rng *rand.Rand) error {
	n, d := x.Dims()
	if n < 2 || y.Len() != n {
		return fmt.Errorf("initialize from %d points and %d targets: %w", n, y.Len(), ErrShapeMismatch)
	}

	if d != m.ardDims {
		return fmt.Errorf("initialize %d-dim kernel from %d-dim data: %w", m.ardDims, d, ErrShapeMismatch)
	}

	maxDist := make([]float64, d)
	minDist := make([]float64, d)

	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		sort.Float64s(col)

		maxDist[j] = col[n-1] - col[0]
		minDist[j] = maxDist[j]

		for i := 1; i < n; i++ {
			if gap := col[i] - col[i-1]; gap > 0 && gap < minDist[j] {
				minDist[j] = gap
			}
		}

		if maxDist[j] == 0 {
			maxDist[j], minDist[j] = 1, 1
		}
	}

	std := stat.StdDev(y.RawVector().Data, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}

	batches := prod(m.weights.BatchShape())
	for b := 0; b < batches; b++ {
		means := make([]float64, m.numMixtures*d)
		scales := make([]float64, m.numMixtures*d)

		for q := 0; q < m.numMixtures; q++ {
			for j := 0; j < d; j++ {
				i := q*d + j
				scales[i] = 1 / math.Abs(rng.NormFloat64()*maxDist[j])
				means[i] = rng.Float64() * 0.5 / minDist[j]
			}
		}

		weights := make([]float64, m.numMixtures)
		floats.AddConst(std/float64(m.numMixtures), weights)

		for _, set := range []struct {
			p *Parameter
			v []float64
		}{{m.weights, weights}, {m.means, means}, {m.scales, scales}} {
			if err := set.p.Set(b, set.v); err != nil {
				return err
			}
		}
	}

	return nil
}

// SpectralMixtureKernel models the spectral density as a mixture of
// Gaussians.
//
// Mathematical formula:
//
//	k(tau) = sum_q w_q * prod_d exp(-2 pi^2 tau_d^2 s_qd^2) * cos(2 pi tau_d mu_qd)
type SpectralMixtureKernel struct {
	mixture
}

// NewSpectralMixtureKernel creates a spectral mixture kernel with the given
// number of components. Size it for the input dimensionality with WithARD.
func NewSpectralMixtureKernel(numMixtures int, opts ...KernelOption) *SpectralMixtureKernel {
	if numMixtures <= 0 {
		panic(fmt.Sprintf("smkgp: NewSpectralMixtureKernel(%d)", numMixtures))
	}

	return &SpectralMixtureKernel{mixture: newMixture(numMixtures, newKernelConfig(opts))}
}

// Name implements Kernel.
func (k *SpectralMixtureKernel) Name() string { return "spectral_mixture" }

// Eval implements Kernel.
func (k *SpectralMixtureKernel) Eval(b int, x1, x2 []float64) float64 {
	return k.eval(b, x1, x2, func(tau, scale float64) float64 {
		return math.Exp(-2 * math.Pi * math.Pi * tau * tau * scale * scale)
	})
}

// CauchyMixtureKernel models the spectral density as a mixture of Cauchy
// distributions. Each component has a heavy-tailed spectrum, which in the
// input domain is an exponentially decaying envelope.
//
// Mathematical formula:
//
//	k(tau) = sum_q w_q * prod_d exp(-2 pi |tau_d| s_qd) * cos(2 pi tau_d mu_qd)
type CauchyMixtureKernel struct {
	mixture
}

// NewCauchyMixtureKernel creates a Cauchy mixture kernel with the given number
// of components.
func NewCauchyMixtureKernel(numMixtures int, opts ...KernelOption) *CauchyMixtureKernel {
	if numMixtures <= 0 {
		panic(fmt.Sprintf("smkgp: NewCauchyMixtureKernel(%d)", numMixtures))
	}

	return &CauchyMixtureKernel{mixture: newMixture(numMixtures, newKernelConfig(opts))}
}

// Name implements Kernel.
func (k *CauchyMixtureKernel) Name() string { return "cauchy_mixture" }

// Eval implements Kernel.
func (k *CauchyMixtureKernel) Eval(b int, x1, x2 []float64) float64 {
	return k.eval(b, x1, x2, func(tau, scale float64) float64 {
		return math.Exp(-2 * math.Pi * math.Abs(tau) * scale)
	})
}

//////
// Spectral delta and sinc kernels.
//////

// SpectralDeltaKernel approximates a stationary kernel by a sum of point
// masses in the spectral domain.
//
// Mathematical formula:
//
//	k(x1, x2) = 1/N * sum_j cos(2 pi <z_j, x1 - x2>)
type SpectralDeltaKernel struct {
	numDims int
	z       *Parameter
}

// NewSpectralDeltaKernel creates a spectral delta kernel over numDims input
// dimensions. The frequencies are drawn uniformly from [0, 1) using the
// WithKernelRand source.
func NewSpectralDeltaKernel(numDims int, opts ...KernelOption) *SpectralDeltaKernel {
	if numDims <= 0 {
		panic(fmt.Sprintf("smkgp: NewSpectralDeltaKernel(%d)", numDims))
	}

	c := newKernelConfig(opts)
	z := newParameter("Z", c.batchShape, []int{c.numDeltas, numDims}, 0)

	for b := 0; b < prod(c.batchShape); b++ {
		v := z.Values(b)
		for i := range v {
			v[i] = c.rng.Float64()
		}
	}

	return &SpectralDeltaKernel{numDims: numDims, z: z}
}

// Name implements Kernel.
func (k *SpectralDeltaKernel) Name() string { return "spectral_delta" }

// NumDims returns the input dimensionality the kernel was sized for.
func (k *SpectralDeltaKernel) NumDims() int { return k.numDims }

// NumDeltas returns the number of spectral point masses.
func (k *SpectralDeltaKernel) NumDeltas() int { return k.z.Shape()[0] }

// Eval implements Kernel.
func (k *SpectralDeltaKernel) Eval(b int, x1, x2 []float64) float64 {
	if len(x1) != k.numDims || len(x2) != k.numDims {
		panic(fmt.Sprintf("spectral delta kernel sized for %d dims, got %d and %d", k.numDims, len(x1), len(x2)))
	}

	tau := make([]float64, k.numDims)
	floats.SubTo(tau, x1, x2)

	z := k.z.Values(b)
	n := k.NumDeltas()

	var sum float64
	for j := 0; j < n; j++ {
		sum += math.Cos(2 * math.Pi * floats.Dot(z[j*k.numDims:(j+1)*k.numDims], tau))
	}

	return sum / float64(n)
}

// Parameters implements Kernel.
func (k *SpectralDeltaKernel) Parameters() []*Parameter { return []*Parameter{k.z} }

// SincKernel has a rectangular spectral density of width `bandwidth` centred
// on `frequency`.
//
// Mathematical formula:
//
//	k(tau) = prod_d sinc(bandwidth * tau_d) * cos(2 pi frequency * tau_d)
type SincKernel struct {
	bandwidth *Parameter
	frequency *Parameter
}

// NewSincKernel creates a sinc kernel.
func NewSincKernel(opts ...KernelOption) *SincKernel {
	c := newKernelConfig(opts)

	return &SincKernel{
		bandwidth: newParameter("bandwidth", c.batchShape, []int{1}, defaultHyper),
		frequency: newParameter("frequency", c.batchShape, []int{1}, defaultHyper),
	}
}

// Name implements Kernel.
func (k *SincKernel) Name() string { return "sinc" }

// Eval implements Kernel.
func (k *SincKernel) Eval(b int, x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	bw := k.bandwidth.Value(b)
	xi := k.frequency.Value(b)

	out := 1.0
	for d := range x1 {
		tau := x1[d] - x2[d]
		out *= sinc(bw*tau) * math.Cos(2*math.Pi*xi*tau)
	}

	return out
}

// Parameters implements Kernel.
func (k *SincKernel) Parameters() []*Parameter { return []*Parameter{k.bandwidth, k.frequency} }
