package smkgp

import (
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Symbolic kernel tags accepted by ParseKernelSpec.
const (
	KernelRBF             = "rbf"
	KernelMatern52        = "mat52"
	KernelRQ              = "rq"
	KernelPeriodic        = "pe"
	KernelSpectralMixture = "smk"
	KernelSpectralDelta   = "sdk"
	KernelSinc            = "sinc"
	KernelAdaptive        = "ada"
)

// initialLengthscale is the starting lengthscale of the rbf, mat52 and rq
// kernels and of the rq member of the adaptive library.
const initialLengthscale = 20

// KernelSpec selects the covariance function a model is built with. The set
// of implementations is closed: RBFSpec, Matern52Spec, RQSpec, PeriodicSpec,
// SpectralMixtureSpec, SpectralDeltaSpec, SincSpec and AdaptiveSpec.
type KernelSpec interface {
	// Tag returns the symbolic kernel identifier.
	Tag() string

	isKernelSpec()
}

// RBFSpec selects an RBF kernel with lengthscale 20.
type RBFSpec struct{}

// Matern52Spec selects a Matérn 5/2 kernel with lengthscale 20.
type Matern52Spec struct{}

// RQSpec selects a rational quadratic kernel with lengthscale 20.
type RQSpec struct{}

// PeriodicSpec selects a periodic kernel with default hyperparameters.
type PeriodicSpec struct{}

// SpectralMixtureSpec selects the spectral mixture family. Zero means unset.
//
// Resolution:
// - CauchyMixtures unset: spectral mixture kernel with SpectralMixtures components
// - SpectralMixtures unset: Cauchy mixture kernel with CauchyMixtures components
// - both set: the sum of both
//
// Every member has one lengthscale set per input dimension.
type SpectralMixtureSpec struct {
	// CauchyMixtures is the number of Cauchy components (mixture count 1).
	CauchyMixtures int

	// SpectralMixtures is the number of Gaussian components (mixture count 2).
	SpectralMixtures int
}

// SpectralDeltaSpec selects a spectral delta kernel sized to the input
// dimensionality.
type SpectralDeltaSpec struct{}

// SincSpec selects a sinc kernel with default hyperparameters.
type SincSpec struct{}

// AdaptiveSpec selects an adaptive kernel over RBF, Matérn 5/2, linear and
// rational quadratic members, seeded with the training data.
type AdaptiveSpec struct{}

func (RBFSpec) Tag() string             { return KernelRBF }
func (Matern52Spec) Tag() string        { return KernelMatern52 }
func (RQSpec) Tag() string              { return KernelRQ }
func (PeriodicSpec) Tag() string        { return KernelPeriodic }
func (SpectralMixtureSpec) Tag() string { return KernelSpectralMixture }
func (SpectralDeltaSpec) Tag() string   { return KernelSpectralDelta }
func (SincSpec) Tag() string            { return KernelSinc }
func (AdaptiveSpec) Tag() string        { return KernelAdaptive }

func (RBFSpec) isKernelSpec()             {}
func (Matern52Spec) isKernelSpec()        {}
func (RQSpec) isKernelSpec()              {}
func (PeriodicSpec) isKernelSpec()        {}
func (SpectralMixtureSpec) isKernelSpec() {}
func (SpectralDeltaSpec) isKernelSpec()   {}
func (SincSpec) isKernelSpec()            {}
func (AdaptiveSpec) isKernelSpec()        {}

// ParseKernelSpec maps a symbolic kernel tag to its KernelSpec. The mixture
// counts are only read for "smk".
//
// Parameters:
// - tag: One of rbf, mat52, rq, pe, smk, sdk, sinc, ada (case-insensitive)
// - mixtureCount1: Cauchy components for smk, zero for unset
// - mixtureCount2: Gaussian components for smk, zero for unset
//
// Returns:
// - KernelSpec: The selected variant
// - error: ErrUnknownKernel for any other tag
//
// Usage example:
//
//	spec, err := ParseKernelSpec("smk", 0, 4) // 4-component spectral mixture
func ParseKernelSpec(tag string, mixtureCount1, mixtureCount2 int) (KernelSpec, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case KernelRBF:
		return RBFSpec{}, nil
	case KernelMatern52:
		return Matern52Spec{}, nil
	case KernelRQ:
		return RQSpec{}, nil
	case KernelPeriodic:
		return PeriodicSpec{}, nil
	case KernelSpectralMixture:
		return SpectralMixtureSpec{CauchyMixtures: mixtureCount1, SpectralMixtures: mixtureCount2}, nil
	case KernelSpectralDelta:
		return SpectralDeltaSpec{}, nil
	case KernelSinc:
		return SincSpec{}, nil
	case KernelAdaptive:
		return AdaptiveSpec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, tag)
	}
}

// kernelEnv carries what the decision table needs to size and seed kernels.
type kernelEnv struct {
	// ardDims is the feature count of the input-transformed training inputs.
	ardDims    int
	batchShape []int
	rng        *rand.Rand

	// trainX and trainY are the reshaped training data, inputs not
	// input-transformed, indexed by flat augmented batch index.
	trainX []*mat.Dense
	trainY []*mat.VecDense
}

// resolveKernel is the kernel decision table.
func resolveKernel(spec KernelSpec, env kernelEnv) (Kernel, error) {
	if env.rng == nil {
		env.rng = rand.New(rand.NewSource(0))
	}

	batch := WithKernelBatchShape(env.batchShape)
	ard := WithARD(env.ardDims)
	ls := WithLengthscale(initialLengthscale)

	switch s := spec.(type) {
	case RBFSpec:
		return NewRBFKernel(batch, ls), nil
	case Matern52Spec:
		return NewMaternKernel(batch, WithNu(2.5), ls), nil
	case RQSpec:
		return NewRQKernel(batch, ls), nil
	case PeriodicSpec:
		return NewPeriodicKernel(batch), nil
	case SpectralMixtureSpec:
		c1, c2 := s.CauchyMixtures, s.SpectralMixtures

		switch {
		case c1 < 0 || c2 < 0:
			return nil, fmt.Errorf("%w: cauchy=%d spectral=%d", ErrInvalidMixtureCount, c1, c2)
		case c1 == 0 && c2 == 0:
			return nil, fmt.Errorf("%w: no mixture components requested", ErrInvalidMixtureCount)
		case c1 == 0:
			return NewSpectralMixtureKernel(c2, batch, ard), nil
		case c2 == 0:
			return NewCauchyMixtureKernel(c1, batch, ard), nil
		default:
			return NewAdditiveKernel(
				NewCauchyMixtureKernel(c1, batch, ard),
				NewSpectralMixtureKernel(c2, batch, ard),
			), nil
		}
	case SpectralDeltaSpec:
		return NewSpectralDeltaKernel(env.ardDims, batch, WithKernelRand(env.rng)), nil
	case SincSpec:
		return NewSincKernel(batch), nil
	case AdaptiveSpec:
		k := NewAdaptiveKernel([]Kernel{
			NewRBFKernel(batch),
			NewMaternKernel(batch, WithNu(2.5)),
			NewLinearKernel(batch),
			NewRQKernel(batch, ls),
		}, batch)

		if err := k.SetTrainData(env.trainX, env.trainY); err != nil {
			return nil, fmt.Errorf("seed adaptive kernel: %w", err)
		}

		return k, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKernel, spec)
	}
}
