package smkgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// MinInferredNoise is the lower bound of an inferred noise level.
	MinInferredNoise = 1e-4

	noisePriorLoc   = -4.0
	noisePriorScale = 1.0
)

// Likelihood is the observation-noise model linking latent function values
// to observed targets.
type Likelihood interface {
	// Noise returns the noise variances of n observations at batch index b.
	Noise(b, n int) []float64

	// FixedNoise reports whether the noise was observed rather than inferred.
	FixedNoise() bool

	// Parameters returns the likelihood's hyperparameters.
	Parameters() []*Parameter
}

// GaussianLikelihood models homoskedastic Gaussian noise with an inferred
// level, one level per batch index.
type GaussianLikelihood struct {
	noise    *Parameter
	minNoise float64
}

// NewGaussianLikelihood creates a Gaussian likelihood with a LogNormal(-4, 1)
// prior on the noise. The noise starts at the prior's mode, exp(-5), and is
// bounded below by MinInferredNoise.
func NewGaussianLikelihood(batchShape []int) *GaussianLikelihood {
	prior := NewLogNormalPrior(noisePriorLoc, noisePriorScale)

	noise := newParameter("noise", batchShape, []int{1}, math.Exp(noisePriorLoc-noisePriorScale*noisePriorScale))
	noise.Prior = prior

	return &GaussianLikelihood{noise: noise, minNoise: MinInferredNoise}
}

// Noise implements Likelihood.
func (l *GaussianLikelihood) Noise(b, n int) []float64 {
	v := math.Max(l.noise.Value(b), l.minNoise)

	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

// FixedNoise implements Likelihood.
func (l *GaussianLikelihood) FixedNoise() bool { return false }

// Parameters implements Likelihood.
func (l *GaussianLikelihood) Parameters() []*Parameter { return []*Parameter{l.noise} }

// NoiseParameter returns the inferred noise level.
func (l *GaussianLikelihood) NoiseParameter() *Parameter { return l.noise }

// FixedNoiseGaussianLikelihood uses observed, per-observation noise
// variances. It has no hyperparameters.
type FixedNoiseGaussianLikelihood struct {
	noise []*mat.VecDense
}

// NewFixedNoiseGaussianLikelihood creates a likelihood seeded with one noise
// vector per flat batch index.
func NewFixedNoiseGaussianLikelihood(noise []*mat.VecDense) (*FixedNoiseGaussianLikelihood, error) {
	if len(noise) == 0 {
		return nil, fmt.Errorf("fixed noise likelihood: %w", ErrEmptyData)
	}

	out := make([]*mat.VecDense, len(noise))
	for b, v := range noise {
		for i := 0; i < v.Len(); i++ {
			if v.AtVec(i) < 0 {
				return nil, fmt.Errorf("batch %d, observation %d: %w", b, i, ErrInvalidNoise)
			}
		}

		out[b] = mat.VecDenseCopyOf(v)
	}

	return &FixedNoiseGaussianLikelihood{noise: out}, nil
}

// Noise implements Likelihood. When n matches the training observations
// their noise is returned, otherwise every point gets their mean noise.
func (l *FixedNoiseGaussianLikelihood) Noise(b, n int) []float64 {
	v := l.noise[0]
	if len(l.noise) > 1 {
		v = l.noise[b]
	}

	out := make([]float64, n)

	if v.Len() == n {
		copy(out, v.RawVector().Data)

		return out
	}

	mean := mat.Sum(v) / float64(v.Len())
	for i := range out {
		out[i] = mean
	}

	return out
}

// FixedNoise implements Likelihood.
func (l *FixedNoiseGaussianLikelihood) FixedNoise() bool { return true }

// Parameters implements Likelihood.
func (l *FixedNoiseGaussianLikelihood) Parameters() []*Parameter { return nil }
