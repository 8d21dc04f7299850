package smkgp

import (
	"fmt"

	"go.uber.org/zap"
)

// Option customizes NewSingleTaskGP. Option constructors panic on
// meaningless arguments; NewSingleTaskGP itself returns errors.
type Option func(*buildConfig)

type buildConfig struct {
	likelihood        Likelihood
	mean              Mean
	covariance        Kernel
	outcome           OutcomeTransformChoice
	input             InputTransform
	ignoreScalingDims []int
	logger            *zap.Logger
	seed              int64
	taskFeature       *int
}

func newBuildConfig(opts []Option) *buildConfig {
	c := &buildConfig{logger: zap.NewNop()}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithLikelihood uses l instead of the default Gaussian likelihood. The
// model then reports HasCustomLikelihood.
func WithLikelihood(l Likelihood) Option {
	if l == nil {
		panic("smkgp: WithLikelihood(nil)")
	}

	return func(c *buildConfig) {
		c.likelihood = l
	}
}

// WithMean uses m instead of the default constant mean.
func WithMean(m Mean) Option {
	if m == nil {
		panic("smkgp: WithMean(nil)")
	}

	return func(c *buildConfig) {
		c.mean = m
	}
}

// WithCovariance uses k as the covariance function; the kernel spec passed
// to NewSingleTaskGP is ignored.
func WithCovariance(k Kernel) Option {
	if k == nil {
		panic("smkgp: WithCovariance(nil)")
	}

	return func(c *buildConfig) {
		c.covariance = k
	}
}

// WithOutcomeTransform selects the outcome transform. Without this option
// the targets are standardized.
func WithOutcomeTransform(choice OutcomeTransformChoice) Option {
	return func(c *buildConfig) {
		c.outcome = choice
	}
}

// WithInputTransform applies t to the inputs before the kernel sees them.
func WithInputTransform(t InputTransform) Option {
	if t == nil {
		panic("smkgp: WithInputTransform(nil)")
	}

	return func(c *buildConfig) {
		c.input = t
	}
}

// WithIgnoreScalingDims exempts the given feature indices from the unit-cube
// check, e.g. for categorical or task features.
func WithIgnoreScalingDims(dims ...int) Option {
	for _, d := range dims {
		if d < 0 {
			panic(fmt.Sprintf("smkgp: WithIgnoreScalingDims(%v)", dims))
		}
	}

	return func(c *buildConfig) {
		c.ignoreScalingDims = append(c.ignoreScalingDims, dims...)
	}
}

// WithLogger routes construction logs and diagnostics to l. Defaults to a
// no-op logger.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic("smkgp: WithLogger(nil)")
	}

	return func(c *buildConfig) {
		c.logger = l
	}
}

// WithSeed seeds the random initialisation of randomised hyperparameters,
// such as the spectral delta frequencies. Defaults to 0.
func WithSeed(seed int64) Option {
	return func(c *buildConfig) {
		c.seed = seed
	}
}

// WithTaskFeature is accepted by FromDataset for backward compatibility only.
//
// Deprecated: the task feature is ignored; a deprecation diagnostic is
// raised when it is set.
func WithTaskFeature(idx int) Option {
	return func(c *buildConfig) {
		c.taskFeature = &idx
	}
}
