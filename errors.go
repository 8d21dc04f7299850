package smkgp

import "errors"

//////
// Sentinel errors.
//
// Callers branch on semantics with errors.Is. Call sites attach context by
// wrapping with %w, the sentinels themselves never carry parameters.
//////

// ErrShapeMismatch indicates that the batch shape, row count or column count
// of the inputs, targets or observation noise disagree.
var ErrShapeMismatch = errors.New("smkgp: shape mismatch")

// ErrInvalidNoise indicates that an observation noise variance is negative.
var ErrInvalidNoise = errors.New("smkgp: negative observation noise")

// ErrUnknownKernel indicates that a kernel tag does not name a supported
// covariance function, or that no kernel was requested at all.
var ErrUnknownKernel = errors.New("smkgp: unknown kernel")

// ErrInvalidMixtureCount indicates that the mixture counts of a spectral
// mixture request are negative or both unset.
var ErrInvalidMixtureCount = errors.New("smkgp: invalid mixture count")

// ErrEmptyData indicates a missing or zero-sized training tensor.
var ErrEmptyData = errors.New("smkgp: empty training data")

// ErrNaN indicates a NaN in the training inputs or targets.
var ErrNaN = errors.New("smkgp: training data contains NaN")

// ErrNotFitted indicates that a transform was asked to invert before it has
// seen any data.
var ErrNotFitted = errors.New("smkgp: transform not fitted")

// ErrInvalidConfig indicates a configuration value that cannot be mapped to
// a build option.
var ErrInvalidConfig = errors.New("smkgp: invalid config")
