// Package smkgp builds single-task exact Gaussian Process models for use as
// surrogates in Bayesian optimization. It turns observed inputs and outputs,
// optionally with known observation noise, into a wired model whose mean
// function, covariance function, likelihood and data transforms agree on one
// batch shape.
//
// # Features
//
// The package includes the following key features:
//
//   - Kernel Selection: A closed set of kernel specs, from the classic RBF,
//     Matérn 5/2, rational quadratic and periodic kernels to spectral mixture,
//     Cauchy mixture, spectral delta, sinc and adaptive kernels
//   - Known or Inferred Noise: A Gaussian likelihood with a log-normal noise
//     prior, or fixed per-observation noise when variances are supplied
//   - Multi-output Batching: Independent outputs are modelled as a batch, one
//     hyperparameter set per output
//   - Data Transforms: Standardized outcomes by default, optional input
//     normalization
//   - Fail-fast Validation: Shape and noise errors are returned before any
//     component is built; scaling problems are logged as diagnostics
//   - YAML Configuration: Declarative kernel and transform selection
//
// # Kernels
//
// Kernels are selected with a KernelSpec value, or parsed from a tag:
//
//  1. rbf (RBFSpec): RBF kernel, lengthscale 20
//  2. mat52 (Matern52Spec): Matérn kernel, smoothness 2.5, lengthscale 20
//  3. rq (RQSpec): rational quadratic kernel, lengthscale 20
//  4. pe (PeriodicSpec): periodic kernel
//  5. smk (SpectralMixtureSpec): spectral mixture, Cauchy mixture, or their sum,
//     depending on which mixture counts are set
//  6. sdk (SpectralDeltaSpec): spectral delta kernel
//  7. sinc (SincSpec): sinc kernel
//  8. ada (AdaptiveSpec): adaptive weighting of RBF, Matérn 5/2, linear and
//     rational quadratic kernels, seeded with the training data
//
// Example:
//
//	spec, err := ParseKernelSpec("smk", 3, 4)
//	if err != nil {
//	    return err // ErrUnknownKernel for unsupported tags
//	}
//
//	gp, err := NewSingleTaskGP(TrainingSet{X: NewTensor(x), Y: NewTensor(y)}, spec)
//
// # Outcome Transforms
//
// Targets are standardized unless told otherwise:
//
//	// Standardized.
//	NewSingleTaskGP(train, RBFSpec{})
//
//	// Raw targets.
//	NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(NoOutcomeTransform()))
//
//	// Caller's transform.
//	NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(CustomOutcomeTransform(t)))
//
// # Errors and Diagnostics
//
// Fatal conditions are sentinel errors, checked with errors.Is:
// ErrShapeMismatch, ErrInvalidNoise, ErrUnknownKernel, ErrInvalidMixtureCount,
// ErrEmptyData and ErrNaN. Inputs outside the unit cube, unstandardized
// outcomes and deprecated arguments are Diagnostics: they are logged at Warn
// through the WithLogger logger and kept on the model.
//
// # Thread Safety
//
// Construction is synchronous and touches no shared state, so models can be
// built concurrently. A built model is exclusively owned by its caller.
package smkgp
