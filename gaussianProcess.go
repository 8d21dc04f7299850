package smkgp

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// Paths of the tensors that vary along a batch dimension, as recorded in
// BatchSubsetting.
const (
	SubsetMeanConstant          = "mean.constant"
	SubsetCovarianceLengthscale = "covariance.lengthscale"
	SubsetLikelihoodNoise       = "likelihood.noise"
)

// SubsetEntry names a hyperparameter tensor and the dimension, counted from
// the end, along which it varies with the output batch.
type SubsetEntry struct {
	Path string
	Dim  int
}

// BatchSubsetting describes which hyperparameters can be sliced per output
// when a multi-output model is subset. It is fixed at construction.
type BatchSubsetting struct {
	entries []SubsetEntry
}

// Entries returns a copy of the recorded entries.
func (s BatchSubsetting) Entries() []SubsetEntry {
	return append([]SubsetEntry(nil), s.entries...)
}

// Dim returns the batch dimension recorded for path.
func (s BatchSubsetting) Dim(path string) (int, bool) {
	for _, e := range s.entries {
		if e.Path == path {
			return e.Dim, true
		}
	}

	return 0, false
}

// SingleTaskGP is a single-task exact GP, supporting both known and inferred
// noise levels. Multiple outputs are modelled independently by batching: the
// augmented batch shape is the input batch shape followed by the number of
// outputs, when there is more than one.
//
// Fields:
// - trainInputs, trainTargets, trainNoise: Training data per flat augmented
// batch index; trainNoise is nil when noise is inferred
// - mean, covariance, likelihood: Owned exclusively by the model
// - ardDims: Feature count after the input transform
//
// Thread safety:
// - A built model is not mutated by this package. External optimizers that
// mutate hyperparameters must synchronise themselves
type SingleTaskGP struct {
	trainInputs  []*mat.Dense
	trainTargets []*mat.VecDense
	trainNoise   []*mat.VecDense

	numOutputs      int
	inputBatchShape []int
	augBatchShape   []int
	ardDims         int

	mean             Mean
	covariance       Kernel
	likelihood       Likelihood
	customLikelihood bool

	outcomeTransform OutcomeTransform
	inputTransform   InputTransform

	subsetting  BatchSubsetting
	diagnostics []Diagnostic
}

//////
// Factory.
//////

// NewSingleTaskGP builds a single-task exact GP from training data and a
// kernel selection.
//
// Parameters:
// - train: Training inputs, targets and optional observed noise
// - kernel: Covariance function selection; ignored (and may be nil) when
// WithCovariance is given
// - opts: Overrides for the likelihood, mean, transforms and logging
//
// Returns:
// - *SingleTaskGP: The wired model
// - error: ErrEmptyData, ErrShapeMismatch, ErrInvalidNoise, ErrNaN,
// ErrUnknownKernel or ErrInvalidMixtureCount. No model is returned on error
//
// Usage example:
//
//	x := mat.NewDense(20, 2, xs) // features in the unit cube
//	y := mat.NewDense(20, 1, ys)
//
//	// Inferred noise, standardized targets, RBF kernel.
//	gp, err := NewSingleTaskGP(TrainingSet{X: NewTensor(x), Y: NewTensor(y)}, RBFSpec{})
//
//	// Known noise, 3 Cauchy + 4 Gaussian spectral components.
//	gp, err = NewSingleTaskGP(
//	    TrainingSet{X: NewTensor(x), Y: NewTensor(y), Yvar: NewTensor(yvar)},
//	    SpectralMixtureSpec{CauchyMixtures: 3, SpectralMixtures: 4},
//	    WithLogger(logger),
//	)
//
// How it works:
// 1. Validates the raw shapes and noise
// 2. Resolves the outcome transform (Standardize unless told otherwise)
// 3. Applies the input transform with gradient tracking disabled, to learn
// the input dimensionality the kernel is sized for
// 4. Applies the outcome transform and validates again
// 5. Checks input scaling; violations are logged diagnostics, not errors
// 6. Derives the augmented batch shape and reshapes the training data
// 7. Resolves likelihood, mean and kernel, and records batch subsetting
func NewSingleTaskGP(train TrainingSet, kernel KernelSpec, opts ...Option) (*SingleTaskGP, error) {
	cfg := newBuildConfig(opts)
	logger := cfg.logger.Named("smkgp")

	x, y, yvar := train.X, train.Y, train.Yvar
	if x == nil || y == nil {
		return nil, fmt.Errorf("training set: %w", ErrEmptyData)
	}

	if err := validateTensorArgs(x, y, yvar); err != nil {
		return nil, err
	}

	if err := validateNoise(yvar); err != nil {
		return nil, err
	}

	m := y.Cols()
	outcome := cfg.outcome.resolve(m, x.BatchShape())

	transformedX := x
	if cfg.input != nil {
		err := withoutGrad(cfg.input.Parameters(), func() error {
			t, err := cfg.input.Transform(x)
			transformedX = t

			return err
		})
		if err != nil {
			return nil, fmt.Errorf("input transform: %w", err)
		}
	}

	if outcome != nil {
		ty, tv, err := outcome.Transform(y, yvar)
		if err != nil {
			return nil, fmt.Errorf("outcome transform: %w", err)
		}

		y, yvar = ty, tv
	}

	if err := validateTensorArgs(transformedX, y, yvar); err != nil {
		return nil, fmt.Errorf("after transforms: %w", err)
	}

	diags, err := validateInputScaling(transformedX, y, yvar, cfg.ignoreScalingDims)
	if err != nil {
		return nil, err
	}

	for _, d := range diags {
		logger.Warn(d.Message, zap.Stringer("kind", d.Kind))
	}

	gp := &SingleTaskGP{
		numOutputs:       m,
		inputBatchShape:  x.BatchShape(),
		augBatchShape:    augmentedBatchShape(x.BatchShape(), m),
		ardDims:          transformedX.Cols(),
		outcomeTransform: outcome,
		inputTransform:   cfg.input,
		diagnostics:      diags,
	}

	gp.trainInputs, gp.trainTargets, gp.trainNoise = reshapeTrainingData(x, y, yvar)

	switch {
	case cfg.likelihood != nil:
		gp.likelihood = cfg.likelihood
		gp.customLikelihood = true
	case gp.trainNoise == nil:
		gp.likelihood = NewGaussianLikelihood(gp.augBatchShape)
	default:
		l, err := NewFixedNoiseGaussianLikelihood(gp.trainNoise)
		if err != nil {
			return nil, err
		}

		gp.likelihood = l
	}

	gp.mean = cfg.mean
	if gp.mean == nil {
		gp.mean = NewConstantMean(gp.augBatchShape)
	}

	gp.covariance = cfg.covariance
	if gp.covariance == nil {
		gp.covariance, err = resolveKernel(kernel, kernelEnv{
			ardDims:    gp.ardDims,
			batchShape: gp.augBatchShape,
			rng:        rand.New(rand.NewSource(cfg.seed)),
			trainX:     gp.trainInputs,
			trainY:     gp.trainTargets,
		})
		if err != nil {
			return nil, err
		}
	}

	gp.subsetting = newBatchSubsetting(gp.covariance, gp.likelihood)

	logger.Debug("Built single-task GP",
		zap.String("kernel", gp.covariance.Name()),
		zap.Ints("input_batch_shape", gp.inputBatchShape),
		zap.Ints("augmented_batch_shape", gp.augBatchShape),
		zap.Int("outputs", m),
		zap.Int("ard_dims", gp.ardDims),
		zap.Bool("fixed_noise", gp.likelihood.FixedNoise()),
		zap.Bool("custom_likelihood", gp.customLikelihood),
	)

	return gp, nil
}

// augmentedBatchShape appends the output count to the input batch shape when
// there is more than one output.
func augmentedBatchShape(inputBatchShape []int, m int) []int {
	aug := cloneShape(inputBatchShape)
	if m > 1 {
		aug = append(aug, m)
	}

	return aug
}

// reshapeTrainingData splits the `batch x n x m` targets into one length-n
// vector per (batch, output) pair, pairing each with a copy of its batch's
// inputs. Augmented index = batch index * m + output.
func reshapeTrainingData(x, y, yvar *Tensor) ([]*mat.Dense, []*mat.VecDense, []*mat.VecDense) {
	m := y.Cols()
	total := x.BatchSize() * m

	xs := make([]*mat.Dense, 0, total)
	ys := make([]*mat.VecDense, 0, total)

	var vs []*mat.VecDense
	if yvar != nil {
		vs = make([]*mat.VecDense, 0, total)
	}

	for b := 0; b < x.BatchSize(); b++ {
		for j := 0; j < m; j++ {
			xs = append(xs, mat.DenseCopyOf(x.Matrix(b)))
			ys = append(ys, mat.NewVecDense(y.Rows(), mat.Col(nil, j, y.Matrix(b))))

			if yvar != nil {
				vs = append(vs, mat.NewVecDense(yvar.Rows(), mat.Col(nil, j, yvar.Matrix(b))))
			}
		}
	}

	return xs, ys, vs
}

func newBatchSubsetting(k Kernel, l Likelihood) BatchSubsetting {
	entries := []SubsetEntry{{Path: SubsetMeanConstant, Dim: -1}}

	if _, ok := k.(Lengthscaled); ok {
		entries = append(entries, SubsetEntry{Path: SubsetCovarianceLengthscale, Dim: -3})
	}

	if !l.FixedNoise() {
		entries = append(entries, SubsetEntry{Path: SubsetLikelihoodNoise, Dim: -2})
	}

	return BatchSubsetting{entries: entries}
}

//////
// Methods.
//////

// Forward evaluates the GP prior at the rows of x: one distribution per
// augmented batch index, with the mean function's mean and the kernel's
// covariance. The input transform, if any, is applied first.
//
// Returns:
// - []*MultivariateNormal: One distribution per output (and input batch)
// - error: ErrEmptyData for an empty x, ErrShapeMismatch when its feature
// count does not match the training inputs
//
// Usage example:
//
//	dists, err := gp.Forward(mat.NewDense(1, 2, []float64{0.5, 0.5}))
//	mean, variance := dists[0].Mean.AtVec(0), dists[0].Variance()[0]
func (gp *SingleTaskGP) Forward(x *mat.Dense) ([]*MultivariateNormal, error) {
	if x == nil || x.IsEmpty() {
		return nil, fmt.Errorf("forward: %w", ErrEmptyData)
	}

	xt := x
	if gp.inputTransform != nil {
		t, err := gp.inputTransform.Transform(NewTensor(x))
		if err != nil {
			return nil, fmt.Errorf("forward input transform: %w", err)
		}

		xt = t.Matrix(0)
	}

	if _, d := xt.Dims(); d != gp.ardDims {
		return nil, fmt.Errorf("forward on %d features, model has %d: %w", d, gp.ardDims, ErrShapeMismatch)
	}

	out := make([]*MultivariateNormal, len(gp.trainTargets))
	for b := range out {
		out[b] = &MultivariateNormal{
			Mean:       gp.mean.Eval(b, xt),
			Covariance: CovarianceMatrix(gp.covariance, b, xt),
		}
	}

	return out, nil
}

// NumOutputs returns m.
func (gp *SingleTaskGP) NumOutputs() int { return gp.numOutputs }

// InputBatchShape returns the batch shape of the training inputs.
func (gp *SingleTaskGP) InputBatchShape() []int { return cloneShape(gp.inputBatchShape) }

// AugmentedBatchShape returns the batch shape every sub-component is sized
// for.
func (gp *SingleTaskGP) AugmentedBatchShape() []int { return cloneShape(gp.augBatchShape) }

// InputDims returns the feature count the kernel operates on.
func (gp *SingleTaskGP) InputDims() int { return gp.ardDims }

// Mean returns the mean function.
func (gp *SingleTaskGP) Mean() Mean { return gp.mean }

// Covariance returns the covariance function.
func (gp *SingleTaskGP) Covariance() Kernel { return gp.covariance }

// Likelihood returns the noise model.
func (gp *SingleTaskGP) Likelihood() Likelihood { return gp.likelihood }

// HasCustomLikelihood reports whether the likelihood was supplied by the
// caller.
func (gp *SingleTaskGP) HasCustomLikelihood() bool { return gp.customLikelihood }

// OutcomeTransform returns the outcome transform, nil for none.
func (gp *SingleTaskGP) OutcomeTransform() OutcomeTransform { return gp.outcomeTransform }

// InputTransform returns the input transform, nil for none.
func (gp *SingleTaskGP) InputTransform() InputTransform { return gp.inputTransform }

// TrainInputs returns the training inputs per augmented batch index. They
// are not input-transformed.
func (gp *SingleTaskGP) TrainInputs() []*mat.Dense { return append([]*mat.Dense(nil), gp.trainInputs...) }

// TrainTargets returns the outcome-transformed targets per augmented batch
// index.
func (gp *SingleTaskGP) TrainTargets() []*mat.VecDense {
	return append([]*mat.VecDense(nil), gp.trainTargets...)
}

// TrainNoise returns the outcome-transformed observed noise per augmented
// batch index, nil when noise is inferred.
func (gp *SingleTaskGP) TrainNoise() []*mat.VecDense {
	if gp.trainNoise == nil {
		return nil
	}

	return append([]*mat.VecDense(nil), gp.trainNoise...)
}

// BatchSubsetting returns the batch-subsetting metadata.
func (gp *SingleTaskGP) BatchSubsetting() BatchSubsetting { return gp.subsetting }

// Diagnostics returns the non-fatal findings raised while building.
func (gp *SingleTaskGP) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), gp.diagnostics...)
}

// Parameters returns every hyperparameter of the model: mean, covariance,
// then likelihood.
func (gp *SingleTaskGP) Parameters() []*Parameter {
	var ps []*Parameter
	ps = append(ps, gp.mean.Parameters()...)
	ps = append(ps, gp.covariance.Parameters()...)
	ps = append(ps, gp.likelihood.Parameters()...)

	return ps
}
