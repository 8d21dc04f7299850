package smkgp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestNewSingleTaskGPInferredNoise(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(1, 1), RBFSpec{})
	require.NoError(t, err)

	// Without observed noise the likelihood infers it.
	assert.False(t, gp.Likelihood().FixedNoise())
	assert.False(t, gp.HasCustomLikelihood())

	l, ok := gp.Likelihood().(*GaussianLikelihood)
	require.True(t, ok)

	// Noise starts at the mode of the LogNormal(-4, 1) prior.
	assert.InDelta(t, math.Exp(-5), l.NoiseParameter().Value(0), 1e-12)
	assert.NotNil(t, l.NoiseParameter().Prior)
	assert.Nil(t, gp.TrainNoise())
}

func TestNewSingleTaskGPNegativeNoise(t *testing.T) {
	train := sinTrainingSet(1, 1)

	yvar := filled(20, 1, 0.1)
	yvar.Set(7, 0, -0.1)
	train.Yvar = NewTensor(yvar)

	gp, err := NewSingleTaskGP(train, RBFSpec{})
	assert.ErrorIs(t, err, ErrInvalidNoise)
	assert.Nil(t, gp)
}

func TestNewSingleTaskGPShapeMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := unitInputs(rng, 20, 2)

	batched, err := NewBatchTensor([]int{2}, x, unitInputs(rng, 20, 2))
	require.NoError(t, err)

	tests := []struct {
		name  string
		train TrainingSet
	}{
		{
			name:  "row count",
			train: TrainingSet{X: NewTensor(x), Y: NewTensor(filled(19, 1, 1))},
		},
		{
			name:  "batch shape",
			train: TrainingSet{X: batched, Y: NewTensor(filled(20, 1, 1))},
		},
		{
			name: "noise shape",
			train: TrainingSet{
				X:    NewTensor(x),
				Y:    NewTensor(sinTargets(x, 1)),
				Yvar: NewTensor(filled(20, 2, 0.1)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp, err := NewSingleTaskGP(tt.train, RBFSpec{})
			assert.ErrorIs(t, err, ErrShapeMismatch)
			assert.Nil(t, gp)
		})
	}
}

func TestNewSingleTaskGPEmptyData(t *testing.T) {
	_, err := NewSingleTaskGP(TrainingSet{}, RBFSpec{})
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = NewSingleTaskGP(TrainingSet{X: NewTensor(&mat.Dense{}), Y: NewTensor(filled(2, 1, 1))}, RBFSpec{})
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestNewSingleTaskGPNaN(t *testing.T) {
	train := sinTrainingSet(3, 1)
	train.X.Matrix(0).Set(0, 0, math.NaN())

	_, err := NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(NoOutcomeTransform()))
	assert.ErrorIs(t, err, ErrNaN)
}

func TestKernelDecisionTable(t *testing.T) {
	tests := []struct {
		name  string
		spec  KernelSpec
		check func(t *testing.T, k Kernel)
	}{
		{
			name: "rbf",
			spec: RBFSpec{},
			check: func(t *testing.T, k Kernel) {
				rbf, ok := k.(*RBFKernel)
				require.True(t, ok)
				assert.Equal(t, 20.0, rbf.Lengthscale().Value(0))
			},
		},
		{
			name: "mat52",
			spec: Matern52Spec{},
			check: func(t *testing.T, k Kernel) {
				m, ok := k.(*MaternKernel)
				require.True(t, ok)
				assert.Equal(t, 2.5, m.Nu())
				assert.Equal(t, 20.0, m.Lengthscale().Value(0))
			},
		},
		{
			name: "rq",
			spec: RQSpec{},
			check: func(t *testing.T, k Kernel) {
				rq, ok := k.(*RQKernel)
				require.True(t, ok)
				assert.Equal(t, 20.0, rq.Lengthscale().Value(0))
			},
		},
		{
			name: "pe",
			spec: PeriodicSpec{},
			check: func(t *testing.T, k Kernel) {
				pe, ok := k.(*PeriodicKernel)
				require.True(t, ok)
				assert.Equal(t, defaultHyper, pe.Lengthscale().Value(0))
				assert.Equal(t, defaultHyper, pe.PeriodLength().Value(0))
			},
		},
		{
			name: "sdk",
			spec: SpectralDeltaSpec{},
			check: func(t *testing.T, k Kernel) {
				sdk, ok := k.(*SpectralDeltaKernel)
				require.True(t, ok)
				assert.Equal(t, 2, sdk.NumDims())
			},
		},
		{
			name: "sinc",
			spec: SincSpec{},
			check: func(t *testing.T, k Kernel) {
				assert.IsType(t, &SincKernel{}, k)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp, err := NewSingleTaskGP(sinTrainingSet(4, 1), tt.spec)
			require.NoError(t, err)

			tt.check(t, gp.Covariance())
		})
	}
}

func TestSpectralMixtureSizedToTransformedInputs(t *testing.T) {
	// The transform adds a feature: 2 raw dims become 3.
	gp, err := NewSingleTaskGP(
		sinTrainingSet(5, 1),
		SpectralMixtureSpec{SpectralMixtures: 4},
		WithInputTransform(newAppendFeature()),
	)
	require.NoError(t, err)

	sm, ok := gp.Covariance().(*SpectralMixtureKernel)
	require.True(t, ok)

	assert.Equal(t, 4, sm.NumMixtures())
	assert.Equal(t, 3, sm.ARDDims())
	assert.Equal(t, 3, gp.InputDims())

	// Stored inputs are the raw ones.
	_, d := gp.TrainInputs()[0].Dims()
	assert.Equal(t, 2, d)

	// Forward applies the transform again before the kernel sees the inputs.
	dists, err := gp.Forward(mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4}))
	require.NoError(t, err)
	assert.Equal(t, 2, dists[0].Len())
}

func TestSpectralMixtureCombinations(t *testing.T) {
	t.Run("cauchy and spectral", func(t *testing.T) {
		gp, err := NewSingleTaskGP(sinTrainingSet(6, 1), SpectralMixtureSpec{CauchyMixtures: 3, SpectralMixtures: 4})
		require.NoError(t, err)

		add, ok := gp.Covariance().(*AdditiveKernel)
		require.True(t, ok)

		members := add.Kernels()
		require.Len(t, members, 2)

		cmk, ok := members[0].(*CauchyMixtureKernel)
		require.True(t, ok)
		assert.Equal(t, 3, cmk.NumMixtures())
		assert.Equal(t, 2, cmk.ARDDims())

		sm, ok := members[1].(*SpectralMixtureKernel)
		require.True(t, ok)
		assert.Equal(t, 4, sm.NumMixtures())
		assert.Equal(t, 2, sm.ARDDims())
	})

	t.Run("cauchy only", func(t *testing.T) {
		gp, err := NewSingleTaskGP(sinTrainingSet(6, 1), SpectralMixtureSpec{CauchyMixtures: 3})
		require.NoError(t, err)

		cmk, ok := gp.Covariance().(*CauchyMixtureKernel)
		require.True(t, ok)
		assert.Equal(t, 3, cmk.NumMixtures())
	})

	t.Run("no components", func(t *testing.T) {
		_, err := NewSingleTaskGP(sinTrainingSet(6, 1), SpectralMixtureSpec{})
		assert.ErrorIs(t, err, ErrInvalidMixtureCount)
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := NewSingleTaskGP(sinTrainingSet(6, 1), SpectralMixtureSpec{CauchyMixtures: -1, SpectralMixtures: 2})
		assert.ErrorIs(t, err, ErrInvalidMixtureCount)
	})
}

func TestAdaptiveKernelSeededWithRawInputs(t *testing.T) {
	// Inputs well outside the unit cube, normalized for the kernel.
	x := unitInputs(rand.New(rand.NewSource(7)), 20, 2)
	x.Scale(10, x)

	train := TrainingSet{X: NewTensor(x), Y: NewTensor(sinTargets(x, 1))}

	gp, err := NewSingleTaskGP(train, AdaptiveSpec{}, WithInputTransform(NewNormalize(2)))
	require.NoError(t, err)

	ada, ok := gp.Covariance().(*AdaptiveKernel)
	require.True(t, ok)

	members := ada.Kernels()
	require.Len(t, members, 4)
	assert.IsType(t, &RBFKernel{}, members[0])
	assert.IsType(t, &MaternKernel{}, members[1])
	assert.IsType(t, &LinearKernel{}, members[2])
	assert.IsType(t, &RQKernel{}, members[3])
	assert.Equal(t, 20.0, members[3].(*RQKernel).Lengthscale().Value(0))

	// Seeded with inputs that did not go through the input transform.
	seeded := ada.TrainInputs()
	require.Len(t, seeded, 1)
	assert.True(t, mat.Equal(x, seeded[0]))
	assert.True(t, mat.Equal(gp.TrainTargets()[0], ada.TrainTargets()[0]))

	var sum float64
	for _, w := range ada.Weights().Values(0) {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}

	assert.InDelta(t, 1, sum, 1e-9)

	// No scaling diagnostic: the normalized inputs are in the unit cube.
	assert.Empty(t, gp.Diagnostics())
}

func TestNewSingleTaskGPIdempotent(t *testing.T) {
	for _, spec := range []KernelSpec{
		RBFSpec{},
		SpectralMixtureSpec{CauchyMixtures: 2, SpectralMixtures: 3},
		SpectralDeltaSpec{},
		AdaptiveSpec{},
	} {
		t.Run(spec.Tag(), func(t *testing.T) {
			a, err := NewSingleTaskGP(sinTrainingSet(8, 1), spec)
			require.NoError(t, err)

			b, err := NewSingleTaskGP(sinTrainingSet(8, 1), spec)
			require.NoError(t, err)

			assert.Equal(t, a.Covariance().Name(), b.Covariance().Name())

			pa, pb := a.Covariance().Parameters(), b.Covariance().Parameters()
			require.Len(t, pb, len(pa))

			for i := range pa {
				assert.Equal(t, pa[i].Name, pb[i].Name)
				assert.Equal(t, pa[i].Shape(), pb[i].Shape())
				assert.Equal(t, pa[i].BatchShape(), pb[i].BatchShape())
				assert.Equal(t, pa[i].Data(), pb[i].Data())
			}
		})
	}
}

func TestOutcomeTransformChoice(t *testing.T) {
	train := sinTrainingSet(9, 1)
	raw := mat.Col(nil, 0, train.Y.Matrix(0))

	t.Run("default standardizes", func(t *testing.T) {
		gp, err := NewSingleTaskGP(train, RBFSpec{})
		require.NoError(t, err)

		assert.IsType(t, &Standardize{}, gp.OutcomeTransform())

		mean, std := stat.MeanStdDev(gp.TrainTargets()[0].RawVector().Data, nil)
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, std, 1e-9)
	})

	t.Run("explicit none keeps raw targets", func(t *testing.T) {
		gp, err := NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(NoOutcomeTransform()))
		require.NoError(t, err)

		assert.Nil(t, gp.OutcomeTransform())
		assert.Equal(t, raw, gp.TrainTargets()[0].RawVector().Data)
	})

	t.Run("custom transform", func(t *testing.T) {
		s := NewStandardize(1, nil)

		gp, err := NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(CustomOutcomeTransform(s)))
		require.NoError(t, err)

		assert.Same(t, s, gp.OutcomeTransform())
		assert.Len(t, s.Means(), 1)
	})
}

func TestEndToEndForward(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(10, 1), RBFSpec{})
	require.NoError(t, err)

	dists, err := gp.Forward(mat.NewDense(1, 2, []float64{0.5, 0.5}))
	require.NoError(t, err)
	require.Len(t, dists, 1)

	d := dists[0]
	require.Equal(t, 1, d.Len())

	// Prior of a zero constant mean and a unit-variance RBF kernel.
	assert.Equal(t, 0.0, d.Mean.AtVec(0))
	assert.InDelta(t, 1, d.Variance()[0], 1e-12)
}

func TestForwardErrors(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(10, 1), RBFSpec{})
	require.NoError(t, err)

	_, err = gp.Forward(mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3}))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = gp.Forward(nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestMultiOutputBatching(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(11, 2), Matern52Spec{})
	require.NoError(t, err)

	assert.Equal(t, 2, gp.NumOutputs())
	assert.Equal(t, []int{}, gp.InputBatchShape())
	assert.Equal(t, []int{2}, gp.AugmentedBatchShape())
	assert.Len(t, gp.TrainTargets(), 2)
	assert.Len(t, gp.TrainInputs(), 2)

	// Every sub-component allocates one set per output.
	mean, ok := gp.Mean().(*ConstantMean)
	require.True(t, ok)
	assert.Equal(t, []int{2}, mean.Constant().BatchShape())

	noise := gp.Likelihood().(*GaussianLikelihood).NoiseParameter()
	assert.Equal(t, []int{2}, noise.BatchShape())

	ls := gp.Covariance().(*MaternKernel).Lengthscale()
	assert.Equal(t, []int{2}, ls.BatchShape())

	dists, err := gp.Forward(mat.NewDense(3, 2, nil))
	require.NoError(t, err)
	assert.Len(t, dists, 2)
}

func TestBatchedInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(12))

	xs := []*mat.Dense{unitInputs(rng, 10, 2), unitInputs(rng, 10, 2), unitInputs(rng, 10, 2)}
	ys := make([]*mat.Dense, len(xs))

	for i, x := range xs {
		ys[i] = sinTargets(x, 2)
	}

	x, err := NewBatchTensor([]int{3}, xs...)
	require.NoError(t, err)

	y, err := NewBatchTensor([]int{3}, ys...)
	require.NoError(t, err)

	gp, err := NewSingleTaskGP(TrainingSet{X: x, Y: y}, RBFSpec{}, WithOutcomeTransform(NoOutcomeTransform()))
	require.NoError(t, err)

	assert.Equal(t, []int{3}, gp.InputBatchShape())
	assert.Equal(t, []int{3, 2}, gp.AugmentedBatchShape())

	// Augmented index = batch * outputs + output.
	targets := gp.TrainTargets()
	require.Len(t, targets, 6)
	assert.Equal(t, mat.Col(nil, 1, ys[2]), targets[5].RawVector().Data)
	assert.True(t, mat.Equal(xs[2], gp.TrainInputs()[5]))
}

func TestFixedNoiseLikelihood(t *testing.T) {
	train := sinTrainingSet(13, 1)
	train.Yvar = NewTensor(filled(20, 1, 0.2))

	t.Run("raw", func(t *testing.T) {
		gp, err := NewSingleTaskGP(train, RBFSpec{}, WithOutcomeTransform(NoOutcomeTransform()))
		require.NoError(t, err)

		l, ok := gp.Likelihood().(*FixedNoiseGaussianLikelihood)
		require.True(t, ok)
		assert.True(t, l.FixedNoise())

		for _, v := range l.Noise(0, 20) {
			assert.Equal(t, 0.2, v)
		}

		_, inferred := gp.BatchSubsetting().Dim(SubsetLikelihoodNoise)
		assert.False(t, inferred)
	})

	t.Run("standardized", func(t *testing.T) {
		gp, err := NewSingleTaskGP(train, RBFSpec{})
		require.NoError(t, err)

		std := gp.OutcomeTransform().(*Standardize).Stds()[0]
		assert.InDelta(t, 0.2/(std*std), gp.Likelihood().Noise(0, 20)[0], 1e-12)
	})
}

func TestCustomComponents(t *testing.T) {
	l := NewGaussianLikelihood(nil)
	m := NewConstantMean(nil)
	k := NewLinearKernel()

	// The kernel spec is ignored when a covariance is supplied.
	gp, err := NewSingleTaskGP(sinTrainingSet(14, 1), nil,
		WithLikelihood(l),
		WithMean(m),
		WithCovariance(k),
	)
	require.NoError(t, err)

	assert.True(t, gp.HasCustomLikelihood())
	assert.Same(t, l, gp.Likelihood())
	assert.Same(t, m, gp.Mean())
	assert.Same(t, k, gp.Covariance())

	_, ok := gp.BatchSubsetting().Dim(SubsetCovarianceLengthscale)
	assert.False(t, ok)

	assert.Len(t, gp.Parameters(), 3)
}

func TestUnknownKernelWithoutOverride(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(14, 1), nil)
	assert.ErrorIs(t, err, ErrUnknownKernel)
	assert.Nil(t, gp)
}

func TestBatchSubsetting(t *testing.T) {
	gp, err := NewSingleTaskGP(sinTrainingSet(15, 1), RBFSpec{})
	require.NoError(t, err)

	assert.Equal(t, []SubsetEntry{
		{Path: SubsetMeanConstant, Dim: -1},
		{Path: SubsetCovarianceLengthscale, Dim: -3},
		{Path: SubsetLikelihoodNoise, Dim: -2},
	}, gp.BatchSubsetting().Entries())

	gp, err = NewSingleTaskGP(sinTrainingSet(15, 1), SpectralMixtureSpec{SpectralMixtures: 2})
	require.NoError(t, err)

	_, ok := gp.BatchSubsetting().Dim(SubsetCovarianceLengthscale)
	assert.False(t, ok)

	dim, ok := gp.BatchSubsetting().Dim(SubsetMeanConstant)
	assert.True(t, ok)
	assert.Equal(t, -1, dim)
}

func TestScalingDiagnostics(t *testing.T) {
	x := unitInputs(rand.New(rand.NewSource(16)), 20, 2)
	x.Scale(10, x)

	train := TrainingSet{X: NewTensor(x), Y: NewTensor(sinTargets(x, 1))}

	t.Run("inputs outside the unit cube", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)

		gp, err := NewSingleTaskGP(train, RBFSpec{}, WithLogger(zap.New(core)))
		require.NoError(t, err)

		diags := gp.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, DiagnosticInputScaling, diags[0].Kind)
		assert.Equal(t, 1, logs.FilterMessageSnippet("unit cube").Len())
	})

	t.Run("ignored dims", func(t *testing.T) {
		gp, err := NewSingleTaskGP(train, RBFSpec{}, WithIgnoreScalingDims(0, 1))
		require.NoError(t, err)
		assert.Empty(t, gp.Diagnostics())
	})

	t.Run("unstandardized outcomes", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)

		gp, err := NewSingleTaskGP(sinTrainingSet(16, 1), RBFSpec{},
			WithOutcomeTransform(NoOutcomeTransform()),
			WithLogger(zap.New(core)),
		)
		require.NoError(t, err)

		diags := gp.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, DiagnosticStandardization, diags[0].Kind)
		assert.Equal(t, 1, logs.FilterMessageSnippet("not standardized").Len())
	})
}

func TestInputTransformRunsWithoutGrad(t *testing.T) {
	tr := newAppendFeature()

	_, err := NewSingleTaskGP(sinTrainingSet(17, 1), RBFSpec{}, WithInputTransform(tr))
	require.NoError(t, err)

	require.NotEmpty(t, tr.sawRequiresGrad)
	assert.False(t, tr.sawRequiresGrad[0])
	assert.True(t, tr.state.RequiresGrad)

	// Released on failure too.
	failing := newAppendFeature()
	failing.err = errTransformFailed

	gp, err := NewSingleTaskGP(sinTrainingSet(17, 1), RBFSpec{}, WithInputTransform(failing))
	assert.ErrorIs(t, err, errTransformFailed)
	assert.Nil(t, gp)
	assert.True(t, failing.state.RequiresGrad)
}

func TestOptionConstructorsPanicOnNil(t *testing.T) {
	assert.Panics(t, func() { WithLikelihood(nil) })
	assert.Panics(t, func() { WithMean(nil) })
	assert.Panics(t, func() { WithCovariance(nil) })
	assert.Panics(t, func() { WithInputTransform(nil) })
	assert.Panics(t, func() { WithLogger(nil) })
	assert.Panics(t, func() { WithIgnoreScalingDims(-1) })
	assert.Panics(t, func() { CustomOutcomeTransform(nil) })
}
