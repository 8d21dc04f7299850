package smkgp

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scalingTolerance is how far inputs may leave the unit cube, and outcomes
// may deviate from zero mean / unit variance, before a diagnostic is raised.
const scalingTolerance = 1e-2

// validateTensorArgs checks that x, y and the optional yvar agree on batch
// shape and row count, and that yvar has exactly y's shape.
func validateTensorArgs(x, y, yvar *Tensor) error {
	if x.Rows() == 0 || x.Cols() == 0 {
		return fmt.Errorf("inputs: %w", ErrEmptyData)
	}

	if y.Rows() == 0 || y.Cols() == 0 {
		return fmt.Errorf("targets: %w", ErrEmptyData)
	}

	if !slices.Equal(x.BatchShape(), y.BatchShape()) {
		return fmt.Errorf("inputs have batch shape %v, targets %v: %w", x.BatchShape(), y.BatchShape(), ErrShapeMismatch)
	}

	if x.Rows() != y.Rows() {
		return fmt.Errorf("inputs have %d rows, targets %d: %w", x.Rows(), y.Rows(), ErrShapeMismatch)
	}

	if yvar == nil {
		return nil
	}

	if !slices.Equal(yvar.BatchShape(), y.BatchShape()) || yvar.Rows() != y.Rows() || yvar.Cols() != y.Cols() {
		return fmt.Errorf("noise is %v x %dx%d, targets %v x %dx%d: %w",
			yvar.BatchShape(), yvar.Rows(), yvar.Cols(), y.BatchShape(), y.Rows(), y.Cols(), ErrShapeMismatch)
	}

	return nil
}

// validateNoise checks that every observed noise variance is non-negative.
func validateNoise(yvar *Tensor) error {
	if yvar == nil {
		return nil
	}

	var err error

	yvar.Each(func(b, i, j int, v float64) bool {
		if v < 0 {
			err = fmt.Errorf("batch %d, observation %d, output %d has variance %v: %w", b, i, j, v, ErrInvalidNoise)

			return false
		}

		return true
	})

	return err
}

// validateInputScaling checks the data the model trains on. NaNs and
// negative noise are fatal; inputs outside the unit cube and unstandardized
// outcomes only produce diagnostics. Features listed in ignoreDims are not
// checked for scaling.
func validateInputScaling(x, y, yvar *Tensor, ignoreDims []int) ([]Diagnostic, error) {
	if x.HasNaN() {
		return nil, fmt.Errorf("inputs: %w", ErrNaN)
	}

	if y.HasNaN() {
		return nil, fmt.Errorf("targets: %w", ErrNaN)
	}

	if err := validateNoise(yvar); err != nil {
		return nil, err
	}

	var diags []Diagnostic

	if d, ok := checkMinMaxScaling(x, ignoreDims); !ok {
		diags = append(diags, d)
	}

	if d, ok := checkStandardization(y); !ok {
		diags = append(diags, d)
	}

	return diags, nil
}

func checkMinMaxScaling(x *Tensor, ignoreDims []int) (Diagnostic, bool) {
	ok := true

	x.Each(func(_, _, j int, v float64) bool {
		if slices.Contains(ignoreDims, j) {
			return true
		}

		ok = v >= -scalingTolerance && v <= 1+scalingTolerance

		return ok
	})

	if ok {
		return Diagnostic{}, true
	}

	return Diagnostic{
		Kind: DiagnosticInputScaling,
		Message: "Data (input features) is not contained to the unit cube. " +
			"Please consider min-max scaling the input data.",
	}, false
}

func checkStandardization(y *Tensor) (Diagnostic, bool) {
	if y.Rows() < 2 {
		return Diagnostic{}, true
	}

	var worstMean, worstStd float64

	for b := 0; b < y.BatchSize(); b++ {
		for j := 0; j < y.Cols(); j++ {
			mean, std := stat.MeanStdDev(mat.Col(nil, j, y.Matrix(b)), nil)
			worstMean = math.Max(worstMean, math.Abs(mean))
			worstStd = math.Max(worstStd, math.Abs(std-1))
		}
	}

	if worstMean <= scalingTolerance && worstStd <= scalingTolerance {
		return Diagnostic{}, true
	}

	return Diagnostic{
		Kind: DiagnosticStandardization,
		Message: fmt.Sprintf("Data (outcome observations) is not standardized "+
			"(max |mean| = %.4g, max |std - 1| = %.4g). Please consider scaling the input to zero mean and unit variance.",
			worstMean, worstStd),
	}, false
}
