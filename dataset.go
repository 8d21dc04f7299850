package smkgp

import (
	"fmt"

	"go.uber.org/zap"
)

// taskFeatureDeprecation is raised when FromDataset is given a task feature.
const taskFeatureDeprecation = "task_feature is deprecated and will be ignored. In the future, this will be an error."

// SupervisedDataset is a pre-packaged set of observations with optional
// feature and outcome names.
type SupervisedDataset struct {
	X    *Tensor
	Y    *Tensor
	Yvar *Tensor

	// FeatureNames, when set, has one name per input feature.
	FeatureNames []string

	// OutcomeNames, when set, has one name per output.
	OutcomeNames []string
}

// Validate checks the dataset's shapes and names.
func (ds *SupervisedDataset) Validate() error {
	if ds == nil || ds.X == nil || ds.Y == nil {
		return fmt.Errorf("dataset: %w", ErrEmptyData)
	}

	if err := validateTensorArgs(ds.X, ds.Y, ds.Yvar); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}

	if ds.FeatureNames != nil && len(ds.FeatureNames) != ds.X.Cols() {
		return fmt.Errorf("dataset has %d features and %d feature names: %w", ds.X.Cols(), len(ds.FeatureNames), ErrShapeMismatch)
	}

	if ds.OutcomeNames != nil && len(ds.OutcomeNames) != ds.Y.Cols() {
		return fmt.Errorf("dataset has %d outcomes and %d outcome names: %w", ds.Y.Cols(), len(ds.OutcomeNames), ErrShapeMismatch)
	}

	return nil
}

// ConstructInputs unpacks a dataset into the training set NewSingleTaskGP
// takes. A task feature set with WithTaskFeature is ignored; the returned
// diagnostics then carry a deprecation notice, which is also logged.
func ConstructInputs(ds *SupervisedDataset, opts ...Option) (TrainingSet, []Diagnostic, error) {
	if err := ds.Validate(); err != nil {
		return TrainingSet{}, nil, err
	}

	cfg := newBuildConfig(opts)

	var diags []Diagnostic

	if cfg.taskFeature != nil {
		d := Diagnostic{Kind: DiagnosticDeprecation, Message: taskFeatureDeprecation}
		diags = append(diags, d)

		cfg.logger.Named("smkgp").Warn(d.Message,
			zap.Stringer("kind", d.Kind),
			zap.Int("task_feature", *cfg.taskFeature),
		)
	}

	return TrainingSet{X: ds.X, Y: ds.Y, Yvar: ds.Yvar}, diags, nil
}

// FromDataset builds a model from a dataset. It is ConstructInputs followed
// by NewSingleTaskGP with the same options; deprecation diagnostics are kept
// on the model.
func FromDataset(ds *SupervisedDataset, kernel KernelSpec, opts ...Option) (*SingleTaskGP, error) {
	train, diags, err := ConstructInputs(ds, opts...)
	if err != nil {
		return nil, err
	}

	gp, err := NewSingleTaskGP(train, kernel, opts...)
	if err != nil {
		return nil, err
	}

	gp.diagnostics = append(diags, gp.diagnostics...)

	return gp, nil
}
