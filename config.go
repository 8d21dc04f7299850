package smkgp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Outcome transform modes accepted by Config.
const (
	OutcomeModeDefault = "default"
	OutcomeModeNone    = "none"
)

// Config holds the declarative part of a model build: which kernel, how to
// treat outcomes, and how to seed random initialisation. Components that are
// objects (custom likelihoods, transforms, loggers) are passed as options.
//
// Usage example:
//
//	cfg, err := LoadConfig("model.yaml")
//	if err != nil {
//	    return err
//	}
//
//	spec, err := cfg.KernelSpec()
//	if err != nil {
//	    return err
//	}
//
//	gp, err := NewSingleTaskGP(train, spec, append(cfg.Options(), WithLogger(logger))...)
//
// Example YAML:
//
//	kernel: smk
//	mixture_count_1: 3
//	mixture_count_2: 4
//	outcome_transform: default
//	ignore_scaling_dims: [2]
//	seed: 42
type Config struct {
	// Kernel is the symbolic kernel tag: rbf, mat52, rq, pe, smk, sdk, sinc
	// or ada.
	Kernel string `yaml:"kernel"`

	// MixtureCount1 is the number of Cauchy components for smk. Zero is unset.
	MixtureCount1 int `yaml:"mixture_count_1"`

	// MixtureCount2 is the number of Gaussian components for smk. Zero is
	// unset.
	MixtureCount2 int `yaml:"mixture_count_2"`

	// OutcomeTransform is "default" (standardize) or "none".
	OutcomeTransform string `yaml:"outcome_transform"`

	// IgnoreScalingDims lists feature indices exempt from the unit-cube
	// check.
	IgnoreScalingDims []int `yaml:"ignore_scaling_dims"`

	// Seed seeds random hyperparameter initialisation.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns a default configuration: an RBF kernel on
// standardized outcomes.
func DefaultConfig() Config {
	return Config{
		Kernel:           KernelRBF,
		OutcomeTransform: OutcomeModeDefault,
	}
}

// LoadConfig reads and validates a Config from a YAML file. Fields missing
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig reads and validates a Config from YAML. Unknown fields are
// rejected; an empty document yields DefaultConfig.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every field maps to a build option.
func (c Config) Validate() error {
	if _, err := c.KernelSpec(); err != nil {
		return err
	}

	if c.MixtureCount1 < 0 || c.MixtureCount2 < 0 {
		return fmt.Errorf("%w: mixture counts %d, %d: %w", ErrInvalidConfig, c.MixtureCount1, c.MixtureCount2, ErrInvalidMixtureCount)
	}

	switch c.OutcomeTransform {
	case OutcomeModeDefault, OutcomeModeNone, "":
	default:
		return fmt.Errorf("%w: outcome_transform %q", ErrInvalidConfig, c.OutcomeTransform)
	}

	for _, d := range c.IgnoreScalingDims {
		if d < 0 {
			return fmt.Errorf("%w: ignore_scaling_dims %v", ErrInvalidConfig, c.IgnoreScalingDims)
		}
	}

	return nil
}

// KernelSpec parses the kernel tag and mixture counts.
func (c Config) KernelSpec() (KernelSpec, error) {
	return ParseKernelSpec(c.Kernel, c.MixtureCount1, c.MixtureCount2)
}

// Options maps the config onto build options. Call Validate first.
func (c Config) Options() []Option {
	opts := []Option{WithSeed(c.Seed)}

	if c.OutcomeTransform == OutcomeModeNone {
		opts = append(opts, WithOutcomeTransform(NoOutcomeTransform()))
	}

	if len(c.IgnoreScalingDims) > 0 {
		opts = append(opts, WithIgnoreScalingDims(c.IgnoreScalingDims...))
	}

	return opts
}
