package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML-loadable front-end shape of Config. Field names
// are kept close to Config's so a user-supplied file maps one-to-one;
// strict KnownFields decoding means a typo'd key is a load error instead
// of a silently-ignored default, the same contract cmd/default_config.go
// enforces for inference-sim's defaults.yaml.
type FileConfig struct {
	Model                      string  `yaml:"model"`
	MaxCoverage                int     `yaml:"max_coverage"`
	NumComponents              int     `yaml:"num_components"`
	NumCollapseStates          int     `yaml:"num_collapse_states"`
	IncludeMisjoin             bool    `yaml:"include_misjoin"`
	ErrCompBindingCoef         float64 `yaml:"err_comp_binding_coef"`
	ExpTruncPointCovFraction   float64 `yaml:"exp_trunc_point_cov_fraction"`
	MinCountForParameterUpdate float64 `yaml:"min_count_for_parameter_update"`
	GoldenSectionTol           float64 `yaml:"golden_section_tol"`
	ConvergenceTol             float64 `yaml:"convergence_tol"`

	TerminationProb     float64 `yaml:"termination_prob"`
	DiagonalProb        float64 `yaml:"diagonal_prob"`
	MaxHighMapqRatioDup float64 `yaml:"max_high_mapq_ratio_dup"`
	MinHighMapqRatioCol float64 `yaml:"min_high_mapq_ratio_col"`
	MinHighClipRatioMsj float64 `yaml:"min_high_clip_ratio_msj"`

	MaxIterations         int     `yaml:"max_iterations"`
	WorkerPoolSize        int     `yaml:"worker_pool_size"`
	MeanReadLength        float64 `yaml:"mean_read_length"`
	MinReadFractionAtEnds float64 `yaml:"min_read_fraction_at_ends"`
	UseAccelerator        bool    `yaml:"use_accelerator"`

	NumRegions int `yaml:"num_regions"`
}

var modelTypeByName = map[string]ModelType{
	"gaussian":           ModelGaussian,
	"negative-binomial":  ModelNegativeBinomial,
	"truncexp-gaussian":  ModelTruncExpGaussian,
}

// LoadFile parses a YAML config file into a Config, overlaying onto
// Default() so unset sections keep their defaults. Unknown keys are a
// hard parse error (strict decoding), matching cmd/default_config.go.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	defaults := Default()
	fc := FileConfig{IncludeMisjoin: defaults.Emission.IncludeMisjoin, UseAccelerator: defaults.EM.UseAccelerator}
	if err := decoder.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("parse config YAML %q: %w", path, err)
	}

	cfg := Default()
	if fc.Model != "" {
		mt, ok := modelTypeByName[fc.Model]
		if !ok {
			return Config{}, fmt.Errorf("config: unknown model %q", fc.Model)
		}
		cfg.Emission.ModelType = mt
	}
	if fc.MaxCoverage != 0 {
		cfg.Emission.MaxCoverage = fc.MaxCoverage
	}
	if fc.NumComponents != 0 {
		cfg.Emission.NumComponents = fc.NumComponents
	}
	if fc.NumCollapseStates != 0 {
		cfg.Emission.NumCollapseStates = fc.NumCollapseStates
	}
	cfg.Emission.IncludeMisjoin = fc.IncludeMisjoin
	if fc.ErrCompBindingCoef != 0 {
		cfg.Emission.ErrCompBindingCoef = fc.ErrCompBindingCoef
	}
	if fc.ExpTruncPointCovFraction != 0 {
		cfg.Emission.ExpTruncPointCovFraction = fc.ExpTruncPointCovFraction
	}
	if fc.MinCountForParameterUpdate != 0 {
		cfg.Emission.MinCountForParameterUpdate = fc.MinCountForParameterUpdate
	}
	if fc.GoldenSectionTol != 0 {
		cfg.Emission.GoldenSectionTol = fc.GoldenSectionTol
	}
	if fc.ConvergenceTol != 0 {
		cfg.Emission.ConvergenceTol = fc.ConvergenceTol
	}
	if fc.TerminationProb != 0 {
		cfg.Transition.TerminationProb = fc.TerminationProb
	}
	if fc.DiagonalProb != 0 {
		cfg.Transition.DiagonalProb = fc.DiagonalProb
	}
	if fc.MaxHighMapqRatioDup != 0 {
		cfg.Transition.MaxHighMapqRatioDup = fc.MaxHighMapqRatioDup
	}
	if fc.MinHighMapqRatioCol != 0 {
		cfg.Transition.MinHighMapqRatioCol = fc.MinHighMapqRatioCol
	}
	if fc.MinHighClipRatioMsj != 0 {
		cfg.Transition.MinHighClipRatioMsj = fc.MinHighClipRatioMsj
	}
	if fc.MaxIterations != 0 {
		cfg.EM.MaxIterations = fc.MaxIterations
	}
	if fc.WorkerPoolSize != 0 {
		cfg.EM.WorkerPoolSize = fc.WorkerPoolSize
	}
	if fc.MeanReadLength != 0 {
		cfg.EM.MeanReadLength = fc.MeanReadLength
	}
	if fc.MinReadFractionAtEnds != 0 {
		cfg.EM.MinReadFractionAtEnds = fc.MinReadFractionAtEnds
	}
	cfg.EM.UseAccelerator = fc.UseAccelerator
	if fc.NumRegions != 0 {
		cfg.NumRegions = fc.NumRegions
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
