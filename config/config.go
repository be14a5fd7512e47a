// Package config groups the immutable configuration structs consumed by
// the HMM constructor, the way sim.KVCacheConfig/BatchConfig/LatencyCoeffs
// group related parameters in the inference-sim simulator this package is
// descended from. Nothing in here is mutated after construction.
package config

import "fmt"

// ModelType selects which EmissionDist family each state's emission uses.
type ModelType int

const (
	// ModelGaussian uses a pure Gaussian mixture for every state.
	ModelGaussian ModelType = iota
	// ModelNegativeBinomial uses a Negative Binomial mixture for every state.
	ModelNegativeBinomial
	// ModelTruncExpGaussian uses a truncated-exponential ERR state and
	// Gaussian mixtures elsewhere.
	ModelTruncExpGaussian
)

func (m ModelType) String() string {
	switch m {
	case ModelGaussian:
		return "gaussian"
	case ModelNegativeBinomial:
		return "negative-binomial"
	case ModelTruncExpGaussian:
		return "truncexp-gaussian"
	default:
		return "unknown"
	}
}

// EmissionConfig groups parameters shared by every EmissionDist and bound
// by ParameterBinding across states.
type EmissionConfig struct {
	ModelType        ModelType
	MaxCoverage       int     // MAX_COV, >= 250
	NumComponents     int     // mixture components per state, >= 1
	NumCollapseStates int     // K: number of COL_k states, collapse multiplicities 2..K+1
	IncludeMisjoin    bool    // whether MSJ is admissible

	ErrCompBindingCoef       float64 // default binding ratio for ERR vs HAP (0.1)
	ExpTruncPointCovFraction float64 // b = mean(HAP, comp 0) * this fraction

	MinCountForParameterUpdate float64 // parameter frozen unless its denominator exceeds this
	GoldenSectionTol           float64 // tolerance for TruncExp lambda MLE search
	ConvergenceTol             float64 // |new/old - 1| < tol per updated parameter
}

// TransitionConfig groups parameters for Transition construction and gating.
type TransitionConfig struct {
	TerminationProb     float64 // default 1e-4
	DiagonalProb        float64 // symmetric-biased construction diagonal mass
	MaxHighMapqRatioDup  float64 // DUP invalid above this
	MinHighMapqRatioCol  float64 // COL invalid below this
	MinHighClipRatioMsj  float64 // MSJ invalid below this
}

// EMConfig groups parameters for the forward-backward / M-step driver.
type EMConfig struct {
	MaxIterations         int
	WorkerPoolSize        int     // bounded worker pool size for per-chunk tasks
	MeanReadLength         float64 // used with MinReadFractionAtEnds to size the beta taper
	MinReadFractionAtEnds float64
	UseAccelerator        bool // wrap every 3 EM iterations with SQUAREM
}

// Config is the full immutable configuration passed into the HMM
// constructor. Global state is avoided; every tunable lives here.
type Config struct {
	Emission   EmissionConfig
	Transition TransitionConfig
	EM         EMConfig
	NumRegions int
}

// Default returns the baseline configuration used when no overrides are
// supplied, mirroring the magic-default style of sim/config.go.
func Default() Config {
	return Config{
		Emission: EmissionConfig{
			ModelType:                  ModelGaussian,
			MaxCoverage:                250,
			NumComponents:              1,
			NumCollapseStates:          2,
			IncludeMisjoin:             true,
			ErrCompBindingCoef:         0.1,
			ExpTruncPointCovFraction:   1.0,
			MinCountForParameterUpdate: 0,
			GoldenSectionTol:           1e-6,
			ConvergenceTol:             1e-4,
		},
		Transition: TransitionConfig{
			TerminationProb:     1e-4,
			DiagonalProb:        0.99,
			MaxHighMapqRatioDup: 0.2,
			MinHighMapqRatioCol: 0.6,
			MinHighClipRatioMsj: 0.3,
		},
		EM: EMConfig{
			MaxIterations:         100,
			WorkerPoolSize:        4,
			MeanReadLength:        150,
			MinReadFractionAtEnds: 1.0,
			UseAccelerator:        true,
		},
		NumRegions: 1,
	}
}

// Validate reports configuration-class errors (§7): missing or
// out-of-domain settings that must fail fast rather than produce silent
// garbage downstream.
func (c Config) Validate() error {
	if c.Emission.MaxCoverage < 250 {
		return fmt.Errorf("config: MaxCoverage must be >= 250, got %d", c.Emission.MaxCoverage)
	}
	if c.Emission.NumComponents < 1 {
		return fmt.Errorf("config: NumComponents must be >= 1, got %d", c.Emission.NumComponents)
	}
	if c.Emission.NumCollapseStates < 1 {
		return fmt.Errorf("config: NumCollapseStates must be >= 1, got %d", c.Emission.NumCollapseStates)
	}
	if c.Transition.TerminationProb <= 0 || c.Transition.TerminationProb >= 1 {
		return fmt.Errorf("config: TerminationProb must be in (0,1), got %v", c.Transition.TerminationProb)
	}
	if c.EM.WorkerPoolSize < 1 {
		return fmt.Errorf("config: WorkerPoolSize must be >= 1, got %d", c.EM.WorkerPoolSize)
	}
	if c.NumRegions < 1 {
		return fmt.Errorf("config: NumRegions must be >= 1, got %d", c.NumRegions)
	}
	return nil
}
