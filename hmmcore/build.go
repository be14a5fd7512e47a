package hmmcore

import (
	"fmt"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/emission"
	"github.com/flagger-go/covhmm/series"
	"github.com/flagger-go/covhmm/track"
	"github.com/flagger-go/covhmm/transition"
)

// NewDefault assembles a complete HMM from configuration alone: one
// region per entry in regionRefCoverage, each with a fresh
// EmissionDistSeries (states initialized at heuristic multiples of
// that region's reference coverage) and Transition (symmetric-biased,
// default validity requirements), wired together per the default
// ParameterBinding table of §4.3. This is the assembly responsibility
// of C6; callers needing custom initial parameters build Regions by
// hand and call New instead.
func NewDefault(cfg config.Config, regionRefCoverage []float64) (*HMM, error) {
	if len(regionRefCoverage) == 0 {
		return nil, fmt.Errorf("hmmcore: at least one region reference coverage required")
	}
	ss := track.NewStateSet(cfg.Emission.NumCollapseStates, cfg.Emission.IncludeMisjoin)
	req := transition.RequirementsFromConfig(cfg.Transition)

	regions := make([]Region, len(regionRefCoverage))
	for i, refCov := range regionRefCoverage {
		dists, err := buildDists(cfg.Emission, ss, refCov)
		if err != nil {
			return nil, fmt.Errorf("hmmcore: region %d: %w", i, err)
		}
		binding := emission.BuildDefault(cfg.Emission, ss)
		ser := series.New(cfg.Emission, ss, dists, binding)
		trans := transition.New(ss, req, cfg.Transition.TerminationProb, cfg.Transition.DiagonalProb)
		regions[i] = Region{Series: ser, Trans: trans}
	}

	return New(cfg, regions)
}

// buildDists constructs one EmissionDist per state, seeded at
// heuristic multiples of refCov: ERR near zero, DUP at 0.5x, HAP at
// 1x, COL_k at (k+1)x, MSJ at 1x (mirroring the DUP/HAP/COL copy-number
// semantics of GLOSSARY). NumComponents identical components are
// spread with a small spread around each state's central value so the
// mixture isn't degenerate at iteration zero.
func buildDists(cfg config.EmissionConfig, ss *track.StateSet, refCov float64) ([]emission.Dist, error) {
	n := ss.N()
	dists := make([]emission.Dist, n)

	centerFor := func(s track.State) float64 {
		switch ss.Kind(s) {
		case track.KindErr:
			return refCov * 0.05
		case track.KindDup:
			return refCov * 0.5
		case track.KindHap:
			return refCov
		case track.KindCollapse:
			return refCov * float64(ss.CollapseMultiplicity(s))
		case track.KindMisjoin:
			return refCov
		default:
			return refCov
		}
	}

	for s := track.State(0); int(s) < n; s++ {
		center := centerFor(s)
		if ss.Kind(s) == track.KindErr && cfg.ModelType == config.ModelTruncExpGaussian {
			b := center * cfg.ExpTruncPointCovFraction
			if b <= 0 {
				b = 1
			}
			lambda := 1.0
			if center > 0 {
				lambda = 1.0 / center
			}
			dists[s] = emission.NewTruncExponential(lambda, b, cfg.GoldenSectionTol)
			continue
		}

		switch cfg.ModelType {
		case config.ModelNegativeBinomial:
			thetas := make([]float64, cfg.NumComponents)
			lambdas := make([]float64, cfg.NumComponents)
			for c := 0; c < cfg.NumComponents; c++ {
				spread := 1.0 + 0.1*float64(c)
				lambdas[c] = center * spread
				thetas[c] = 0.5
			}
			dists[s] = emission.NewNegativeBinomial(cfg.MaxCoverage, thetas, lambdas)
		default:
			means := make([]float64, cfg.NumComponents)
			vars := make([]float64, cfg.NumComponents)
			for c := 0; c < cfg.NumComponents; c++ {
				spread := 1.0 + 0.1*float64(c)
				means[c] = center * spread
				if means[c] <= 0 {
					means[c] = 1
				}
				vars[c] = means[c]*0.25 + 1
			}
			dists[s] = emission.NewGaussian(means, vars)
		}
	}
	return dists, nil
}
