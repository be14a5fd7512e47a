// Package hmmcore assembles EmissionDistSeries and Transition into the
// multi-region HMM (C6), runs the per-chunk forward-backward E-step
// (C7), and drives the EM iteration loop with optional SQUAREM
// acceleration (C8).
package hmmcore

import (
	"fmt"
	"sync/atomic"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/emission"
	"github.com/flagger-go/covhmm/series"
	"github.com/flagger-go/covhmm/track"
	"github.com/flagger-go/covhmm/transition"
)

// Region pairs one region's EmissionDistSeries with its Transition;
// HMM holds one of these per region index (§3).
type Region struct {
	Series *series.Series
	Trans  *transition.Transition
}

// HMM is the array of per-region (EmissionDistSeries, Transition)
// pairs, the shared alpha coupling matrix, the model type tag, and the
// running log-likelihood (§3). Off-diagonal alpha entries are zero in
// the baseline model: only a state's self-transition may carry AR
// coupling toward the previous observation.
type HMM struct {
	cfg       config.Config
	regions   []Region
	n         int // number of states, same across regions
	modelType config.ModelType
	alpha     [][]float64 // (n+1)x(n+1); row/col n is the start/term cell

	generation    int64 // atomic; bumped before each EM iteration to cancel stale tasks
	logLikelihood float64
}

// New assembles an HMM from one Region per region index. Every
// region's Series must share the same state count n.
func New(cfg config.Config, regions []Region) (*HMM, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("hmmcore: at least one region required")
	}
	n := regions[0].Series.States().N()
	for i, r := range regions {
		if r.Series.States().N() != n {
			return nil, fmt.Errorf("hmmcore: region %d has %d states, want %d", i, r.Series.States().N(), n)
		}
	}
	alpha := make([][]float64, n+1)
	for i := range alpha {
		alpha[i] = make([]float64, n+1)
	}
	return &HMM{cfg: cfg, regions: regions, n: n, modelType: cfg.Emission.ModelType, alpha: alpha}, nil
}

// SetSelfAlpha sets the AR coupling coefficient for state s's
// self-transition; every off-diagonal entry stays zero (baseline model).
func (h *HMM) SetSelfAlpha(s track.State, value float64) {
	h.alpha[s][s] = value
}

// N returns the number of states per region.
func (h *HMM) N() int { return h.n }

// Regions returns the per-region (Series, Transition) pairs.
func (h *HMM) Regions() []Region { return h.regions }

// LogLikelihood returns the most recently computed global log-likelihood.
func (h *HMM) LogLikelihood() float64 { return h.logLikelihood }

// Generation returns the current iteration generation number, for
// cancellation checks inside long-running per-chunk tasks.
func (h *HMM) Generation() int64 { return atomic.LoadInt64(&h.generation) }

// BumpGeneration advances the generation counter, causing any
// in-flight task still reading the old value to discard its results.
func (h *HMM) BumpGeneration() int64 { return atomic.AddInt64(&h.generation, 1) }

// Feasible is the logical AND of every region's emission and
// transition feasibility (§4.6).
func (h *HMM) Feasible() bool {
	for _, r := range h.regions {
		if !r.Series.Feasible() || !r.Trans.Feasible() {
			return false
		}
	}
	return true
}

// Flatten produces the fixed-order parameter vector the accelerator
// operates on: region index, then state index, then each Dist's
// IterParameters order, followed by every region's transition matrix
// rows in (from, to) order. Gaussian and NegativeBinomial list their
// cells component by component (every kind of component 0, then of
// component 1, ...), so within a state the order is component-major,
// not kind-major.
func (h *HMM) Flatten() []float64 {
	var out []float64
	for _, r := range h.regions {
		ss := r.Series.States()
		for s := 0; s < ss.N(); s++ {
			d := r.Series.Dist(track.State(s))
			if d == nil {
				continue
			}
			for _, ref := range d.IterParameters() {
				out = append(out, d.Parameter(ref.Kind, ref.Component))
			}
		}
	}
	for _, r := range h.regions {
		n := r.Trans.N()
		for i := 0; i <= n; i++ {
			for j := 0; j <= n; j++ {
				out = append(out, r.Trans.Raw(i, j))
			}
		}
	}
	return out
}

// Unflatten writes a flattened vector back into every region's
// EmissionDist parameters and transition matrix cells, in the same
// order Flatten produced them.
func (h *HMM) Unflatten(vec []float64) {
	idx := 0
	for _, r := range h.regions {
		ss := r.Series.States()
		for s := 0; s < ss.N(); s++ {
			d := r.Series.Dist(track.State(s))
			if d == nil {
				continue
			}
			for _, ref := range d.IterParameters() {
				d.SetParameter(ref.Kind, ref.Component, vec[idx])
				idx++
			}
		}
	}
	for _, r := range h.regions {
		n := r.Trans.N()
		for i := 0; i <= n; i++ {
			for j := 0; j <= n; j++ {
				r.Trans.SetRaw(i, j, vec[idx])
				idx++
			}
		}
	}
}

// rebuildAllDerived refreshes every region's digamma tables / TruncExp
// truncation points after Unflatten writes new parameters directly
// (bypassing Series.EstimateParameters' own rebuild call).
func (h *HMM) rebuildAllDerived() {
	for _, r := range h.regions {
		ss := r.Series.States()
		hap, ok := ss.Find("HAP")
		refMean := 0.0
		if ok {
			if d := r.Series.Dist(hap); d != nil {
				refMean = d.Parameter(emission.ParamMean, 0)
				if refMean == 0 {
					refMean = d.Parameter(emission.ParamLambda, 0)
				}
			}
		}
		for s := 0; s < ss.N(); s++ {
			if d := r.Series.Dist(track.State(s)); d != nil {
				d.Rebuild(h.cfg.Emission, refMean)
			}
		}
	}
}
