// Package series implements EmissionDistSeries (C4): the per-region
// collection of EmissionDists that enforces ParameterBinding and runs
// the bulk M-step across every state.
package series

import (
	"math"
	"sync"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/emission"
	"github.com/flagger-go/covhmm/track"
)

// Series is one region's EmissionDistSeries: one EmissionDist per
// state, a binding table, and a count-data histogram per state for the
// alpha==0 fast path (§3, §4.4).
type Series struct {
	cfg     config.EmissionConfig
	ss      *track.StateSet
	dists   []emission.Dist
	binding *emission.Binding

	mu   sync.Mutex
	hist [][]float64 // hist[state][coverage] = merged weight
}

// New builds a Series from one Dist per state (indexed by track.State)
// and a binding table.
func New(cfg config.EmissionConfig, ss *track.StateSet, dists []emission.Dist, binding *emission.Binding) *Series {
	hist := make([][]float64, ss.N())
	for s := range hist {
		hist[s] = make([]float64, cfg.MaxCoverage+1)
	}
	return &Series{cfg: cfg, ss: ss, dists: dists, binding: binding, hist: hist}
}

// Dist returns the EmissionDist bound to state s.
func (s *Series) Dist(st track.State) emission.Dist { return s.dists[st] }

// States returns the state set this series is indexed by.
func (s *Series) States() *track.StateSet { return s.ss }

// NewLocalHistogram allocates a per-task-local histogram with the same
// shape as the shared one, built without locking inside one chunk's
// E-step and later folded in via MergeHistogram.
func (s *Series) NewLocalHistogram() [][]float64 {
	local := make([][]float64, s.ss.N())
	for i := range local {
		local[i] = make([]float64, s.cfg.MaxCoverage+1)
	}
	return local
}

// MergeHistogram folds a completed chunk task's local histogram into
// the shared one under a lock — the only blocking operation in the
// alpha==0 fast path (§5).
func (s *Series) MergeHistogram(local [][]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for st, arr := range local {
		dst := s.hist[st]
		for x, w := range arr {
			dst[x] += w
		}
	}
}

// ResetEstimators zeroes every Dist's estimators and the shared
// histogram, at the start of each EM iteration.
func (s *Series) ResetEstimators() {
	for _, d := range s.dists {
		if d != nil {
			d.ResetEstimators()
		}
	}
	s.mu.Lock()
	for _, arr := range s.hist {
		for i := range arr {
			arr[i] = 0
		}
	}
	s.mu.Unlock()
}

// ApplyHistogram feeds the merged histogram into each dist's
// AccumulateCount, completing the alpha==0 fast path's E-step
// contribution (§4.4, §5 — semantically equivalent to the explicit
// per-observation path up to summation order).
func (s *Series) ApplyHistogram() {
	for st, arr := range s.hist {
		d := s.dists[st]
		if d == nil {
			continue
		}
		for x, w := range arr {
			if w > 0 {
				d.AccumulateCount(x, w)
			}
		}
	}
}

func withinTol(old, newVal, tol float64) bool {
	if old == 0 {
		return newVal == 0
	}
	return math.Abs(newVal/old-1) < tol
}

// EstimateParameters runs the bound-parameter and independent-parameter
// M-step (§4.4): bound cells are scanned per (kind), accumulated into
// one shared estimate, and redistributed as value = bound*coef;
// independent cells read their own estimator directly. A parameter is
// left unchanged when its denominator doesn't exceed
// MinCountForParameterUpdate. Convergence holds when every updated
// parameter moved by less than ConvergenceTol. After the round, NB
// digamma tables are rebuilt and TruncExp's b is re-tied to HAP's mean.
func (s *Series) EstimateParameters() bool {
	converged := true
	kinds := []emission.ParameterKind{emission.ParamMean, emission.ParamVar, emission.ParamWeight, emission.ParamLambda, emission.ParamTheta}

	boundCells := make(map[emission.StateComponent]bool)
	for _, kind := range kinds {
		group := s.binding.Group(kind)
		if len(group) == 0 {
			continue
		}
		var numSum, denSum float64
		type cell struct {
			sc   emission.StateComponent
			coef float64
		}
		var cells []cell
		for sc, coef := range group {
			if coef == 0 {
				continue
			}
			d := s.dists[sc.State]
			if d == nil {
				continue
			}
			est := d.EstimatorFor(kind, sc.Component)
			if est == nil {
				continue
			}
			numSum += est.Numerator(0) / coef
			denSum += est.Denominator(0)
			cells = append(cells, cell{sc, coef})
			boundCells[sc] = true
		}
		if denSum <= s.cfg.MinCountForParameterUpdate || len(cells) == 0 {
			continue
		}
		bound := numSum / denSum
		for _, c := range cells {
			d := s.dists[c.sc.State]
			old := d.Parameter(kind, c.sc.Component)
			newVal := bound * c.coef
			d.SetParameter(kind, c.sc.Component, newVal)
			if !withinTol(old, newVal, s.cfg.ConvergenceTol) {
				converged = false
			}
		}
	}

	for st, d := range s.dists {
		if d == nil {
			continue
		}
		for _, ref := range d.IterParameters() {
			sc := emission.StateComponent{State: track.State(st), Component: ref.Component}
			if boundCells[sc] {
				continue
			}
			if s.binding.Coefficient(ref.Kind, sc.State, ref.Component) != 0 {
				// Bound but its group didn't clear MinCount this round.
				continue
			}
			est := d.EstimatorFor(ref.Kind, ref.Component)
			if est == nil {
				continue
			}
			idx := d.EstimatorIndex(ref.Kind, ref.Component)
			if !est.HasSupport(idx, s.cfg.MinCountForParameterUpdate) {
				continue
			}
			old := d.Parameter(ref.Kind, ref.Component)
			newVal := est.Estimate(idx)
			d.SetParameter(ref.Kind, ref.Component, newVal)
			if !withinTol(old, newVal, s.cfg.ConvergenceTol) {
				converged = false
			}
		}
	}

	s.rebuildDerived()
	return converged
}

// rebuildDerived rebuilds NB digamma tables and re-ties TruncExp's b,
// using HAP component 0's mean as the reference coverage level.
func (s *Series) rebuildDerived() {
	hap, ok := s.ss.Find("HAP")
	refMean := 0.0
	if ok && s.dists[hap] != nil {
		refMean = s.dists[hap].Parameter(emission.ParamMean, 0)
		if refMean == 0 {
			refMean = s.dists[hap].Parameter(emission.ParamLambda, 0)
		}
	}
	for _, d := range s.dists {
		if d != nil {
			d.Rebuild(s.cfg, refMean)
		}
	}
}

// Feasible reports whether every state's Dist is within its domain.
func (s *Series) Feasible() bool {
	for _, d := range s.dists {
		if d != nil && !d.Feasible() {
			return false
		}
	}
	return true
}
