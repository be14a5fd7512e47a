// Package transition implements Transition (C5): a row-stochastic
// (N+1)x(N+1) matrix over the admissible states plus a start/termination
// cell, validity predicates that veto candidate states at a position,
// and a count-based M-step.
package transition

import (
	"fmt"
	"sync"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/track"
)

// Requirements groups the thresholds validity predicates gate on,
// copied out of config.TransitionConfig so Transition doesn't retain a
// pointer to caller-owned config state.
type Requirements struct {
	MaxHighMapqRatioDup float64
	MinHighMapqRatioCol float64
	MinHighClipRatioMsj float64
}

// Validity vetoes a candidate state at a specific observation (§4.5).
type Validity func(st track.State, ss *track.StateSet, obs track.Observation, req Requirements) bool

// defaultValidities implements the three named predicates: DUP invalid
// above max high-MAPQ ratio, COL invalid below min high-MAPQ ratio, MSJ
// invalid below min high-clip ratio. Every other state is always valid.
func defaultValidities(st track.State, ss *track.StateSet, obs track.Observation, req Requirements) bool {
	switch ss.Kind(st) {
	case track.KindDup:
		return obs.HighMapqRatio() <= req.MaxHighMapqRatioDup
	case track.KindCollapse:
		return obs.HighMapqRatio() >= req.MinHighMapqRatioCol
	case track.KindMisjoin:
		return obs.HighClipRatio() >= req.MinHighClipRatioMsj
	default:
		return true
	}
}

// Transition is one region's (N+1)x(N+1) matrix: rows/cols 0..N-1 are
// states, row/col N is the start/termination cell. M[i][N] is always
// terminationProb for i<N; M[N][N] is always 0 (§3).
type Transition struct {
	ss   *track.StateSet
	req  Requirements
	term float64

	n int // ss.N()
	m [][]float64

	mu      sync.Mutex
	counts  [][]float64 // raw transition counts accumulated during E-step
	pseudo  [][]float64 // pseudo-count matrix added at the M-step
}

// New builds a symmetric-biased Transition: diagonal mass d on self-
// loops, (1-d)/(N-1) spread over the remaining state-to-state cells,
// every row then scaled to sum to (1-termination); the start row (N) is
// uniform over the N states; termination column is terminationProb for
// state rows and 0 in the start row (the start row itself does not
// terminate).
func New(ss *track.StateSet, req Requirements, terminationProb, diagonalProb float64) *Transition {
	n := ss.N()
	t := &Transition{
		ss:     ss,
		req:    req,
		term:   terminationProb,
		n:      n,
		m:      newMatrix(n + 1),
		counts: newMatrix(n + 1),
		pseudo: newMatrix(n + 1),
	}
	t.initSymmetricBiased(diagonalProb)
	return t
}

// NewUniform builds a Transition with the same mass on every
// state-to-state cell, diagonal included, instead of the
// symmetric-biased diagonal weighting.
func NewUniform(ss *track.StateSet, req Requirements, terminationProb float64) *Transition {
	n := ss.N()
	t := &Transition{
		ss:     ss,
		req:    req,
		term:   terminationProb,
		n:      n,
		m:      newMatrix(n + 1),
		counts: newMatrix(n + 1),
		pseudo: newMatrix(n + 1),
	}
	t.initUniform()
	return t
}

func newMatrix(size int) [][]float64 {
	m := make([][]float64, size)
	for i := range m {
		m[i] = make([]float64, size)
	}
	return m
}

func (t *Transition) initSymmetricBiased(d float64) {
	n := t.n
	off := 0.0
	if n > 1 {
		off = (1 - d) / float64(n-1)
	}
	stateMass := 1 - t.term
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				t.m[i][j] = d * stateMass
			} else {
				t.m[i][j] = off * stateMass
			}
		}
		t.m[i][n] = t.term
	}
	t.initStartRow()
}

func (t *Transition) initUniform() {
	n := t.n
	stateMass := 1 - t.term
	share := stateMass / float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			t.m[i][j] = share
		}
		t.m[i][n] = t.term
	}
	t.initStartRow()
}

func (t *Transition) initStartRow() {
	n := t.n
	share := 1.0 / float64(n)
	for j := 0; j < n; j++ {
		t.m[n][j] = share
	}
	t.m[n][n] = 0
}

// N returns the number of admissible states (excluding the start/term cell).
func (t *Transition) N() int { return t.n }

// Raw returns M[from][to] with no validity renormalization applied;
// from/to == N addresses the start/termination cell.
func (t *Transition) Raw(from, to int) float64 { return t.m[from][to] }

// SetRaw overwrites M[from][to] directly, used by the accelerator to
// write back an extrapolated parameter vector (§4.8).
func (t *Transition) SetRaw(from, to int, value float64) { t.m[from][to] = value }

// TerminationProb returns the configured termination probability.
func (t *Transition) TerminationProb() float64 { return t.term }

// Valid reports whether candidate state st is admissible at obs.
func (t *Transition) Valid(st track.State, obs track.Observation) bool {
	return defaultValidities(st, t.ss, obs, t.req)
}

// Conditional returns P(to | from) renormalized over every state valid
// at obs (§4.5): invalid targets contribute zero, and each valid
// target's raw mass is divided by the row's total mass over valid
// targets, so the conditionals over valid targets sum to 1.
// from == N addresses the start row.
func (t *Transition) Conditional(from int, to track.State, obs track.Observation) float64 {
	if !t.Valid(to, obs) {
		return 0
	}
	sum := 0.0
	for s := track.State(0); int(s) < t.n; s++ {
		if t.Valid(s, obs) {
			sum += t.m[from][s]
		}
	}
	if sum <= 0 {
		return 0
	}
	return t.m[from][int(to)] / sum
}

// AccumulateCount adds one observed (from, to) transition count,
// thread-safe for concurrent per-chunk E-step tasks. to == N records a
// termination event, from == N a start event.
func (t *Transition) AccumulateCount(from, to int, weight float64) {
	if weight <= 0 {
		return
	}
	t.mu.Lock()
	t.counts[from][to] += weight
	t.mu.Unlock()
}

// ResetCounts zeroes the accumulated counts at the start of an EM iteration.
func (t *Transition) ResetCounts() {
	t.mu.Lock()
	for i := range t.counts {
		for j := range t.counts[i] {
			t.counts[i][j] = 0
		}
	}
	t.mu.Unlock()
}

// SetPseudoCount sets the pseudo-count added to cell (from, to) at the
// next M-step, letting callers keep sparse priors away from zero.
func (t *Transition) SetPseudoCount(from, to int, count float64) {
	t.pseudo[from][to] = count
}

// EstimateTransitionMatrix runs the count-based M-step (§4.5): raw
// counts plus the pseudo-count matrix, each state row normalized to
// (1-termination) and the start row normalized to 1. Returns whether
// every updated cell's relative change stayed below tol (the HMM
// driver folds this into its overall per-iteration convergence check).
func (t *Transition) EstimateTransitionMatrix(tol float64) bool {
	t.mu.Lock()
	counts := make([][]float64, len(t.counts))
	for i := range t.counts {
		counts[i] = append([]float64(nil), t.counts[i]...)
	}
	t.mu.Unlock()

	converged := true
	n := t.n

	for i := 0; i <= n; i++ {
		total := 0.0
		for j := 0; j < n; j++ {
			counts[i][j] += t.pseudo[i][j]
			total += counts[i][j]
		}
		if total <= 0 {
			continue
		}
		target := 1.0
		if i < n {
			target = 1 - t.term
		}
		for j := 0; j < n; j++ {
			old := t.m[i][j]
			newVal := counts[i][j] / total * target
			t.m[i][j] = newVal
			if old == 0 {
				if newVal != 0 {
					converged = false
				}
				continue
			}
			if absRatio(newVal/old-1) >= tol {
				converged = false
			}
		}
		if i < n {
			t.m[i][n] = t.term
		} else {
			t.m[i][n] = 0
		}
	}
	return converged
}

func absRatio(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Feasible reports row-stochasticity within tolerance (§8): every state
// row sums (excluding termination) to 1-termination, every state row's
// termination cell equals termination, and the start row sums to 1.
func (t *Transition) Feasible() bool {
	const tol = 1e-6
	n := t.n
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += t.m[i][j]
		}
		if absRatio(sum-(1-t.term)) > tol {
			return false
		}
		if absRatio(t.m[i][n]-t.term) > tol {
			return false
		}
	}
	sum := 0.0
	for j := 0; j <= n; j++ {
		sum += t.m[n][j]
	}
	if absRatio(sum-1) > tol {
		return false
	}
	return true
}

// Validate reports construction-time configuration errors.
func Validate(req Requirements, terminationProb float64) error {
	if terminationProb <= 0 || terminationProb >= 1 {
		return fmt.Errorf("transition: terminationProb must be in (0,1), got %v", terminationProb)
	}
	if req.MaxHighMapqRatioDup < 0 || req.MaxHighMapqRatioDup > 1 {
		return fmt.Errorf("transition: MaxHighMapqRatioDup must be in [0,1], got %v", req.MaxHighMapqRatioDup)
	}
	if req.MinHighMapqRatioCol < 0 || req.MinHighMapqRatioCol > 1 {
		return fmt.Errorf("transition: MinHighMapqRatioCol must be in [0,1], got %v", req.MinHighMapqRatioCol)
	}
	if req.MinHighClipRatioMsj < 0 || req.MinHighClipRatioMsj > 1 {
		return fmt.Errorf("transition: MinHighClipRatioMsj must be in [0,1], got %v", req.MinHighClipRatioMsj)
	}
	return nil
}

// RequirementsFromConfig copies the gating thresholds out of a
// config.TransitionConfig.
func RequirementsFromConfig(cfg config.TransitionConfig) Requirements {
	return Requirements{
		MaxHighMapqRatioDup: cfg.MaxHighMapqRatioDup,
		MinHighMapqRatioCol: cfg.MinHighMapqRatioCol,
		MinHighClipRatioMsj: cfg.MinHighClipRatioMsj,
	}
}
