package emission

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// ParameterEstimator accumulates weighted sufficient statistics for one
// parameter across mixture components during the E-step (C1). It is the
// only mutable shared state touched while forward-backward tasks run
// concurrently, so increment/mergeFrom are lock-protected; reset/estimate
// run serially during the M-step.
type ParameterEstimator struct {
	mu  sync.Mutex
	num []float64
	den []float64

	// truncExpB/truncExpTol are set only for TruncatedExponential lambda
	// estimators: when non-nil-equivalent (truncExpB > 0), Estimate runs
	// the golden-section MLE of §4.2.3 instead of a plain ratio.
	truncExpB   float64
	truncExpTol float64
}

// NewParameterEstimator allocates an estimator for numComponents mixture
// components.
func NewParameterEstimator(numComponents int) *ParameterEstimator {
	return &ParameterEstimator{
		num: make([]float64, numComponents),
		den: make([]float64, numComponents),
	}
}

// NewTruncExpLambdaEstimator allocates a single-component estimator whose
// Estimate call maximizes the truncated-exponential log-likelihood via
// golden-section search on [0, b] instead of taking num/den directly
// (§4.1, §4.2.3). num/den here accumulate N = Σw·x and D = Σw.
func NewTruncExpLambdaEstimator(b, tol float64) *ParameterEstimator {
	return &ParameterEstimator{
		num:         make([]float64, 1),
		den:         make([]float64, 1),
		truncExpB:   b,
		truncExpTol: tol,
	}
}

// SetTruncationPoint re-ties b after HAP's mean moves (§4.2.3: b is
// re-tied every EM iteration, not freely estimated).
func (e *ParameterEstimator) SetTruncationPoint(b float64) {
	e.mu.Lock()
	e.truncExpB = b
	e.mu.Unlock()
}

// Increment adds num/den to component c's accumulators. Safe for
// concurrent use from multiple per-chunk E-step tasks.
func (e *ParameterEstimator) Increment(num, den float64, c int) {
	e.mu.Lock()
	e.num[c] += num
	e.den[c] += den
	e.mu.Unlock()
}

// IncrementDenominatorForAllComps adds den to every component's
// denominator and num only to component c's numerator. Used for
// mixture-weight sufficient statistics, where w_c = Σw_c / Σw_all.
func (e *ParameterEstimator) IncrementDenominatorForAllComps(num, den float64, c int) {
	e.mu.Lock()
	for i := range e.den {
		e.den[i] += den
	}
	e.num[c] += num
	e.mu.Unlock()
}

// MergeFrom folds another estimator's accumulators into this one.
// Associative and commutative: callers may fold per-chunk shards with
// any tree shape (DESIGN NOTES).
func (e *ParameterEstimator) MergeFrom(other *ParameterEstimator) {
	other.mu.Lock()
	numCopy := append([]float64(nil), other.num...)
	denCopy := append([]float64(nil), other.den...)
	other.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.num {
		e.num[i] += numCopy[i]
		e.den[i] += denCopy[i]
	}
}

// Reset zeroes both arrays, called at the start of every EM iteration.
func (e *ParameterEstimator) Reset() {
	e.mu.Lock()
	for i := range e.num {
		e.num[i] = 0
		e.den[i] = 0
	}
	e.mu.Unlock()
}

// NumComponents returns the component count this estimator was built with.
func (e *ParameterEstimator) NumComponents() int { return len(e.num) }

// Numerator returns the raw accumulated numerator for component c,
// primarily so bound-parameter scans (C4) can fold several components'
// statistics into one shared estimate without re-locking per read.
func (e *ParameterEstimator) Numerator(c int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.num[c]
}

// Denominator returns the raw accumulated denominator for component c.
func (e *ParameterEstimator) Denominator(c int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.den[c]
}

// Estimate returns num[c]/den[c], or 0 with a warning when the
// denominator is zero (estimator-starved, §7 — tolerated by leaving the
// caller's parameter unchanged rather than failing the iteration).
func (e *ParameterEstimator) Estimate(c int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.den[c] == 0 {
		logrus.Warnf("emission: estimator denominator is zero for component %d, parameter frozen", c)
		return 0
	}
	if e.truncExpB > 0 {
		return goldenSectionMaxLambda(e.num[c], e.den[c], e.truncExpB, e.truncExpTol)
	}
	return e.num[c] / e.den[c]
}

// truncExpLogLikelihood is D·ln(lambda) − D·ln(1−e^{−lambda·b}) − N·lambda,
// the objective golden-section search maximizes (§4.2.3).
func truncExpLogLikelihood(lambda, n, d, b float64) float64 {
	if lambda <= 0 {
		return math.Inf(-1)
	}
	denomTerm := 1 - math.Exp(-lambda*b)
	if denomTerm <= 0 {
		return math.Inf(-1)
	}
	return d*math.Log(lambda) - d*math.Log(denomTerm) - n*lambda
}

// goldenSectionMaxLambda maximizes truncExpLogLikelihood over [0, b]
// with tolerance tol, per §4.2.3's literal search bracket.
func goldenSectionMaxLambda(n, d, b, tol float64) float64 {
	const invPhi = 0.6180339887498949 // (sqrt(5)-1)/2

	lo, hi := 1e-9, b
	f := func(lam float64) float64 { return truncExpLogLikelihood(lam, n, d, b) }

	c := hi - invPhi*(hi-lo)
	e := lo + invPhi*(hi-lo)
	fc, fe := f(c), f(e)

	for hi-lo > tol {
		if fc > fe {
			hi = e
			e, fe = c, fc
			c = hi - invPhi*(hi-lo)
			fc = f(c)
		} else {
			lo = c
			c, fc = e, fe
			e = lo + invPhi*(hi-lo)
			fe = f(e)
		}
	}
	return (lo + hi) / 2
}

// HasSupport reports whether component c's denominator exceeds the
// configured MIN_COUNT_FOR_PARAMETER_UPDATE threshold.
func (e *ParameterEstimator) HasSupport(c int, minCount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.den[c] > minCount
}
