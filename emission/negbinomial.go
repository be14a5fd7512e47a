package emission

import (
	"math"

	"github.com/flagger-go/covhmm/config"
)

// NegativeBinomial is a per-state mixture parameterized by (theta, lambda)
// per component, with the count parameter derived as r = -lambda/ln(theta)
// (§3, §4.2.2). A per-component digamma table digamma(r+x) for
// x in [0, MaxCov] is precomputed via the recurrence
// digamma(z+1) = digamma(z) + 1/z. SetParameter does not touch the
// tables; they are rebuilt by Rebuild, which the M-step and the
// accelerator call after lambda or theta change.
type NegativeBinomial struct {
	theta  []float64
	lambda []float64
	weight []float64
	maxCov int

	digamma [][]float64 // digamma[c][x] = digamma(r_c + x)

	lambdaEst []*ParameterEstimator
	thetaEst  []*ParameterEstimator
	// weightEst is shared across components; see Gaussian.weightEst.
	weightEst *ParameterEstimator
}

// NewNegativeBinomial builds an NB mixture with the given initial
// per-component theta/lambda, uniform weights, and precomputed digamma
// tables sized to maxCov.
func NewNegativeBinomial(maxCov int, thetas, lambdas []float64) *NegativeBinomial {
	n := len(thetas)
	nb := &NegativeBinomial{
		theta:     append([]float64(nil), thetas...),
		lambda:    append([]float64(nil), lambdas...),
		weight:    make([]float64, n),
		maxCov:    maxCov,
		digamma:   make([][]float64, n),
		lambdaEst: make([]*ParameterEstimator, n),
		thetaEst:  make([]*ParameterEstimator, n),
		weightEst: NewParameterEstimator(n),
	}
	for c := 0; c < n; c++ {
		nb.weight[c] = 1.0 / float64(n)
		nb.lambdaEst[c] = NewParameterEstimator(1)
		nb.thetaEst[c] = NewParameterEstimator(1)
		nb.rebuildDigamma(c)
	}
	return nb
}

func (nb *NegativeBinomial) Variant() VariantKind { return VariantNegativeBinomial }
func (nb *NegativeBinomial) NumComponents() int   { return len(nb.theta) }

// r derives the NB count parameter from (theta, lambda).
func (nb *NegativeBinomial) r(c int) float64 {
	return -nb.lambda[c] / math.Log(nb.theta[c])
}

func (nb *NegativeBinomial) rebuildDigamma(c int) {
	r := nb.r(c)
	table := make([]float64, nb.maxCov+1)
	table[0] = digamma(r)
	for x := 1; x <= nb.maxCov; x++ {
		z := r + float64(x-1)
		table[x] = table[x-1] + 1/z
	}
	nb.digamma[c] = table
}

// digammaAt returns digamma(r_c + x), extending the recurrence past the
// precomputed table bound if x exceeds MaxCov (defensive; should not
// happen when observations are validated against MaxCov).
func (nb *NegativeBinomial) digammaAt(c, x int) float64 {
	if x >= 0 && x < len(nb.digamma[c]) {
		return nb.digamma[c][x]
	}
	r := nb.r(c)
	return digamma(r + float64(x))
}

// digamma approximates the digamma (psi) function via the standard
// recurrence-to-asymptotic-series technique: shift the argument above 6
// using psi(x) = psi(x+1) - 1/x, then apply the asymptotic expansion.
func digamma(x float64) float64 {
	result := 0.0
	for x < 6 {
		result -= 1 / x
		x++
	}
	f := 1 / (x * x)
	result += math.Log(x) - 0.5/x -
		f*(1.0/12-f*(1.0/120-f*(1.0/252-f*(1.0/240-f*(1.0/132)))))
	return result
}

func negBinomLogPMF(x int, r, theta float64) float64 {
	xf := float64(x)
	lg, _ := math.Lgamma(xf + r)
	lgr, _ := math.Lgamma(r)
	lgx1, _ := math.Lgamma(xf + 1)
	return lg - lgr - lgx1 + r*math.Log(theta) + xf*math.Log(1-theta)
}

func (nb *NegativeBinomial) componentProb(x int, c int, beta float64) float64 {
	r := nb.r(c) * beta
	theta := nb.theta[c]
	if r <= 0 || theta <= 0 || theta >= 1 {
		return 0
	}
	return math.Exp(negBinomLogPMF(x, r, theta))
}

// Prob ignores alpha: the NB family has no mean-shift AR coupling in
// the baseline model (the HMM's alpha matrix off-diagonal/NB entries
// are zero), matching the alpha==0 fast path assumption of §4.4/DESIGN
// NOTES for this variant. beta rescales r (equivalently the mean).
func (nb *NegativeBinomial) Prob(x, _ int, _ float64, beta float64) float64 {
	total := 0.0
	for c := range nb.theta {
		total += nb.weight[c] * nb.componentProb(x, c, beta)
	}
	return clampProb(total)
}

// Accumulate implements the §4.2.2 M-step sufficient statistics:
//
//	delta = r*(digamma(r+x) - digamma(r))
//	betaTheta = -theta/(1-theta) - 1/ln(theta)
//	lambda: num += w*delta, den += w
//	theta:  num += w*delta*betaTheta, den += w*delta*betaTheta + w*(x-delta)
//
// Parameters are frozen at iteration start (DESIGN NOTES ambiguity
// resolution): callers must not mutate theta/lambda between Reset and
// the M-step within one EM iteration, so this reads a consistent
// snapshot throughout.
func (nb *NegativeBinomial) Accumulate(x, _ int, _ float64, weight float64) {
	if weight <= 0 {
		return
	}
	probs := make([]float64, len(nb.theta))
	sum := 0.0
	for c := range nb.theta {
		probs[c] = nb.weight[c] * nb.componentProb(x, c, 1)
		sum += probs[c]
	}
	if sum <= 0 {
		return
	}
	for c := range nb.theta {
		wc := weight * probs[c] / sum
		if wc <= 0 {
			continue
		}
		r := nb.r(c)
		theta := nb.theta[c]
		delta := r * (nb.digammaAt(c, x) - digamma(r))
		betaTheta := -theta/(1-theta) - 1/math.Log(theta)

		nb.lambdaEst[c].Increment(wc*delta, wc, 0)
		nb.thetaEst[c].Increment(wc*delta*betaTheta, wc*delta*betaTheta+wc*(float64(x)-delta), 0)
		nb.weightEst.IncrementDenominatorForAllComps(wc, wc, c)
	}
}

func (nb *NegativeBinomial) AccumulateCount(x int, weight float64) {
	nb.Accumulate(x, x, 0, weight)
}

func (nb *NegativeBinomial) ResetEstimators() {
	for c := range nb.theta {
		nb.lambdaEst[c].Reset()
		nb.thetaEst[c].Reset()
	}
	nb.weightEst.Reset()
}

func (nb *NegativeBinomial) EstimatorFor(kind ParameterKind, component int) *ParameterEstimator {
	switch kind {
	case ParamLambda:
		return nb.lambdaEst[component]
	case ParamTheta:
		return nb.thetaEst[component]
	case ParamWeight:
		return nb.weightEst
	default:
		return nil
	}
}

// EstimatorIndex returns the index within the estimator returned by
// EstimatorFor holding this component's statistics (see Gaussian's).
func (nb *NegativeBinomial) EstimatorIndex(kind ParameterKind, component int) int {
	if kind == ParamWeight {
		return component
	}
	return 0
}

func (nb *NegativeBinomial) Parameter(kind ParameterKind, component int) float64 {
	switch kind {
	case ParamLambda:
		return nb.lambda[component]
	case ParamTheta:
		return nb.theta[component]
	case ParamWeight:
		return nb.weight[component]
	default:
		return 0
	}
}

func (nb *NegativeBinomial) SetParameter(kind ParameterKind, component int, value float64) {
	switch kind {
	case ParamLambda:
		nb.lambda[component] = value
	case ParamTheta:
		nb.theta[component] = value
	case ParamWeight:
		nb.weight[component] = value
	}
}

func (nb *NegativeBinomial) IterParameters() []ParamRef {
	refs := make([]ParamRef, 0, len(nb.theta)*3)
	for c := range nb.theta {
		refs = append(refs, ParamRef{ParamLambda, c}, ParamRef{ParamTheta, c}, ParamRef{ParamWeight, c})
	}
	return refs
}

// Rebuild rebuilds every component's digamma table; called once per
// M-step round after lambda/theta have settled (§4.4).
func (nb *NegativeBinomial) Rebuild(config.EmissionConfig, float64) {
	for c := range nb.theta {
		nb.rebuildDigamma(c)
	}
}

func (nb *NegativeBinomial) Feasible() bool {
	sum := 0.0
	for c := range nb.theta {
		if nb.theta[c] <= 0 || nb.theta[c] >= 1 || nb.lambda[c] <= 0 || nb.weight[c] < 0 {
			return false
		}
		sum += nb.weight[c]
	}
	return math.Abs(sum-1) < 1e-6
}
