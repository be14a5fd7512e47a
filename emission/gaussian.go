package emission

import (
	"math"

	"github.com/flagger-go/covhmm/config"
)

// Gaussian is a per-state mixture of normal components: mean[c], var[c],
// weight[c], weight summing to 1 across components (§3, §4.2.1).
type Gaussian struct {
	mean   []float64
	vr     []float64
	weight []float64

	meanEst []*ParameterEstimator
	varEst  []*ParameterEstimator
	// weightEst is a single estimator shared across every component:
	// IncrementDenominatorForAllComps adds to every slot's denominator
	// so Estimate(c) = Σw_c / Σw_all (§4.1, §4.2.1).
	weightEst *ParameterEstimator
}

// NewGaussian builds a Gaussian mixture with the given initial per-
// component means and variances, with uniform initial weights.
func NewGaussian(means, vars []float64) *Gaussian {
	n := len(means)
	g := &Gaussian{
		mean:      append([]float64(nil), means...),
		vr:        append([]float64(nil), vars...),
		weight:    make([]float64, n),
		meanEst:   make([]*ParameterEstimator, n),
		varEst:    make([]*ParameterEstimator, n),
		weightEst: NewParameterEstimator(n),
	}
	for c := 0; c < n; c++ {
		g.weight[c] = 1.0 / float64(n)
		g.meanEst[c] = NewParameterEstimator(1)
		g.varEst[c] = NewParameterEstimator(1)
	}
	return g
}

func (g *Gaussian) Variant() VariantKind { return VariantGaussian }
func (g *Gaussian) NumComponents() int   { return len(g.mean) }

func normalPDF(x, mean, variance float64) float64 {
	if variance <= 0 {
		return minProb
	}
	d := x - mean
	return math.Exp(-d*d/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}

// effectiveMean applies the AR coupling toward the previous observation.
func effectiveMean(mean float64, alpha float64, xPrev int) float64 {
	return (1-alpha)*mean + alpha*float64(xPrev)
}

func (g *Gaussian) Prob(x, xPrev int, alpha, beta float64) float64 {
	total := 0.0
	for c := range g.mean {
		meanEff := effectiveMean(g.mean[c], alpha, xPrev) * beta
		varEff := g.vr[c] * beta
		total += g.weight[c] * normalPDF(float64(x), meanEff, varEff)
	}
	return clampProb(total)
}

// Accumulate implements the M-step sufficient statistics of §4.2.1 for
// one observation with posterior weight w:
//
//	mean num += w·((x − α·x_prev)/(1−α)), den += w
//	var  num += w·((x_adj − mean_c)(1−α))², den += w
//	weight: incrementDenominatorForAllComps to yield w_c = Σw_c / Σw_all
//
// The responsibility of each component within the mixture (how w splits
// across components) is the component's own posterior share of the
// mixture probability at this observation.
func (g *Gaussian) Accumulate(x, xPrev int, alpha, weight float64) {
	if weight <= 0 {
		return
	}
	probs := make([]float64, len(g.mean))
	sum := 0.0
	for c := range g.mean {
		probs[c] = g.weight[c] * normalPDF(float64(x), effectiveMean(g.mean[c], alpha, xPrev), g.vr[c])
		sum += probs[c]
	}
	if sum <= 0 {
		return
	}
	for c := range g.mean {
		wc := weight * probs[c] / sum
		if wc <= 0 {
			continue
		}
		var xAdj float64
		if alpha < 1 {
			xAdj = (float64(x) - alpha*float64(xPrev)) / (1 - alpha)
		} else {
			xAdj = float64(x)
		}
		g.meanEst[c].Increment(wc*xAdj, wc, 0)
		diff := (xAdj - g.mean[c]) * (1 - alpha)
		g.varEst[c].Increment(wc*diff*diff, wc, 0)
		g.weightEst.IncrementDenominatorForAllComps(wc, wc, c)
	}
}

// AccumulateCount is the alpha==0 fast path: x_prev is irrelevant
// (alpha coupling is disabled), so a coverage-value histogram bucket of
// total weight behaves exactly like len-many identical observations.
func (g *Gaussian) AccumulateCount(x int, weight float64) {
	g.Accumulate(x, x, 0, weight)
}

func (g *Gaussian) ResetEstimators() {
	for c := range g.mean {
		g.meanEst[c].Reset()
		g.varEst[c].Reset()
	}
	g.weightEst.Reset()
}

func (g *Gaussian) EstimatorFor(kind ParameterKind, component int) *ParameterEstimator {
	switch kind {
	case ParamMean:
		return g.meanEst[component]
	case ParamVar:
		return g.varEst[component]
	case ParamWeight:
		return g.weightEst
	default:
		return nil
	}
}

// EstimatorIndex returns the index within the estimator returned by
// EstimatorFor that holds this component's statistics: 0 for the
// dedicated-per-component mean/var estimators, component itself for
// the single shared weight estimator.
func (g *Gaussian) EstimatorIndex(kind ParameterKind, component int) int {
	if kind == ParamWeight {
		return component
	}
	return 0
}

func (g *Gaussian) Parameter(kind ParameterKind, component int) float64 {
	switch kind {
	case ParamMean:
		return g.mean[component]
	case ParamVar:
		return g.vr[component]
	case ParamWeight:
		return g.weight[component]
	default:
		return 0
	}
}

func (g *Gaussian) SetParameter(kind ParameterKind, component int, value float64) {
	switch kind {
	case ParamMean:
		g.mean[component] = value
	case ParamVar:
		g.vr[component] = value
	case ParamWeight:
		g.weight[component] = value
	}
}

func (g *Gaussian) IterParameters() []ParamRef {
	refs := make([]ParamRef, 0, len(g.mean)*3)
	for c := range g.mean {
		refs = append(refs, ParamRef{ParamMean, c}, ParamRef{ParamVar, c}, ParamRef{ParamWeight, c})
	}
	return refs
}

// Rebuild is a no-op: Gaussian parameters have no derived state.
func (g *Gaussian) Rebuild(config.EmissionConfig, float64) {}

func (g *Gaussian) Feasible() bool {
	sum := 0.0
	for c := range g.mean {
		if g.mean[c] <= 0 || g.vr[c] <= 0 || g.weight[c] < 0 {
			return false
		}
		sum += g.weight[c]
	}
	return math.Abs(sum-1) < 1e-6
}
