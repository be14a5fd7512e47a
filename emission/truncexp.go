package emission

import (
	"math"

	"github.com/flagger-go/covhmm/config"
)

// TruncExponential is a single-component emission: probability
// lambda*e^(-lambda*x)/(1-e^(-lambda*b)) on [0, b], 0 elsewhere (§3,
// §4.2.3). b is not freely estimated: it is re-tied to
// mean(HAP dist, component 0) * EXP_TRUNC_POINT_COV_FRACTION after every
// EM iteration via Rebuild.
type TruncExponential struct {
	lambda float64
	b      float64
	tol    float64

	lambdaEst *ParameterEstimator
}

// NewTruncExponential builds a TruncExponential with initial rate
// lambda and truncation point b.
func NewTruncExponential(lambda, b, goldenSectionTol float64) *TruncExponential {
	return &TruncExponential{
		lambda:    lambda,
		b:         b,
		tol:       goldenSectionTol,
		lambdaEst: NewTruncExpLambdaEstimator(b, goldenSectionTol),
	}
}

func (t *TruncExponential) Variant() VariantKind { return VariantTruncExponential }
func (t *TruncExponential) NumComponents() int   { return 1 }

func (t *TruncExponential) density(x, lambda, b float64) float64 {
	if x < 0 || x > b || lambda <= 0 || b <= 0 {
		return 0
	}
	denom := 1 - math.Exp(-lambda*b)
	if denom <= 0 {
		return 0
	}
	return lambda * math.Exp(-lambda*x) / denom
}

// Prob ignores xPrev (no AR coupling for TruncExp) and applies beta by
// rescaling both the rate and the truncation point, degrading coverage
// near contig ends the same way Gaussian's mean/var rescale does.
func (t *TruncExponential) Prob(x, _ int, _ float64, beta float64) float64 {
	lambda := t.lambda / beta
	b := t.b * beta
	return clampProb(t.density(float64(x), lambda, b))
}

// Accumulate folds N = Σw·x and D = Σw into the lambda estimator; the
// MLE itself is deferred to Estimate's golden-section search.
func (t *TruncExponential) Accumulate(x, _ int, _ float64, weight float64) {
	if weight <= 0 {
		return
	}
	t.lambdaEst.Increment(weight*float64(x), weight, 0)
}

func (t *TruncExponential) AccumulateCount(x int, weight float64) {
	t.Accumulate(x, x, 0, weight)
}

func (t *TruncExponential) ResetEstimators() {
	t.lambdaEst.Reset()
}

func (t *TruncExponential) EstimatorFor(kind ParameterKind, _ int) *ParameterEstimator {
	if kind == ParamLambda {
		return t.lambdaEst
	}
	return nil
}

func (t *TruncExponential) EstimatorIndex(ParameterKind, int) int { return 0 }

func (t *TruncExponential) Parameter(kind ParameterKind, _ int) float64 {
	switch kind {
	case ParamLambda:
		return t.lambda
	case ParamWeight:
		return 1
	default:
		return 0
	}
}

func (t *TruncExponential) SetParameter(kind ParameterKind, _ int, value float64) {
	if kind == ParamLambda {
		t.lambda = value
	}
}

func (t *TruncExponential) IterParameters() []ParamRef {
	return []ParamRef{{ParamLambda, 0}}
}

// Rebuild re-ties b to refHAPMean * EXP_TRUNC_POINT_COV_FRACTION and
// refreshes the lambda estimator's search bracket to the new b.
func (t *TruncExponential) Rebuild(cfg config.EmissionConfig, refHAPMean float64) {
	t.b = refHAPMean * cfg.ExpTruncPointCovFraction
	t.lambdaEst.SetTruncationPoint(t.b)
}

func (t *TruncExponential) Feasible() bool {
	return t.lambda > 0 && t.b > 0
}

// TruncationPoint exposes b for tests and for SummaryTableList-adjacent
// reporting.
func (t *TruncExponential) TruncationPoint() float64 { return t.b }
