// Package emission implements the EmissionDist family (C2): Gaussian,
// NegativeBinomial and TruncatedExponential mixture emissions, their
// per-parameter estimators (C1), and the ParameterBinding coefficient
// tables that couple parameters across states (C3).
package emission

import "github.com/flagger-go/covhmm/config"

// minProb is the underflow floor every Prob implementation clamps to.
const minProb = 1e-40

// VariantKind tags which EmissionDist family a Dist implements. The
// source's void* parameter-kind pointer becomes this enum plus
// ParameterKind below, and the driver dispatches by variant rather than
// through pointer casts (DESIGN NOTES).
type VariantKind int

const (
	VariantGaussian VariantKind = iota
	VariantNegativeBinomial
	VariantTruncExponential
)

// ParameterKind enumerates the parameter families a Dist can expose
// through EstimatorFor/Parameter/SetParameter/IterParameters. Not every
// variant uses every kind (e.g. Gaussian never uses ParamTheta).
type ParameterKind int

const (
	ParamMean ParameterKind = iota
	ParamVar
	ParamWeight
	ParamLambda // NB rate parameter, or TruncExp rate
	ParamTheta  // NB theta
)

func (k ParameterKind) String() string {
	switch k {
	case ParamMean:
		return "mean"
	case ParamVar:
		return "var"
	case ParamWeight:
		return "weight"
	case ParamLambda:
		return "lambda"
	case ParamTheta:
		return "theta"
	default:
		return "unknown"
	}
}

// ParamRef names one (parameter-kind, component-index) cell of a Dist,
// the ordered iterator exposed by IterParameters so the M-step driver
// can update parameters uniformly across variants.
type ParamRef struct {
	Kind      ParameterKind
	Component int
}

// Dist is the common contract every EmissionDist variant implements.
type Dist interface {
	Variant() VariantKind
	NumComponents() int

	// Prob returns P(x | dist) with the alpha (AR coupling toward the
	// previous observation) and beta (edge-adjustment rescale) modifiers
	// applied, clamped to minProb.
	Prob(x, xPrev int, alpha, beta float64) float64

	// Accumulate folds one (x, xPrev) observation with posterior weight
	// into this dist's per-parameter, per-component estimators. Used
	// when alpha != 0 (explicit per-observation E-step).
	Accumulate(x, xPrev int, alpha, weight float64)

	// AccumulateCount folds a count-histogram bucket (coverage value x
	// with total weight) into the estimators directly. Used on the
	// alpha == 0 fast path (§4.4, §5): semantically equivalent to calling
	// Accumulate for every observation at that coverage value, up to
	// floating-point summation order.
	AccumulateCount(x int, weight float64)

	ResetEstimators()

	EstimatorFor(kind ParameterKind, component int) *ParameterEstimator
	// EstimatorIndex returns the index within EstimatorFor's returned
	// estimator that holds this component's own statistics: 0 for a
	// dedicated-per-component estimator, component itself when the
	// estimator is shared across components (mixture weights).
	EstimatorIndex(kind ParameterKind, component int) int
	Parameter(kind ParameterKind, component int) float64
	SetParameter(kind ParameterKind, component int, value float64)

	// IterParameters returns every (kind, component) cell this dist
	// exposes, in a fixed order (used for the accelerator's flatten
	// order and for independent-parameter M-step scans).
	IterParameters() []ParamRef

	// Rebuild recomputes derived state after parameters change: the NB
	// digamma table, or the TruncExp truncation point tie to HAP's mean.
	// No-op for Gaussian.
	Rebuild(cfg config.EmissionConfig, refHAPMean float64)

	// Feasible reports whether every parameter is within its domain
	// (Gaussian var>0 mean>0; NB 0<theta<1, lambda>0; TruncExp
	// lambda>0, b>0), used by HMM.Feasible() and the accelerator's
	// retry chain.
	Feasible() bool
}

func clampProb(p float64) float64 {
	if p < minProb {
		return minProb
	}
	return p
}
