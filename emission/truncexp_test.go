package emission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// integrateDensity approximates the integral of TruncExponential's density
// over [0, b] via fine-grained Riemann sum, used to check the §8
// invariant that it integrates to 1.
func integrateDensity(te *TruncExponential, steps int) float64 {
	b := te.b
	dx := b / float64(steps)
	total := 0.0
	for i := 0; i < steps; i++ {
		x := (float64(i) + 0.5) * dx
		total += te.density(x, te.lambda, b) * dx
	}
	return total
}

func TestTruncExponential_IntegratesToOne(t *testing.T) {
	te := NewTruncExponential(0.3, 10, 1e-9)
	assert.InDelta(t, 1.0, integrateDensity(te, 200000), 1e-3)
}

func TestTruncExponential_GoldenSectionRecoversRateFromUniformSamples(t *testing.T) {
	// Samples uniform on [0, b] correspond to lambda -> 0 in the limit;
	// accumulate a synthetic histogram weighted toward small x to check
	// that the golden-section MLE moves lambda away from its seed.
	te := NewTruncExponential(1.0, 10, 1e-9)
	for x := 0; x < 10000; x++ {
		te.AccumulateCount(x%10, 1)
	}
	lambdaEst := te.EstimatorFor(ParamLambda, 0)
	got := lambdaEst.Estimate(0)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0) // near-uniform counts pull lambda toward 0
}

func TestTruncExponential_RebuildRetiesTruncationPoint(t *testing.T) {
	te := NewTruncExponential(0.2, 10, 1e-9)
	cfg := exampleEmissionConfig()
	cfg.ExpTruncPointCovFraction = 0.5
	te.Rebuild(cfg, 40)
	assert.InDelta(t, 20, te.TruncationPoint(), 1e-9)
}

func TestTruncExponential_ProbZeroOutsideDomain(t *testing.T) {
	te := NewTruncExponential(0.3, 10, 1e-9)
	assert.Equal(t, minProb, te.Prob(-1, 0, 0, 1))
	assert.Equal(t, minProb, te.Prob(11, 0, 0, 1))
}

func TestGoldenSectionMaxLambda_MonotoneObjectiveAtOptimum(t *testing.T) {
	n, d, b := 500.0, 100.0, 10.0
	lambda := goldenSectionMaxLambda(n, d, b, 1e-9)
	atOpt := truncExpLogLikelihood(lambda, n, d, b)
	atNeighbor := truncExpLogLikelihood(lambda*1.01, n, d, b)
	assert.False(t, math.IsInf(atOpt, -1))
	assert.GreaterOrEqual(t, atOpt, atNeighbor-1e-6)
}
