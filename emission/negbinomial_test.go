package emission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigamma_MatchesKnownValues(t *testing.T) {
	// psi(1) = -gamma (Euler-Mascheroni), psi(2) = 1 - gamma.
	const eulerGamma = 0.5772156649015329
	assert.InDelta(t, -eulerGamma, digamma(1), 1e-6)
	assert.InDelta(t, 1-eulerGamma, digamma(2), 1e-6)
}

func TestNegativeBinomial_DigammaTableMatchesRecurrence(t *testing.T) {
	nb := NewNegativeBinomial(20, []float64{0.5}, []float64{2})
	r := nb.r(0)
	for x := 1; x <= 20; x++ {
		want := digamma(r + float64(x))
		assert.InDelta(t, want, nb.digammaAt(0, x), 1e-6)
	}
}

func TestNegativeBinomial_Feasible(t *testing.T) {
	nb := NewNegativeBinomial(250, []float64{0.3, 0.6}, []float64{1, 5})
	assert.True(t, nb.Feasible())
	nb.SetParameter(ParamTheta, 0, 1.5)
	assert.False(t, nb.Feasible())
}

func TestNegativeBinomial_ProbIsNonNegativeAndFinite(t *testing.T) {
	nb := NewNegativeBinomial(250, []float64{0.4}, []float64{3})
	for x := 0; x <= 50; x++ {
		p := nb.Prob(x, x, 0, 1)
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, minProb)
	}
}

func TestNegativeBinomial_RebuildRefreshesDigammaAfterParamChange(t *testing.T) {
	nb := NewNegativeBinomial(20, []float64{0.5}, []float64{2})
	before := nb.digammaAt(0, 10)
	nb.SetParameter(ParamLambda, 0, 5)
	nb.Rebuild(exampleEmissionConfig(), 30)
	after := nb.digammaAt(0, 10)
	assert.NotEqual(t, before, after)
}
