package emission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestGaussian_WeightsSumToOne(t *testing.T) {
	g := NewGaussian([]float64{5, 30, 90}, []float64{4, 9, 25})
	sum := 0.0
	for c := 0; c < g.NumComponents(); c++ {
		sum += g.Parameter(ParamWeight, c)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.True(t, g.Feasible())
}

func TestGaussian_AccumulateAndEstimate_SingleComponentRecoversMean(t *testing.T) {
	g := NewGaussian([]float64{10}, []float64{4})
	for x := 0; x < 100; x++ {
		g.Accumulate(30, 30, 0, 1)
	}
	meanEst := g.EstimatorFor(ParamMean, 0)
	require.NotNil(t, meanEst)
	idx := g.EstimatorIndex(ParamMean, 0)
	assert.InDelta(t, 30.0, meanEst.Estimate(idx), 1e-9)
}

func TestGaussian_SharedWeightEstimator_SplitsAcrossComponents(t *testing.T) {
	g := NewGaussian([]float64{5, 50}, []float64{4, 4})
	// Each observation goes almost entirely to the nearer component, and
	// total weight is 300 vs 100, so the weights come out near 0.75/0.25.
	for i := 0; i < 100; i++ {
		g.Accumulate(5, 5, 0, 3)  // strongly favors component 0
		g.Accumulate(50, 50, 0, 1) // strongly favors component 1
	}
	w0 := g.EstimatorFor(ParamWeight, 0).Estimate(g.EstimatorIndex(ParamWeight, 0))
	w1 := g.EstimatorFor(ParamWeight, 1).Estimate(g.EstimatorIndex(ParamWeight, 1))
	assert.InDelta(t, 1.0, w0+w1, 1e-9)
	assert.Greater(t, w0, w1)
}

func TestGaussian_ProbClampsToMinProb(t *testing.T) {
	g := NewGaussian([]float64{1000}, []float64{1})
	p := g.Prob(0, 0, 0, 1)
	assert.GreaterOrEqual(t, p, minProb)
}

func TestGaussian_EstimateMatchesIndependentMeanAndVariance(t *testing.T) {
	samples := []float64{28, 29, 30, 31, 32, 30, 29, 31, 30, 30}
	wantMean := stat.Mean(samples, nil)
	wantVar := stat.MomentAbout(2, samples, wantMean, nil) // population variance, no dof correction

	g := NewGaussian([]float64{wantMean}, []float64{1}) // seeded near the target so responsibility is ~1
	for _, x := range samples {
		g.Accumulate(int(x), int(x), 0, 1)
	}
	meanIdx := g.EstimatorIndex(ParamMean, 0)
	varIdx := g.EstimatorIndex(ParamVar, 0)
	gotMean := g.EstimatorFor(ParamMean, 0).Estimate(meanIdx)
	gotVar := g.EstimatorFor(ParamVar, 0).Estimate(varIdx)

	assert.InDelta(t, wantMean, gotMean, 1e-9)
	assert.InDelta(t, wantVar, gotVar, 1e-9)
}

func TestGaussian_IterParametersCoversEveryCell(t *testing.T) {
	g := NewGaussian([]float64{1, 2, 3}, []float64{1, 1, 1})
	refs := g.IterParameters()
	assert.Len(t, refs, 9) // 3 components x (mean, var, weight)
}
