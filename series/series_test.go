package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/emission"
	"github.com/flagger-go/covhmm/track"
)

func buildGaussianSeries(t *testing.T) (*Series, *track.StateSet) {
	t.Helper()
	cfg := config.Default().Emission
	ss := track.NewStateSet(cfg.NumCollapseStates, cfg.IncludeMisjoin)
	dists := make([]emission.Dist, ss.N())
	for s := 0; s < ss.N(); s++ {
		dists[s] = emission.NewGaussian([]float64{float64(10 * (s + 1))}, []float64{4})
	}
	binding := emission.BuildDefault(cfg, ss)
	return New(cfg, ss, dists, binding), ss
}

func TestSeries_EstimateParameters_ConvergesOnConstantObservation(t *testing.T) {
	s, ss := buildGaussianSeries(t)
	hap, ok := ss.Find("HAP")
	require.True(t, ok)

	for iter := 0; iter < 5; iter++ {
		s.ResetEstimators()
		d := s.Dist(hap)
		for i := 0; i < 1000; i++ {
			d.Accumulate(30, 30, 0, 1)
		}
		s.EstimateParameters()
	}
	assert.InDelta(t, 30.0, s.Dist(hap).Parameter(emission.ParamMean, 0), 1e-6)
}

func TestSeries_BoundParameters_ShareCoefficientRatio(t *testing.T) {
	s, ss := buildGaussianSeries(t)
	hap, _ := ss.Find("HAP")
	dup, _ := ss.Find("DUP")

	s.ResetEstimators()
	for i := 0; i < 1000; i++ {
		s.Dist(hap).Accumulate(40, 40, 0, 1)
	}
	s.EstimateParameters()

	hapMean := s.Dist(hap).Parameter(emission.ParamMean, 0)
	dupMean := s.Dist(dup).Parameter(emission.ParamMean, 0)
	assert.InDelta(t, 0.5, dupMean/hapMean, 1e-6)
}

func TestSeries_Feasible(t *testing.T) {
	s, _ := buildGaussianSeries(t)
	assert.True(t, s.Feasible())
}

func TestSeries_HistogramFastPath_MatchesExplicitAccumulate(t *testing.T) {
	s1, ss := buildGaussianSeries(t)
	s2, _ := buildGaussianSeries(t)
	hap, _ := ss.Find("HAP")

	s1.ResetEstimators()
	for i := 0; i < 500; i++ {
		s1.Dist(hap).Accumulate(25, 25, 0, 1)
	}
	s1.EstimateParameters()

	s2.ResetEstimators()
	local := s2.NewLocalHistogram()
	local[hap][25] = 500
	s2.MergeHistogram(local)
	s2.ApplyHistogram()
	s2.EstimateParameters()

	assert.InDelta(t, s1.Dist(hap).Parameter(emission.ParamMean, 0), s2.Dist(hap).Parameter(emission.ParamMean, 0), 1e-9)
}
