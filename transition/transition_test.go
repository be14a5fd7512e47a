package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagger-go/covhmm/track"
)

func buildTestTransition(t *testing.T) (*Transition, *track.StateSet) {
	t.Helper()
	ss := track.NewStateSet(2, true)
	req := Requirements{MaxHighMapqRatioDup: 0.2, MinHighMapqRatioCol: 0.6, MinHighClipRatioMsj: 0.3}
	return New(ss, req, 1e-4, 0.99), ss
}

func TestTransition_RowStochasticAtConstruction(t *testing.T) {
	tr, _ := buildTestTransition(t)
	assert.True(t, tr.Feasible())
}

func TestTransition_DupInvalidAboveMaxMapqRatio(t *testing.T) {
	tr, ss := buildTestTransition(t)
	dup, _ := ss.Find("DUP")
	obs := track.Observation{Coverage: 10, HighMapqCoverage: 5} // ratio 0.5 > 0.2
	assert.False(t, tr.Valid(dup, obs))

	obsLow := track.Observation{Coverage: 10, HighMapqCoverage: 1} // ratio 0.1 <= 0.2
	assert.True(t, tr.Valid(dup, obsLow))
}

func TestTransition_ColInvalidBelowMinMapqRatio(t *testing.T) {
	tr, ss := buildTestTransition(t)
	col1, _ := ss.Find("COL1")
	obs := track.Observation{Coverage: 10, HighMapqCoverage: 2} // ratio 0.2 < 0.6
	assert.False(t, tr.Valid(col1, obs))
}

func TestTransition_MsjInvalidBelowMinClipRatio(t *testing.T) {
	tr, ss := buildTestTransition(t)
	msj, _ := ss.Find("MSJ")
	obs := track.Observation{Coverage: 10, HighClipCoverage: 1} // ratio 0.1 < 0.3
	assert.False(t, tr.Valid(msj, obs))
}

func TestTransition_ConditionalRenormalizesOverValidTargets(t *testing.T) {
	tr, ss := buildTestTransition(t)
	hap, _ := ss.Find("HAP")
	// Obs with clean coverage: DUP valid, COL invalid, MSJ invalid.
	obs := track.Observation{Coverage: 10, HighMapqCoverage: 1, HighClipCoverage: 0}
	sum := 0.0
	for s := track.State(0); int(s) < tr.N(); s++ {
		sum += tr.Conditional(int(hap), s, obs)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTransition_EstimateTransitionMatrix_RowSumsInvariant(t *testing.T) {
	tr, ss := buildTestTransition(t)
	n := tr.N()
	obs := track.Observation{Coverage: 10, HighMapqCoverage: 1, HighClipCoverage: 0}
	for from := 0; from < n; from++ {
		for to := 0; to < n; to++ {
			tr.AccumulateCount(from, to, 10)
		}
	}
	tr.EstimateTransitionMatrix(1e-4)
	_ = ss

	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += tr.Raw(i, j)
		}
		assert.InDelta(t, 1-tr.TerminationProb(), sum, 1e-9)
		assert.InDelta(t, tr.TerminationProb(), tr.Raw(i, n), 1e-9)
	}
	assert.True(t, tr.Feasible())
	_ = obs
}

func TestTransition_StartRowSumsToOne(t *testing.T) {
	tr, _ := buildTestTransition(t)
	n := tr.N()
	sum := 0.0
	for j := 0; j <= n; j++ {
		sum += tr.Raw(n, j)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestValidate_RejectsOutOfRangeTermination(t *testing.T) {
	req := Requirements{}
	assert.Error(t, Validate(req, 0))
	assert.Error(t, Validate(req, 1))
	assert.NoError(t, Validate(req, 1e-4))
}
