package emission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/track"
)

func TestBuildDefault_TiesMeanToHAPReference(t *testing.T) {
	cfg := config.Default().Emission
	ss := track.NewStateSet(cfg.NumCollapseStates, cfg.IncludeMisjoin)
	b := BuildDefault(cfg, ss)

	hap, _ := ss.Find("HAP")
	dup, _ := ss.Find("DUP")
	col1, _ := ss.Find("COL1")

	assert.Equal(t, 1.0, b.Coefficient(ParamMean, hap, 0))
	assert.Equal(t, 0.5, b.Coefficient(ParamMean, dup, 0))
	assert.Equal(t, 2.0, b.Coefficient(ParamMean, col1, 0))
}

func TestBuildDefault_WeightIsAlwaysIndependent(t *testing.T) {
	cfg := config.Default().Emission
	ss := track.NewStateSet(cfg.NumCollapseStates, cfg.IncludeMisjoin)
	b := BuildDefault(cfg, ss)
	assert.Len(t, b.Group(ParamWeight), 0)
}

func TestBuildDefault_TruncExpModelLeavesErrUnbound(t *testing.T) {
	cfg := config.Default().Emission
	cfg.ModelType = config.ModelTruncExpGaussian
	ss := track.NewStateSet(cfg.NumCollapseStates, cfg.IncludeMisjoin)
	b := BuildDefault(cfg, ss)
	errState, _ := ss.Find("ERR")
	assert.Equal(t, 0.0, b.Coefficient(ParamMean, errState, 0))
}

func TestBinding_SetAndCoefficient(t *testing.T) {
	b := NewBinding()
	b.Set(ParamMean, track.State(2), 0, 3.5)
	assert.Equal(t, 3.5, b.Coefficient(ParamMean, track.State(2), 0))
	assert.Equal(t, 0.0, b.Coefficient(ParamMean, track.State(3), 0))
}
