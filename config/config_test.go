package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate_RejectsLowMaxCoverage(t *testing.T) {
	cfg := Default()
	cfg.Emission.MaxCoverage = 10
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroComponents(t *testing.T) {
	cfg := Default()
	cfg.Emission.NumComponents = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeTerminationProb(t *testing.T) {
	cfg := Default()
	cfg.Transition.TerminationProb = 0
	assert.Error(t, cfg.Validate())
	cfg.Transition.TerminationProb = 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroWorkerPool(t *testing.T) {
	cfg := Default()
	cfg.EM.WorkerPoolSize = 0
	assert.Error(t, cfg.Validate())
}

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_OverlaysOntoDefaultsForUnsetFields(t *testing.T) {
	path := writeTempConfig(t, "max_coverage: 500\nmodel: negative-binomial\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Emission.MaxCoverage)
	assert.Equal(t, ModelNegativeBinomial, cfg.Emission.ModelType)
	assert.Equal(t, Default().Transition.TerminationProb, cfg.Transition.TerminationProb)
}

func TestLoadFile_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "not_a_real_field: 1\n")
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_RejectsUnknownModelName(t *testing.T) {
	path := writeTempConfig(t, "model: not-a-model\n")
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_RejectsMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestModelType_StringNamesEveryVariant(t *testing.T) {
	assert.Equal(t, "gaussian", ModelGaussian.String())
	assert.Equal(t, "negative-binomial", ModelNegativeBinomial.String())
	assert.Equal(t, "truncexp-gaussian", ModelTruncExpGaussian.String())
}
