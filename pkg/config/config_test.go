package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ValidatesClean(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VADThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsDraftIntervalOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ASRDraftIntervalMs = 500
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputSink = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	os.Setenv("TARGET_LANG", "ja")
	defer os.Unsetenv("TARGET_LANG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ja", cfg.TargetLang)
}

func TestLoad_YAMLFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("target_lang: fr\nasr_worker_count: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.TargetLang)
	assert.Equal(t, 3, cfg.ASRWorkerCount)
}
