package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	logger := logrus.New()
	cfg, err := Load(logger)
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, 8000, cfg.Audio.SampleRate)
	assert.Equal(t, 50, cfg.Audio.WindowChunks)
	assert.Equal(t, 0.7, cfg.AMD.MachineThreshold)
	assert.Equal(t, 0.3, cfg.AMD.HumanThreshold)
	assert.Equal(t, "mock", cfg.STT.DefaultProvider)
	assert.Equal(t, 5*time.Second, cfg.STT.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AMD_MACHINE_THRESHOLD", "0.8")
	t.Setenv("AUDIO_WINDOW_CHUNKS", "25")
	t.Setenv("STT_REQUEST_TIMEOUT", "2s")

	cfg := defaultConfig(t)

	assert.Equal(t, 0.8, cfg.AMD.MachineThreshold)
	assert.Equal(t, 25, cfg.Audio.WindowChunks)
	assert.Equal(t, 2*time.Second, cfg.STT.RequestTimeout)
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.AMD.HumanThreshold = 0.9
	cfg.AMD.MachineThreshold = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below machine threshold")
}

func TestValidateRejectsZeroWeights(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.AMD.SilenceWeight = 0
	cfg.AMD.VoiceWeight = 0
	cfg.AMD.DurationWeight = 0
	cfg.AMD.KeywordWeight = 0
	cfg.AMD.EnergyWeight = 0

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDisabledSelectedProvider(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.STT.DefaultProvider = "google"
	cfg.STT.Google.Enabled = false

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.STT.DefaultProvider = "whisper-local"

	assert.Error(t, cfg.Validate())
}
