package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestExtractSilence(t *testing.T) {
	fe := NewFeatureExtractor(8000)
	f := fe.Extract(make([]float64, 8000)) // 1s of silence
	require.NotNil(t, f)

	assert.Equal(t, 0.0, f.Energy)
	assert.Equal(t, 1.0, f.SilenceRatio)
	assert.Equal(t, 1, f.SilenceRuns)
	assert.Greater(t, f.LongestSilence.Milliseconds(), int64(900))
	assert.Equal(t, 0.0, f.VoicedRatio)
}

func TestExtractTone(t *testing.T) {
	fe := NewFeatureExtractor(8000)
	f := fe.Extract(sineWave(200, 8000, 8000, 0.5))
	require.NotNil(t, f)

	assert.InDelta(t, 0.5/math.Sqrt2, f.Energy, 0.02)
	assert.InDelta(t, 200, f.PitchMean, 15, "autocorrelation should find the tone frequency")
	assert.Less(t, f.PitchVariance, 100.0, "a pure tone has near-zero pitch variance")
	assert.Equal(t, 0.0, f.SilenceRatio)
	assert.Greater(t, f.VoicedRatio, 0.9)
	// A pure tone is spectrally peaked, not flat
	assert.Less(t, f.SpectralFlatness, 0.1)
}

func TestExtractSpeechLikeSignalHasSilenceGaps(t *testing.T) {
	fe := NewFeatureExtractor(8000)

	// 250ms tone, 250ms silence, repeated
	var samples []float64
	for i := 0; i < 2; i++ {
		samples = append(samples, sineWave(180, 8000, 2000, 0.4)...)
		samples = append(samples, make([]float64, 2000)...)
	}

	f := fe.Extract(samples)
	require.NotNil(t, f)

	assert.InDelta(t, 0.5, f.SilenceRatio, 0.1)
	assert.GreaterOrEqual(t, f.SilenceRuns, 2)
}

func TestExtractTooShortReturnsNil(t *testing.T) {
	fe := NewFeatureExtractor(8000)
	assert.Nil(t, fe.Extract(make([]float64, 100)))
}
