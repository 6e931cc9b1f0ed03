package amd

import (
	"strings"
	"time"
)

// estimator produces a machine-likelihood score in [0,1] from the call
// evidence, or abstains when its signal is too sparse.
type estimator interface {
	Name() string
	Estimate(ev *Evidence) (score float64, applicable bool)
}

// silenceEstimator scores the ratio and distribution of silence. Long
// uniform silence favors machine: voicemail systems pause before and after
// the greeting, and nobody fills the gaps.
type silenceEstimator struct{}

func (silenceEstimator) Name() string { return EstimatorSilence }

func (silenceEstimator) Estimate(ev *Evidence) (float64, bool) {
	if ev.featureCount == 0 || ev.Duration < time.Second {
		return 0, false
	}
	ratio := ev.meanSilenceRatio()
	longest := clamp(ev.longestSilence.Seconds() / 3.0)
	return clamp(0.6*ratio + 0.4*longest), true
}

// voiceEstimator scores pitch and amplitude variance. Recorded greetings are
// read in a flat register; live callers modulate.
type voiceEstimator struct{}

func (voiceEstimator) Name() string { return EstimatorVoice }

func (voiceEstimator) Estimate(ev *Evidence) (float64, bool) {
	if ev.voicedCount == 0 || ev.Duration < time.Second {
		return 0, false
	}
	// Pitch variance above ~40Hz std is clearly live modulation
	pitchFlatness := 1 - clamp(ev.meanPitchVariance()/1600.0)
	ampFlatness := 1 - clamp(ev.meanAmplitudeVariance()/0.01)
	return clamp(0.6*pitchFlatness + 0.4*ampFlatness), true
}

// durationEstimator scores the call shape: very short one-sided audio looks
// like a greeting or instant hangup; a long bidirectional exchange looks
// human.
type durationEstimator struct{}

func (durationEstimator) Name() string { return EstimatorDuration }

func (durationEstimator) Estimate(ev *Evidence) (float64, bool) {
	if ev.Duration <= 0 {
		return 0, false
	}
	secs := ev.Duration.Seconds()
	switch {
	case ev.Bidirectional() && secs > 60:
		return 0.1, true
	case ev.Bidirectional():
		return 0.3, true
	case secs < 10:
		return 0.85, true
	default:
		// One-sided but long: mildly machine (greeting plus message tail)
		return 0.6, true
	}
}

// keywordEstimator matches the contact transcript against the multilingual
// voicemail/conversational lexicons. It abstains until enough words arrived
// and when neither lexicon matches.
type keywordEstimator struct {
	minWords int
}

func (keywordEstimator) Name() string { return EstimatorKeyword }

func (k keywordEstimator) Estimate(ev *Evidence) (float64, bool) {
	if ev.TotalWords() < k.minWords {
		return 0, false
	}
	text := ev.ContactText()
	if text == "" {
		return 0, false
	}

	var machineWeight, humanWeight float64
	for _, p := range machinePhrases {
		if strings.Contains(text, p.text) {
			machineWeight += p.weight
		}
	}
	for _, p := range humanPhrases {
		if strings.Contains(text, p.text) {
			humanWeight += p.weight
		}
	}

	if machineWeight == 0 && humanWeight == 0 {
		return 0, false
	}
	return machineWeight / (machineWeight + humanWeight), true
}

// energyEstimator scores the spectral energy envelope across windows.
// Playback of a recording holds a steadier envelope and flatter dynamics
// than live speech into a handset.
type energyEstimator struct{}

func (energyEstimator) Name() string { return EstimatorEnergy }

func (energyEstimator) Estimate(ev *Evidence) (float64, bool) {
	if len(ev.energies) < 3 {
		return 0, false
	}
	steadiness := 1 - clamp(ev.energyEnvelopeVariance()/0.004)
	// Fully silent audio is steady too; require some signal before calling
	// it a recording
	if ev.meanVoicedRatio() < 0.05 {
		return clamp(0.5 * steadiness), true
	}
	return clamp(steadiness), true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
