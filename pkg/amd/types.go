package amd

import (
	"strings"
	"time"

	"call-analysis-engine/pkg/audio"
)

// Classification is the current best answer to "who picked up".
type Classification string

const (
	VerdictHuman        Classification = "human"
	VerdictMachine      Classification = "machine"
	VerdictUndetermined Classification = "undetermined"
)

// Estimator names used in verdict breakdowns and accuracy records.
const (
	EstimatorSilence  = "silence_pattern"
	EstimatorVoice    = "voice_pattern"
	EstimatorDuration = "duration_pattern"
	EstimatorKeyword  = "keyword_pattern"
	EstimatorEnergy   = "energy_pattern"
)

// Component is one estimator's contribution to a verdict. Score leans toward
// machine as it approaches 1. An estimator with insufficient data abstains
// (Applicable=false) rather than guessing.
type Component struct {
	Score      float64 `json:"score"`
	Weight     float64 `json:"weight"`
	Applicable bool    `json:"applicable"`
}

// Verdict is one detection result. Only the most recent verdict for a call is
// authoritative; prior verdicts are retained for audit.
type Verdict struct {
	Classification Classification       `json:"classification"`
	Confidence     float64              `json:"confidence"`
	Combined       float64              `json:"combined_score"`
	Breakdown      map[string]Component `json:"breakdown"`

	SampleDuration  time.Duration `json:"sample_duration"`
	TranscriptWords int           `json:"transcript_words"`
	At              time.Time     `json:"at"`
}

// Evidence accumulates everything the estimators may consume: window-level
// signal features and transcript segments. It is owned by one call's
// detector and grows monotonically until the call is archived.
type Evidence struct {
	Duration time.Duration
	Windows  int

	energies        []float64
	silenceRatioSum float64
	longestSilence  time.Duration
	silenceRuns     int

	pitchVarSum  float64
	ampVarSum    float64
	voicedSum    float64
	voicedCount  int
	flatnessSum  float64
	centroidSum  float64
	featureCount int

	AgentSegments   int
	ContactSegments int
	AgentWords      int
	ContactWords    int

	contactText []string
}

// AddWindow folds one window's features into the evidence. A nil features
// value (window too short to analyze) still counts toward duration.
func (e *Evidence) AddWindow(dur time.Duration, f *audio.Features) {
	e.Windows++
	e.Duration += dur
	if f == nil {
		return
	}
	e.energies = append(e.energies, f.Energy)
	e.silenceRatioSum += f.SilenceRatio
	e.silenceRuns += f.SilenceRuns
	if f.LongestSilence > e.longestSilence {
		e.longestSilence = f.LongestSilence
	}
	e.ampVarSum += f.AmplitudeVariance
	e.flatnessSum += f.SpectralFlatness
	e.centroidSum += f.SpectralCentroid
	e.featureCount++

	e.voicedSum += f.VoicedRatio
	if f.VoicedRatio > 0.2 {
		e.pitchVarSum += f.PitchVariance
		e.voicedCount++
	}
}

// AddSegment folds one transcript segment into the evidence. Gap markers
// carry no text and are ignored by the caller.
func (e *Evidence) AddSegment(speaker, text string) {
	words := len(strings.Fields(text))
	switch speaker {
	case "agent":
		e.AgentSegments++
		e.AgentWords += words
	default:
		e.ContactSegments++
		e.ContactWords += words
		e.contactText = append(e.contactText, strings.ToLower(text))
	}
}

// TotalWords returns the transcript evidence size.
func (e *Evidence) TotalWords() int {
	return e.AgentWords + e.ContactWords
}

// Bidirectional reports whether both parties have spoken.
func (e *Evidence) Bidirectional() bool {
	return e.AgentSegments > 0 && e.ContactSegments > 0
}

// ContactText returns the contact-side transcript, lowercased.
func (e *Evidence) ContactText() string {
	return strings.Join(e.contactText, " ")
}

func (e *Evidence) meanSilenceRatio() float64 {
	if e.featureCount == 0 {
		return 0
	}
	return e.silenceRatioSum / float64(e.featureCount)
}

func (e *Evidence) meanPitchVariance() float64 {
	if e.voicedCount == 0 {
		return 0
	}
	return e.pitchVarSum / float64(e.voicedCount)
}

func (e *Evidence) meanAmplitudeVariance() float64 {
	if e.featureCount == 0 {
		return 0
	}
	return e.ampVarSum / float64(e.featureCount)
}

func (e *Evidence) meanVoicedRatio() float64 {
	if e.featureCount == 0 {
		return 0
	}
	return e.voicedSum / float64(e.featureCount)
}

// energyEnvelopeVariance measures how much the per-window energy moves over
// the call. Recorded greetings hold a steadier envelope than live speech.
func (e *Evidence) energyEnvelopeVariance() float64 {
	if len(e.energies) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range e.energies {
		mean += v
	}
	mean /= float64(len(e.energies))
	variance := 0.0
	for _, v := range e.energies {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(e.energies))
}
