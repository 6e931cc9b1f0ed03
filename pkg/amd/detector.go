package amd

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/audio"
	"call-analysis-engine/pkg/config"
)

// Detector classifies human vs. machine pickup for one call by fusing the
// five estimators. It is re-invoked incrementally as windows and transcript
// segments arrive.
type Detector struct {
	logger *logrus.Entry
	cfg    *config.AMDConfig

	estimators []estimator
	weights    map[string]float64

	mu       sync.Mutex
	evidence Evidence
	current  Verdict
	history  []Verdict

	// Once the verdict leaves undetermined with evidence above the minimum
	// sample size it is latched: it may flip between human and machine, but
	// never regresses to undetermined.
	latched bool
}

// NewDetector creates a detector for one call.
func NewDetector(logger *logrus.Logger, cfg *config.AMDConfig, callID string) *Detector {
	return &Detector{
		logger: logger.WithField("component", "amd").WithField("call_uuid", callID),
		cfg:    cfg,
		estimators: []estimator{
			silenceEstimator{},
			voiceEstimator{},
			durationEstimator{},
			keywordEstimator{minWords: cfg.MinTranscriptWords},
			energyEstimator{},
		},
		weights: map[string]float64{
			EstimatorSilence:  cfg.SilenceWeight,
			EstimatorVoice:    cfg.VoiceWeight,
			EstimatorDuration: cfg.DurationWeight,
			EstimatorKeyword:  cfg.KeywordWeight,
			EstimatorEnergy:   cfg.EnergyWeight,
		},
		current: Verdict{Classification: VerdictUndetermined, At: time.Now()},
	}
}

// ObserveWindow folds a sealed window's features into the evidence.
func (d *Detector) ObserveWindow(dur time.Duration, f *audio.Features) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evidence.AddWindow(dur, f)
}

// ObserveSegment folds a transcript segment into the evidence.
func (d *Detector) ObserveSegment(speaker, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evidence.AddSegment(speaker, text)
}

// Evaluate recomputes the verdict from the accumulated evidence. The new
// verdict becomes authoritative; the previous one is retained for audit.
func (d *Detector) Evaluate() Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()

	components := make(map[string]Component, len(d.estimators))

	// Below the minimum sample size every estimator abstains: the caller
	// sees "insufficient data" rather than a guess.
	if d.evidence.Duration >= d.cfg.MinSampleDuration {
		for _, est := range d.estimators {
			score, applicable := est.Estimate(&d.evidence)
			components[est.Name()] = Component{
				Score:      score,
				Weight:     d.weights[est.Name()],
				Applicable: applicable,
			}
		}
	}

	combined, ok := Fuse(components)
	classification := VerdictUndetermined
	confidence := 0.0
	if ok {
		switch {
		case combined >= d.cfg.MachineThreshold:
			classification = VerdictMachine
			confidence = combined
		case combined <= d.cfg.HumanThreshold:
			classification = VerdictHuman
			confidence = 1 - combined
		}
	}

	if classification == VerdictUndetermined && d.latched {
		// Pending evidence pushed the score back into the undetermined
		// band; keep the latched classification and the confidence from
		// the last decisive evaluation, so a latched verdict never
		// advertises a sub-threshold confidence
		classification = d.current.Classification
		confidence = d.current.Confidence
	}

	verdict := Verdict{
		Classification:  classification,
		Confidence:      confidence,
		Combined:        combined,
		Breakdown:       components,
		SampleDuration:  d.evidence.Duration,
		TranscriptWords: d.evidence.TotalWords(),
		At:              time.Now(),
	}

	if classification != VerdictUndetermined && !d.latched &&
		d.evidence.Duration >= d.cfg.MinSampleDuration &&
		d.evidence.TotalWords() >= d.cfg.MinTranscriptWords {
		d.latched = true
		d.logger.WithFields(logrus.Fields{
			"classification": classification,
			"combined":       combined,
		}).Debug("Verdict latched")
	}

	if verdict.Classification != d.current.Classification {
		d.logger.WithFields(logrus.Fields{
			"from":       d.current.Classification,
			"to":         verdict.Classification,
			"combined":   combined,
			"confidence": confidence,
		}).Info("AMD verdict changed")
	}

	d.history = append(d.history, verdict)
	d.current = verdict
	return verdict
}

// Current returns the authoritative verdict.
func (d *Detector) Current() Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// History returns all verdicts computed for the call, oldest first.
func (d *Detector) History() []Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Verdict, len(d.history))
	copy(out, d.history)
	return out
}

// Fuse combines estimator components into one machine-likelihood score via a
// confidence-weighted average. Abstaining estimators are excluded from the
// denominator. ok is false when nothing was applicable.
func Fuse(components map[string]Component) (score float64, ok bool) {
	var num, den float64
	for _, c := range components {
		if !c.Applicable || c.Weight <= 0 {
			continue
		}
		num += c.Score * c.Weight
		den += c.Weight
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
