package accuracy

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/amd"
)

// Stage names for latency measurements.
type Stage string

const (
	StageIngest        Stage = "ingest"
	StageTranscription Stage = "transcription"
	StageAMD           Stage = "amd"
	StageCoaching      Stage = "coaching"
	StageCompliance    Stage = "compliance"
	StageEndToEnd      Stage = "end_to_end"
)

// ErrOutcomeAlreadyConfirmed is returned when a second outcome is submitted
// for the same call.
var ErrOutcomeAlreadyConfirmed = errors.New("outcome already confirmed for call")

// maxLatencySamples bounds per-stage sample retention; oldest samples are
// discarded first.
const maxLatencySamples = 10000

// Record links one call's final verdict to its human-confirmed outcome.
type Record struct {
	CallID    string             `json:"call_id"`
	Verdict   amd.Verdict        `json:"verdict"`
	Confirmed amd.Classification `json:"confirmed"`
	At        time.Time          `json:"at"`
}

// EstimatorAccuracy aggregates per-estimator correctness over confirmed
// outcomes. An estimator counts toward a false positive when it was
// applicable and leaned machine on a confirmed-human call; toward a false
// negative when it leaned human on a confirmed-machine call.
type EstimatorAccuracy struct {
	Applicable        int64   `json:"applicable"`
	FalsePositives    int64   `json:"false_positives"`
	FalseNegatives    int64   `json:"false_negatives"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate"`
}

// LatencyStats summarizes one stage's latency samples.
type LatencyStats struct {
	Count int64         `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// Snapshot is the aggregate dashboard view.
type Snapshot struct {
	Latency    map[Stage]LatencyStats       `json:"latency"`
	Estimators map[string]EstimatorAccuracy `json:"estimators"`
	Errors     map[Stage]int64              `json:"errors"`

	ConfirmedOutcomes int64 `json:"confirmed_outcomes"`
	VerdictCorrect    int64 `json:"verdict_correct"`
	VerdictIncorrect  int64 `json:"verdict_incorrect"`
	VerdictUndecided  int64 `json:"verdict_undecided"`

	GeneratedAt time.Time `json:"generated_at"`
}

type estimatorCounters struct {
	applicable     int64
	falsePositives int64
	falseNegatives int64
}

// Tracker records latency and outcome correctness across all calls. It is
// the only state shared between call pipelines; every update runs under one
// lock with a narrow critical section.
type Tracker struct {
	logger *logrus.Entry

	mu         sync.Mutex
	latencies  map[Stage][]time.Duration
	errors     map[Stage]int64
	estimators map[string]*estimatorCounters
	records    []Record
	confirmed  map[string]bool

	verdictCorrect   int64
	verdictIncorrect int64
	verdictUndecided int64
}

// NewTracker creates an accuracy tracker.
func NewTracker(logger *logrus.Logger) *Tracker {
	return &Tracker{
		logger:     logger.WithField("component", "accuracy"),
		latencies:  make(map[Stage][]time.Duration),
		errors:     make(map[Stage]int64),
		estimators: make(map[string]*estimatorCounters),
		confirmed:  make(map[string]bool),
	}
}

// RecordLatency adds one latency sample for a stage.
func (t *Tracker) RecordLatency(stage Stage, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := append(t.latencies[stage], d)
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	t.latencies[stage] = samples
}

// RecordError counts one stage failure.
func (t *Tracker) RecordError(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors[stage]++
}

// ConfirmOutcome records the human-confirmed classification for a completed
// call against its final verdict, updating per-estimator correctness. A call
// can be confirmed once.
func (t *Tracker) ConfirmOutcome(callID string, verdict amd.Verdict, confirmed amd.Classification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.confirmed[callID] {
		return ErrOutcomeAlreadyConfirmed
	}
	t.confirmed[callID] = true
	t.records = append(t.records, Record{
		CallID:    callID,
		Verdict:   verdict,
		Confirmed: confirmed,
		At:        time.Now(),
	})

	switch {
	case verdict.Classification == amd.VerdictUndetermined:
		t.verdictUndecided++
	case verdict.Classification == confirmed:
		t.verdictCorrect++
	default:
		t.verdictIncorrect++
	}

	for name, c := range verdict.Breakdown {
		if !c.Applicable {
			continue
		}
		ec, ok := t.estimators[name]
		if !ok {
			ec = &estimatorCounters{}
			t.estimators[name] = ec
		}
		ec.applicable++

		leanedMachine := c.Score >= 0.5
		if confirmed == amd.VerdictHuman && leanedMachine {
			ec.falsePositives++
		}
		if confirmed == amd.VerdictMachine && !leanedMachine {
			ec.falseNegatives++
		}
	}

	t.logger.WithFields(logrus.Fields{
		"call_uuid": callID,
		"verdict":   verdict.Classification,
		"confirmed": confirmed,
	}).Info("Outcome confirmed")

	return nil
}

// Records returns all confirmed outcome records, oldest first.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Snapshot computes the aggregate dashboard view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Latency:           make(map[Stage]LatencyStats, len(t.latencies)),
		Estimators:        make(map[string]EstimatorAccuracy, len(t.estimators)),
		Errors:            make(map[Stage]int64, len(t.errors)),
		ConfirmedOutcomes: int64(len(t.records)),
		VerdictCorrect:    t.verdictCorrect,
		VerdictIncorrect:  t.verdictIncorrect,
		VerdictUndecided:  t.verdictUndecided,
		GeneratedAt:       time.Now(),
	}

	for stage, samples := range t.latencies {
		snap.Latency[stage] = summarize(samples)
	}
	for stage, count := range t.errors {
		snap.Errors[stage] = count
	}
	for name, ec := range t.estimators {
		acc := EstimatorAccuracy{
			Applicable:     ec.applicable,
			FalsePositives: ec.falsePositives,
			FalseNegatives: ec.falseNegatives,
		}
		if ec.applicable > 0 {
			acc.FalsePositiveRate = float64(ec.falsePositives) / float64(ec.applicable)
			acc.FalseNegativeRate = float64(ec.falseNegatives) / float64(ec.applicable)
		}
		snap.Estimators[name] = acc
	}

	return snap
}

// summarize computes nearest-rank percentiles over a sample set.
func summarize(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyStats{
		Count: int64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (len(sorted)*p + 99) / 100
	if idx < 1 {
		idx = 1
	}
	return sorted[idx-1]
}
