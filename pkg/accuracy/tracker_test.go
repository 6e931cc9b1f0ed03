package accuracy

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-engine/pkg/amd"
)

func newTestTracker() *Tracker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewTracker(logger)
}

func verdictWith(classification amd.Classification, silenceScore float64) amd.Verdict {
	return amd.Verdict{
		Classification: classification,
		Breakdown: map[string]amd.Component{
			amd.EstimatorSilence: {Score: silenceScore, Weight: 1.0, Applicable: true},
			amd.EstimatorKeyword: {Score: 0.5, Weight: 1.0, Applicable: false},
		},
		At: time.Now(),
	}
}

func TestLatencyPercentiles(t *testing.T) {
	tr := newTestTracker()

	for i := 1; i <= 100; i++ {
		tr.RecordLatency(StageTranscription, time.Duration(i)*time.Millisecond)
	}

	stats := tr.Snapshot().Latency[StageTranscription]
	assert.Equal(t, int64(100), stats.Count)
	assert.Equal(t, 50*time.Millisecond, stats.P50)
	assert.Equal(t, 95*time.Millisecond, stats.P95)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
}

func TestLatencySmallSampleSet(t *testing.T) {
	tr := newTestTracker()

	tr.RecordLatency(StageAMD, 30*time.Millisecond)
	tr.RecordLatency(StageAMD, 10*time.Millisecond)
	tr.RecordLatency(StageAMD, 20*time.Millisecond)

	stats := tr.Snapshot().Latency[StageAMD]
	assert.Equal(t, 20*time.Millisecond, stats.P50)
	assert.Equal(t, 30*time.Millisecond, stats.P95)
}

func TestFalsePositiveRatePerEstimator(t *testing.T) {
	tr := newTestTracker()

	// Silence estimator applicable on four confirmed calls: it leaned
	// machine on two confirmed-human calls (false positives), leaned human
	// on one confirmed-human call (correct), leaned machine on one
	// confirmed-machine call (correct)
	require.NoError(t, tr.ConfirmOutcome("c1", verdictWith(amd.VerdictMachine, 0.9), amd.VerdictHuman))
	require.NoError(t, tr.ConfirmOutcome("c2", verdictWith(amd.VerdictMachine, 0.7), amd.VerdictHuman))
	require.NoError(t, tr.ConfirmOutcome("c3", verdictWith(amd.VerdictHuman, 0.2), amd.VerdictHuman))
	require.NoError(t, tr.ConfirmOutcome("c4", verdictWith(amd.VerdictMachine, 0.8), amd.VerdictMachine))

	snap := tr.Snapshot()
	silence := snap.Estimators[amd.EstimatorSilence]
	assert.Equal(t, int64(4), silence.Applicable)
	assert.Equal(t, int64(2), silence.FalsePositives)
	assert.InDelta(t, 0.5, silence.FalsePositiveRate, 1e-9)

	// The keyword estimator abstained everywhere, so it accrues nothing
	_, present := snap.Estimators[amd.EstimatorKeyword]
	assert.False(t, present)
}

func TestFalseNegativeRatePerEstimator(t *testing.T) {
	tr := newTestTracker()

	require.NoError(t, tr.ConfirmOutcome("c1", verdictWith(amd.VerdictHuman, 0.2), amd.VerdictMachine))
	require.NoError(t, tr.ConfirmOutcome("c2", verdictWith(amd.VerdictMachine, 0.9), amd.VerdictMachine))

	silence := tr.Snapshot().Estimators[amd.EstimatorSilence]
	assert.Equal(t, int64(1), silence.FalseNegatives)
	assert.InDelta(t, 0.5, silence.FalseNegativeRate, 1e-9)
}

func TestVerdictCorrectnessCounts(t *testing.T) {
	tr := newTestTracker()

	require.NoError(t, tr.ConfirmOutcome("c1", verdictWith(amd.VerdictMachine, 0.9), amd.VerdictMachine))
	require.NoError(t, tr.ConfirmOutcome("c2", verdictWith(amd.VerdictHuman, 0.1), amd.VerdictMachine))
	require.NoError(t, tr.ConfirmOutcome("c3", verdictWith(amd.VerdictUndetermined, 0.5), amd.VerdictHuman))

	snap := tr.Snapshot()
	assert.Equal(t, int64(3), snap.ConfirmedOutcomes)
	assert.Equal(t, int64(1), snap.VerdictCorrect)
	assert.Equal(t, int64(1), snap.VerdictIncorrect)
	assert.Equal(t, int64(1), snap.VerdictUndecided)
}

func TestConfirmOutcomeOncePerCall(t *testing.T) {
	tr := newTestTracker()

	require.NoError(t, tr.ConfirmOutcome("c1", verdictWith(amd.VerdictMachine, 0.9), amd.VerdictMachine))
	err := tr.ConfirmOutcome("c1", verdictWith(amd.VerdictMachine, 0.9), amd.VerdictHuman)
	assert.ErrorIs(t, err, ErrOutcomeAlreadyConfirmed)

	assert.Equal(t, int64(1), tr.Snapshot().ConfirmedOutcomes)
}

func TestErrorCounts(t *testing.T) {
	tr := newTestTracker()

	tr.RecordError(StageTranscription)
	tr.RecordError(StageTranscription)
	tr.RecordError(StageAMD)

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.Errors[StageTranscription])
	assert.Equal(t, int64(1), snap.Errors[StageAMD])
}

func TestLatencySampleCap(t *testing.T) {
	tr := newTestTracker()

	for i := 0; i < maxLatencySamples+500; i++ {
		tr.RecordLatency(StageIngest, time.Duration(i)*time.Microsecond)
	}

	stats := tr.Snapshot().Latency[StageIngest]
	assert.Equal(t, int64(maxLatencySamples), stats.Count)
}

func TestRecordsRetained(t *testing.T) {
	tr := newTestTracker()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("c%d", i)
		require.NoError(t, tr.ConfirmOutcome(id, verdictWith(amd.VerdictMachine, 0.9), amd.VerdictMachine))
	}

	records := tr.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "c0", records[0].CallID)
	assert.Equal(t, amd.VerdictMachine, records[2].Confirmed)
}
