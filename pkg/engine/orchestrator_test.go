package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-engine/pkg/accuracy"
	"call-analysis-engine/pkg/amd"
	"call-analysis-engine/pkg/audio"
	"call-analysis-engine/pkg/coaching"
	"call-analysis-engine/pkg/compliance"
	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/messaging"
	"call-analysis-engine/pkg/stt"
)

func testConfig() *config.Config {
	return &config.Config{
		Audio: config.AudioConfig{
			SampleRate:   8000,
			WindowChunks: 50,
			WindowMaxAge: 10 * time.Second,
			IdleFlush:    100 * time.Millisecond,
			QueueSize:    16,
		},
		STT: config.STTConfig{
			DefaultProvider: "mock",
			RequestTimeout:  time.Second,
			MaxRetries:      0,
			Language:        "en-US",
		},
		AMD: config.AMDConfig{
			MachineThreshold:   0.7,
			HumanThreshold:     0.3,
			MinSampleDuration:  5 * time.Second,
			MinTranscriptWords: 4,
			SilenceWeight:      1.0,
			VoiceWeight:        1.0,
			DurationWeight:     1.0,
			KeywordWeight:      1.0,
			EnergyWeight:       1.0,
		},
		Coaching: config.CoachingConfig{
			NegativeStreak: 3,
			MonologueLimit: 30 * time.Second,
		},
		Compliance: config.ComplianceConfig{
			DisclosureDeadline: 30 * time.Second,
		},
		Engine: config.EngineConfig{
			ArchiveGracePeriod: 15 * time.Minute,
			SweepInterval:      time.Minute,
		},
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stt.MockProvider) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	mock := stt.NewMockProvider(logger)
	manager := stt.NewProviderManager(logger, "mock")
	require.NoError(t, manager.RegisterProvider(mock))

	cfg := testConfig()
	adapter := stt.NewAdapter(logger, &cfg.STT, manager)
	tracker := accuracy.NewTracker(logger)

	return NewOrchestrator(logger, cfg, adapter, tracker, messaging.NoopPublisher{}), mock
}

// silentChunks builds n contiguous mu-law chunks of pure silence, 20ms each.
func silentChunks(n int) []audio.Chunk {
	payload := bytes.Repeat([]byte{0xFF}, 160) // mu-law 0xFF decodes to 0
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		chunks[i] = audio.Chunk{
			Sequence:  uint32(i + 1),
			Timestamp: time.Now(),
			Codec:     audio.CodecPCMU,
			Payload:   payload,
		}
	}
	return chunks
}

func waitForPipeline(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
}

func TestCallLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)
	assert.Equal(t, PhaseInitiated, s.Phase())

	_, err = o.StartCall("call-1", DirectionOutbound)
	assert.ErrorIs(t, err, ErrCallAlreadyExists)

	require.NoError(t, o.Ingest("call-1", silentChunks(1)[0]))
	assert.Equal(t, PhaseActive, s.Phase())

	require.NoError(t, o.EndCall("call-1"))
	assert.Equal(t, PhaseEnded, s.Phase())

	assert.ErrorIs(t, o.EndCall("call-1"), ErrInvalidCallState)
	assert.ErrorIs(t, o.Ingest("call-1", silentChunks(1)[0]), ErrInvalidCallState)

	waitForPipeline(t, s)
}

func TestUnknownCallOperations(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Verdict("nope")
	assert.ErrorIs(t, err, ErrCallNotFound)
	assert.ErrorIs(t, o.EndCall("nope"), ErrCallNotFound)
	assert.ErrorIs(t, o.Ingest("nope", silentChunks(1)[0]), ErrCallNotFound)
	assert.ErrorIs(t, o.ConfirmOutcome("nope", amd.VerdictHuman), ErrCallNotFound)
}

func TestThreeSecondsOfSilenceIsUndetermined(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)

	// 150 chunks x 20ms = 3 seconds, sealed into three 1s windows
	for _, c := range silentChunks(150) {
		require.NoError(t, o.Ingest("call-1", c))
	}
	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	verdict, err := o.Verdict("call-1")
	require.NoError(t, err)
	assert.Equal(t, amd.VerdictUndetermined, verdict.Classification)
	assert.Equal(t, 0.0, verdict.Confidence)

	transcript, err := o.Transcript("call-1")
	require.NoError(t, err)
	assert.Empty(t, transcript, "silent audio yields no transcript from the mock provider")
}

func TestTranscriptionFailureLeavesGapAndContinues(t *testing.T) {
	o, mock := newTestOrchestrator(t)

	mock.Stub(0, stt.MockResponse{Segments: []stt.Segment{
		{Speaker: stt.SpeakerContact, Text: "hello", WindowSeq: 0},
	}})
	mock.Stub(1, stt.MockResponse{Err: errors.New("upstream 500")})
	mock.Stub(2, stt.MockResponse{Segments: []stt.Segment{
		{Speaker: stt.SpeakerContact, Text: "are you there", WindowSeq: 2},
	}})

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)

	for _, c := range silentChunks(150) {
		require.NoError(t, o.Ingest("call-1", c))
	}
	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	transcript, err := o.Transcript("call-1")
	require.NoError(t, err)
	require.Len(t, transcript, 3)

	assert.Equal(t, "hello", transcript[0].Text)
	assert.True(t, transcript[1].Gap, "failed window must leave a gap marker in its slot")
	assert.Equal(t, uint64(1), transcript[1].WindowSeq)
	assert.Equal(t, "are you there", transcript[2].Text)

	// Attachment order never regresses
	last := uint64(0)
	for i, seg := range transcript {
		if i > 0 {
			assert.Greater(t, seg.WindowSeq, last)
		}
		last = seg.WindowSeq
	}
}

func TestConfirmOutcomeRequiresEndedCall(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)

	assert.ErrorIs(t, o.ConfirmOutcome("call-1", amd.VerdictHuman), ErrInvalidCallState)

	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	require.NoError(t, o.ConfirmOutcome("call-1", amd.VerdictHuman))
	assert.ErrorIs(t, o.ConfirmOutcome("call-1", amd.VerdictHuman), accuracy.ErrOutcomeAlreadyConfirmed)
}

func TestSweepArchivesEndedSessions(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)
	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	// Grace period not elapsed yet: still queryable
	o.sweep(s.EndedAt().Add(time.Minute))
	_, err = o.Verdict("call-1")
	assert.NoError(t, err)

	o.sweep(s.EndedAt().Add(o.cfg.Engine.ArchiveGracePeriod))
	_, err = o.Verdict("call-1")
	assert.ErrorIs(t, err, ErrCallNotFound)
	assert.Equal(t, PhaseArchived, s.Phase())
}

func TestSubscribeReceivesEvents(t *testing.T) {
	o, mock := newTestOrchestrator(t)

	mock.Stub(0, stt.MockResponse{Segments: []stt.Segment{
		{Speaker: stt.SpeakerContact, Text: "hello yes speaking", WindowSeq: 0},
	}})

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)

	events, cancel, err := o.Subscribe("call-1")
	require.NoError(t, err)
	defer cancel()

	for _, c := range silentChunks(50) {
		require.NoError(t, o.Ingest("call-1", c))
	}
	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	seen := make(map[string]bool)
	for {
		select {
		case ev := <-events:
			seen[ev.Type] = true
			assert.Equal(t, "call-1", ev.CallUUID)
		default:
			assert.True(t, seen[messaging.EventTranscriptSegment], "transcript event expected")
			assert.True(t, seen[messaging.EventCallSummary], "summary event expected")
			return
		}
	}
}

func TestSilentCallDisclosureDeadlineReachesFeedAndCoach(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.cfg.Compliance.DisclosureDeadline = 150 * time.Millisecond

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)

	events, cancel, err := o.Subscribe("call-1")
	require.NoError(t, err)
	defer cancel()

	// Nobody speaks; only the pipeline ticker can raise the flag
	require.Eventually(t, func() bool {
		flags, err := o.Flags("call-1")
		return err == nil && len(flags) == 1
	}, 3*time.Second, 20*time.Millisecond)

	flags, err := o.Flags("call-1")
	require.NoError(t, err)
	assert.Equal(t, compliance.RiskMissingDisclosure, flags[0].RiskType)
	assert.True(t, flags[0].RequiresAction)

	require.Eventually(t, func() bool {
		recs, err := o.Recommendations("call-1")
		return err == nil && len(recs) == 1 && recs[0].Category == coaching.CategoryCompliance
	}, 3*time.Second, 20*time.Millisecond, "actionable deadline flag must produce a compliance prompt")

	sawFlag := false
	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-events:
				if ev.Type == messaging.EventComplianceFlag {
					sawFlag = true
				}
			default:
				return sawFlag
			}
		}
	}, 3*time.Second, 20*time.Millisecond, "deadline flag must be published to subscribers")

	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)
}

func TestShutdownEndsLiveCalls(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Start()

	s1, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)
	s2, err := o.StartCall("call-2", DirectionInbound)
	require.NoError(t, err)

	o.Shutdown()

	assert.Equal(t, PhaseEnded, s1.Phase())
	assert.Equal(t, PhaseEnded, s2.Phase())
}

func TestEveryPipelineStageRecordsLatency(t *testing.T) {
	o, mock := newTestOrchestrator(t)
	mock.Stub(0, stt.MockResponse{Segments: []stt.Segment{
		{Speaker: stt.SpeakerContact, Text: "hello yes speaking", WindowSeq: 0},
	}})

	s, err := o.StartCall("call-1", DirectionOutbound)
	require.NoError(t, err)
	for _, c := range silentChunks(50) {
		require.NoError(t, o.Ingest("call-1", c))
	}
	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)

	snap := o.tracker.Snapshot()
	for _, stage := range []accuracy.Stage{
		accuracy.StageIngest,
		accuracy.StageTranscription,
		accuracy.StageAMD,
		accuracy.StageCoaching,
		accuracy.StageCompliance,
		accuracy.StageEndToEnd,
	} {
		stats, ok := snap.Latency[stage]
		require.True(t, ok, "stage %s recorded no latency samples", stage)
		assert.Greater(t, stats.Count, int64(0), "stage %s", stage)
	}
}

func TestSessionsListing(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s, err := o.StartCall("call-1", DirectionInbound)
	require.NoError(t, err)

	infos := o.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, "call-1", infos[0].ID)
	assert.Equal(t, DirectionInbound, infos[0].Direction)
	assert.Equal(t, PhaseInitiated, infos[0].Phase)

	require.NoError(t, o.EndCall("call-1"))
	waitForPipeline(t, s)
}
