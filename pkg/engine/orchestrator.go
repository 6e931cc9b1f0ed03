package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/accuracy"
	"call-analysis-engine/pkg/amd"
	"call-analysis-engine/pkg/audio"
	"call-analysis-engine/pkg/coaching"
	"call-analysis-engine/pkg/compliance"
	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/messaging"
	"call-analysis-engine/pkg/metrics"
	"call-analysis-engine/pkg/stt"
)

// Orchestrator owns all call sessions and wires the analysis stages
// together. Each call runs an independent pipeline; the only state shared
// across calls is the accuracy tracker.
type Orchestrator struct {
	logger    *logrus.Logger
	log       *logrus.Entry
	cfg       *config.Config
	adapter   *stt.Adapter
	tracker   *accuracy.Tracker
	publisher messaging.Publisher
	sentiment *coaching.SentimentAnalyzer
	audit     *compliance.AuditWriter

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// SessionInfo is the lifecycle summary of one session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// NewOrchestrator creates the call analysis orchestrator.
func NewOrchestrator(logger *logrus.Logger, cfg *config.Config, adapter *stt.Adapter, tracker *accuracy.Tracker, publisher messaging.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	var audit *compliance.AuditWriter
	if cfg.Compliance.AuditLogPath != "" {
		audit = compliance.NewAuditWriter(cfg.Compliance.AuditLogPath)
	}
	return &Orchestrator{
		logger:    logger,
		log:       logger.WithField("component", "orchestrator"),
		cfg:       cfg,
		adapter:   adapter,
		tracker:   tracker,
		publisher: publisher,
		sentiment: coaching.NewSentimentAnalyzer(logger),
		audit:     audit,
		sessions:  make(map[string]*Session),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background janitor that archives ended sessions after
// the grace period.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go o.janitor()
}

// Shutdown ends all live calls and waits for their pipelines to finish.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() { close(o.stopCh) })

	o.mu.RLock()
	sessions := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	for _, s := range sessions {
		s.mu.Lock()
		live := s.phase == PhaseInitiated || s.phase == PhaseActive
		if live {
			s.phase = PhaseEnded
			s.endedAt = time.Now()
		}
		s.mu.Unlock()
		if live {
			s.buffer.Close()
		}
	}

	o.wg.Wait()
	o.log.Info("Orchestrator stopped")
}

// StartCall creates a session and starts its analysis pipeline. Called on
// the call-started lifecycle event.
func (o *Orchestrator) StartCall(callID string, direction Direction) (*Session, error) {
	if callID == "" {
		return nil, fmt.Errorf("%w: empty call ID", ErrInvalidCallState)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.sessions[callID]; exists {
		return nil, ErrCallAlreadyExists
	}

	s := &Session{
		ID:          callID,
		Direction:   direction,
		StartedAt:   time.Now(),
		phase:       PhaseInitiated,
		buffer:      audio.NewWindowBuffer(o.logger, &o.cfg.Audio, callID),
		extractor:   audio.NewFeatureExtractor(o.cfg.Audio.SampleRate),
		detector:    amd.NewDetector(o.logger, &o.cfg.AMD, callID),
		coach:       coaching.NewEngine(o.logger, &o.cfg.Coaching, o.sentiment, callID),
		monitor:     compliance.NewMonitor(o.logger, &o.cfg.Compliance, callID, o.audit),
		sealedAt:    make(map[uint64]time.Time),
		subscribers: make(map[int]chan messaging.Event),
		done:        make(chan struct{}),
	}
	s.sequencer = stt.NewSequencer(func(att *stt.Attachment) {
		o.handleAttachment(s, att)
	})
	o.sessions[callID] = s

	o.wg.Add(1)
	go o.runPipeline(s)

	if metrics.IsMetricsEnabled() && metrics.ActiveCalls != nil {
		metrics.ActiveCalls.Inc()
	}
	o.log.WithFields(logrus.Fields{
		"call_uuid": callID,
		"direction": direction,
	}).Info("Call session started")

	return s, nil
}

// Ingest feeds one audio chunk into the call's buffer. Never blocks; the
// first chunk moves the session from initiated to active.
func (o *Orchestrator) Ingest(callID string, chunk audio.Chunk) error {
	s, err := o.get(callID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch s.phase {
	case PhaseInitiated:
		s.phase = PhaseActive
	case PhaseActive:
	default:
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot ingest audio in phase %s", ErrInvalidCallState, phase)
	}
	s.mu.Unlock()

	start := time.Now()
	s.buffer.Ingest(chunk)
	o.recordStageLatency(accuracy.StageIngest, time.Since(start))

	if metrics.IsMetricsEnabled() && metrics.ChunksIngested != nil {
		metrics.ChunksIngested.WithLabelValues(callID).Inc()
	}
	return nil
}

// EndCall moves the session to ended and flushes its final partial window.
// The pipeline drains in the background and then emits the summary event;
// per-call state stays queryable until the archive grace period elapses.
func (o *Orchestrator) EndCall(callID string) error {
	s, err := o.get(callID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.phase != PhaseInitiated && s.phase != PhaseActive {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: call already %s", ErrInvalidCallState, phase)
	}
	s.phase = PhaseEnded
	s.endedAt = time.Now()
	s.mu.Unlock()

	s.buffer.Close()
	o.log.WithField("call_uuid", callID).Info("Call session ended")
	return nil
}

// Verdict returns the authoritative AMD verdict for a call.
func (o *Orchestrator) Verdict(callID string) (amd.Verdict, error) {
	s, err := o.get(callID)
	if err != nil {
		return amd.Verdict{}, err
	}
	return s.detector.Current(), nil
}

// VerdictHistory returns all verdicts computed for a call, oldest first.
func (o *Orchestrator) VerdictHistory(callID string) ([]amd.Verdict, error) {
	s, err := o.get(callID)
	if err != nil {
		return nil, err
	}
	return s.detector.History(), nil
}

// Recommendations returns the call's coaching recommendations.
func (o *Orchestrator) Recommendations(callID string) ([]coaching.Recommendation, error) {
	s, err := o.get(callID)
	if err != nil {
		return nil, err
	}
	return s.coach.Recommendations(), nil
}

// Flags returns the call's compliance audit trail.
func (o *Orchestrator) Flags(callID string) ([]compliance.Flag, error) {
	s, err := o.get(callID)
	if err != nil {
		return nil, err
	}
	return s.monitor.Flags(), nil
}

// Transcript returns the call's attached transcript segments.
func (o *Orchestrator) Transcript(callID string) ([]stt.Segment, error) {
	s, err := o.get(callID)
	if err != nil {
		return nil, err
	}
	return s.Transcript(), nil
}

// BufferStats returns the call's audio ingest counters.
func (o *Orchestrator) BufferStats(callID string) (audio.BufferStats, error) {
	s, err := o.get(callID)
	if err != nil {
		return audio.BufferStats{}, err
	}
	return s.buffer.Stats(), nil
}

// Acknowledge marks a coaching recommendation as seen. Idempotent.
func (o *Orchestrator) Acknowledge(callID string, recommendationID uuid.UUID) error {
	s, err := o.get(callID)
	if err != nil {
		return err
	}
	return s.coach.Acknowledge(recommendationID)
}

// ConfirmOutcome records the human-confirmed classification for a completed
// call, feeding the accuracy tracker.
func (o *Orchestrator) ConfirmOutcome(callID string, confirmed amd.Classification) error {
	s, err := o.get(callID)
	if err != nil {
		return err
	}
	if s.Phase() != PhaseEnded {
		return fmt.Errorf("%w: outcome confirmation requires an ended call", ErrInvalidCallState)
	}
	return o.tracker.ConfirmOutcome(callID, s.detector.Current(), confirmed)
}

// Subscribe attaches an event feed to a call.
func (o *Orchestrator) Subscribe(callID string) (<-chan messaging.Event, func(), error) {
	s, err := o.get(callID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Subscribe()
	return ch, cancel, nil
}

// Sessions lists all known sessions.
func (o *Orchestrator) Sessions() []SessionInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]SessionInfo, 0, len(o.sessions))
	for _, s := range o.sessions {
		s.mu.Lock()
		out = append(out, SessionInfo{
			ID:        s.ID,
			Direction: s.Direction,
			Phase:     s.phase,
			StartedAt: s.StartedAt,
			EndedAt:   s.endedAt,
		})
		s.mu.Unlock()
	}
	return out
}

func (o *Orchestrator) get(callID string) (*Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	return s, nil
}

// runPipeline consumes the call's sealed windows until the buffer closes,
// then finalizes the session. A panic in one call's pipeline is contained to
// that call.
func (o *Orchestrator) runPipeline(s *Session) {
	defer o.wg.Done()
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{
				"call_uuid": s.ID,
				"recover":   r,
			}).Error("Call pipeline panicked")
		}
	}()

	flushEvery := o.cfg.Audio.IdleFlush / 2
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case w, ok := <-s.buffer.Windows():
			if !ok {
				o.finalize(s)
				return
			}
			o.processWindow(s, w)
		case now := <-ticker.C:
			s.buffer.FlushIdle(now)
			// A silent call can trip the disclosure deadline with no
			// segment to carry the flag; it still must reach the event
			// feed and the coach
			for _, flag := range s.monitor.CheckDeadline(time.Since(s.StartedAt)) {
				o.emitFlag(s, flag)
			}
		}
	}
}

// processWindow runs the signal stage synchronously and hands the window to
// transcription in the background. The sequencer reorders completions so
// transcript attachment stays in seal order.
func (o *Orchestrator) processWindow(s *Session, w *audio.Window) {
	dur := w.Duration(o.cfg.Audio.SampleRate)
	features := s.extractor.Extract(w.Floats())
	s.detector.ObserveWindow(dur, features)
	o.evaluateAMD(s)

	if metrics.IsMetricsEnabled() && metrics.WindowsSealed != nil {
		reason := "partial"
		if w.ChunkCount >= o.cfg.Audio.WindowChunks {
			reason = "full"
		}
		metrics.WindowsSealed.WithLabelValues(s.ID, reason).Inc()
		if w.Discontinuity {
			metrics.Discontinuities.WithLabelValues(s.ID, "stream").Inc()
		}
	}

	s.mu.Lock()
	s.sealedAt[w.Sequence] = w.End
	s.mu.Unlock()

	ticket := s.sequencer.Submit()
	req := &stt.Request{
		CallID:     s.ID,
		WindowSeq:  w.Sequence,
		SampleRate: o.cfg.Audio.SampleRate,
		PCM:        w.PCM,
		Language:   o.cfg.STT.Language,
		Offset:     w.Start.Sub(s.StartedAt),
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.WithFields(logrus.Fields{
					"call_uuid": s.ID,
					"recover":   r,
				}).Error("Transcription worker panicked")
				s.sequencer.Fail(ticket, req.WindowSeq)
			}
		}()

		start := time.Now()
		result, err := o.adapter.Transcribe(context.Background(), req)
		elapsed := time.Since(start)
		o.recordStageLatency(accuracy.StageTranscription, elapsed)

		status := "success"
		if err != nil {
			status = "failure"
			o.tracker.RecordError(accuracy.StageTranscription)
			s.sequencer.Fail(ticket, req.WindowSeq)
		} else {
			s.sequencer.Complete(ticket, req.WindowSeq, result.Segments)
		}

		if metrics.IsMetricsEnabled() && metrics.TranscriptionRequests != nil {
			metrics.TranscriptionRequests.WithLabelValues(o.cfg.STT.DefaultProvider, status).Inc()
			metrics.TranscriptionLatency.WithLabelValues(o.cfg.STT.DefaultProvider).Observe(elapsed.Seconds())
		}
	}()
}

// handleAttachment attaches one window's transcription outcome in seal
// order and drives the downstream analyzers. Runs on the completing
// transcription goroutine under the sequencer's ordering guarantee.
func (o *Orchestrator) handleAttachment(s *Session, att *stt.Attachment) {
	s.mu.Lock()
	sealed, haveSeal := s.sealedAt[att.WindowSeq]
	delete(s.sealedAt, att.WindowSeq)
	if s.finalized {
		// The call moved past active before this request completed
		s.mu.Unlock()
		o.log.WithFields(logrus.Fields{
			"call_uuid":  s.ID,
			"window_seq": att.WindowSeq,
		}).Debug("Discarded late transcription result")
		return
	}

	if att.Gap {
		s.transcript = append(s.transcript, stt.Segment{Gap: true, WindowSeq: att.WindowSeq})
	} else {
		s.transcript = append(s.transcript, att.Segments...)
	}
	s.mu.Unlock()

	if haveSeal {
		o.recordStageLatency(accuracy.StageEndToEnd, time.Since(sealed))
	}

	if att.Gap {
		if metrics.IsMetricsEnabled() && metrics.TranscriptionGaps != nil {
			metrics.TranscriptionGaps.WithLabelValues(s.ID).Inc()
		}
		o.publish(s, messaging.EventTranscriptSegment, stt.Segment{Gap: true, WindowSeq: att.WindowSeq})
		return
	}

	for _, seg := range att.Segments {
		s.detector.ObserveSegment(seg.Speaker, seg.Text)
		o.publish(s, messaging.EventTranscriptSegment, seg)

		start := time.Now()
		recs := s.coach.ObserveSegment(seg)
		o.recordStageLatency(accuracy.StageCoaching, time.Since(start))
		for _, rec := range recs {
			o.emitRecommendation(s, rec)
		}

		start = time.Now()
		flags := s.monitor.ObserveSegment(seg)
		o.recordStageLatency(accuracy.StageCompliance, time.Since(start))
		for _, flag := range flags {
			o.emitFlag(s, flag)
		}
	}
	o.evaluateAMD(s)
}

func (o *Orchestrator) emitRecommendation(s *Session, rec *coaching.Recommendation) {
	if metrics.IsMetricsEnabled() && metrics.CoachingRecommendations != nil {
		metrics.CoachingRecommendations.WithLabelValues(string(rec.Category), string(rec.Urgency)).Inc()
	}
	o.publish(s, messaging.EventCoaching, *rec)
}

func (o *Orchestrator) emitFlag(s *Session, flag compliance.Flag) {
	if metrics.IsMetricsEnabled() && metrics.ComplianceFlags != nil {
		metrics.ComplianceFlags.WithLabelValues(string(flag.RiskType), strconv.FormatBool(flag.RequiresAction)).Inc()
	}
	o.publish(s, messaging.EventComplianceFlag, flag)

	if flag.RequiresAction {
		rec := s.coach.ObserveComplianceFlag(string(flag.RiskType),
			"Compliance risk detected: "+string(flag.RiskType)+". Address it before continuing the pitch.")
		o.emitRecommendation(s, rec)
	}
}

// evaluateAMD recomputes the verdict and publishes it when the
// classification changes.
func (o *Orchestrator) evaluateAMD(s *Session) {
	prior := s.detector.Current().Classification

	start := time.Now()
	verdict := s.detector.Evaluate()
	o.recordStageLatency(accuracy.StageAMD, time.Since(start))

	if metrics.IsMetricsEnabled() && metrics.AMDEvaluations != nil {
		metrics.AMDEvaluations.WithLabelValues(string(verdict.Classification)).Inc()
	}
	if verdict.Classification != prior {
		if metrics.IsMetricsEnabled() && metrics.AMDVerdictChanges != nil {
			metrics.AMDVerdictChanges.WithLabelValues(string(prior), string(verdict.Classification)).Inc()
		}
		o.publish(s, messaging.EventAMDVerdict, verdict)
	}
}

// finalize runs once the buffer has drained at call end: it waits (bounded)
// for in-flight transcriptions, computes the final verdict, and emits the
// summary event. Results arriving after this point are discarded.
func (o *Orchestrator) finalize(s *Session) {
	waited := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(o.cfg.STT.RequestTimeout + 2*time.Second):
		o.log.WithField("call_uuid", s.ID).Warn("Timed out waiting for in-flight transcriptions at call end")
	}

	s.mu.Lock()
	s.finalized = true
	if s.phase == PhaseInitiated || s.phase == PhaseActive {
		s.phase = PhaseEnded
		s.endedAt = time.Now()
	}
	endedAt := s.endedAt
	segments := len(s.transcript)
	s.mu.Unlock()

	verdict := s.detector.Evaluate()
	stats := s.buffer.Stats()

	o.publish(s, messaging.EventCallSummary, map[string]interface{}{
		"verdict":         verdict,
		"duration":        endedAt.Sub(s.StartedAt).Seconds(),
		"segments":        segments,
		"recommendations": len(s.coach.Recommendations()),
		"flags":           len(s.monitor.Flags()),
		"windows_sealed":  stats.WindowsSealed,
		"windows_dropped": stats.WindowsDropped,
		"discontinuities": stats.Discontinuities,
	})

	if metrics.IsMetricsEnabled() && metrics.ActiveCalls != nil {
		metrics.ActiveCalls.Dec()
	}
	o.log.WithFields(logrus.Fields{
		"call_uuid":      s.ID,
		"classification": verdict.Classification,
		"confidence":     verdict.Confidence,
		"segments":       segments,
	}).Info("Call analysis finalized")
}

func (o *Orchestrator) recordStageLatency(stage accuracy.Stage, elapsed time.Duration) {
	o.tracker.RecordLatency(stage, elapsed)
	if metrics.IsMetricsEnabled() && metrics.PipelineLatency != nil {
		metrics.PipelineLatency.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	}
}

func (o *Orchestrator) publish(s *Session, eventType string, payload interface{}) {
	event := messaging.Event{
		Type:      eventType,
		CallUUID:  s.ID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := o.publisher.PublishEvent(event); err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"call_uuid": s.ID,
			"type":      eventType,
		}).Debug("Event publish failed")
	}
	s.fanout(event)
}

// janitor archives ended sessions after the accuracy-confirmation grace
// period and releases their state.
func (o *Orchestrator) janitor() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.Engine.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case now := <-ticker.C:
			o.sweep(now)
		}
	}
}

func (o *Orchestrator) sweep(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, s := range o.sessions {
		s.mu.Lock()
		expired := s.phase == PhaseEnded && now.Sub(s.endedAt) >= o.cfg.Engine.ArchiveGracePeriod
		if expired {
			s.phase = PhaseArchived
		}
		s.mu.Unlock()

		if expired {
			s.closeSubscribers()
			delete(o.sessions, id)
			o.log.WithField("call_uuid", id).Info("Call session archived")
		}
	}
}
