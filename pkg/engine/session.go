package engine

import (
	"sync"
	"time"

	"call-analysis-engine/pkg/amd"
	"call-analysis-engine/pkg/audio"
	"call-analysis-engine/pkg/coaching"
	"call-analysis-engine/pkg/compliance"
	"call-analysis-engine/pkg/messaging"
	"call-analysis-engine/pkg/stt"
)

// Direction of the call relative to the dialer.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseInitiated Phase = "initiated"
	PhaseActive    Phase = "active"
	PhaseEnded     Phase = "ended"
	PhaseArchived  Phase = "archived"
)

// Session owns all per-call analysis state. It is created on the call-start
// event and released after the accuracy-confirmation grace period.
type Session struct {
	ID        string
	Direction Direction
	StartedAt time.Time

	buffer    *audio.WindowBuffer
	extractor *audio.FeatureExtractor
	sequencer *stt.Sequencer
	detector  *amd.Detector
	coach     *coaching.Engine
	monitor   *compliance.Monitor

	mu         sync.Mutex
	phase      Phase
	endedAt    time.Time
	finalized  bool
	transcript []stt.Segment

	// Seal time per window, for end-to-end latency measurement
	sealedAt map[uint64]time.Time

	// In-flight transcription requests; waited on (bounded) at call end so
	// the final flush can attach before the summary
	inflight sync.WaitGroup

	subscribers map[int]chan messaging.Event
	nextSubID   int

	// Pipeline goroutine exit signal
	done chan struct{}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// EndedAt returns when the call ended (zero while active).
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// Transcript returns a snapshot of the attached segments, in attachment
// order.
func (s *Session) Transcript() []stt.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stt.Segment, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Subscribe registers an event feed for this call. The returned cancel
// function must be called when the consumer goes away.
func (s *Session) Subscribe() (<-chan messaging.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan messaging.Event, 32)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// fanout delivers an event to all subscribers without blocking; a slow
// consumer loses events rather than stalling the pipeline.
func (s *Session) fanout(event messaging.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// closeSubscribers drops all event feeds. Called at archive time.
func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}
