package stt

import "sync"

// Attachment is the in-order transcription outcome for one window. Gap is
// set when the window's transcription failed and a gap marker should be
// recorded in its place.
type Attachment struct {
	WindowSeq uint64
	Segments  []Segment
	Gap       bool
}

// Sequencer guarantees per-call ordering: windows are ticketed in seal order
// and attachments are delivered in ticket order even when the underlying
// network calls complete out of order. A failed window is delivered as a gap
// and never blocks later windows.
type Sequencer struct {
	mu         sync.Mutex
	nextTicket uint64
	nextOut    uint64
	pending    map[uint64]*Attachment

	// deliver runs with the sequencer lock held; it must be fast and must
	// not call back into the sequencer
	deliver func(*Attachment)
}

// NewSequencer creates a sequencer delivering attachments to the given sink.
func NewSequencer(deliver func(*Attachment)) *Sequencer {
	return &Sequencer{
		pending: make(map[uint64]*Attachment),
		deliver: deliver,
	}
}

// Submit reserves the next delivery slot. Call before starting the window's
// transcription request.
func (s *Sequencer) Submit() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket := s.nextTicket
	s.nextTicket++
	return ticket
}

// Complete records a successful transcription for a ticket.
func (s *Sequencer) Complete(ticket, windowSeq uint64, segments []Segment) {
	s.finish(ticket, &Attachment{WindowSeq: windowSeq, Segments: segments})
}

// Fail records a failed transcription for a ticket; a gap attachment is
// delivered in its slot.
func (s *Sequencer) Fail(ticket, windowSeq uint64) {
	s.finish(ticket, &Attachment{WindowSeq: windowSeq, Gap: true})
}

// Pending returns the number of completed attachments waiting on earlier
// tickets.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Sequencer) finish(ticket uint64, att *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[ticket] = att
	for {
		next, ok := s.pending[s.nextOut]
		if !ok {
			return
		}
		delete(s.pending, s.nextOut)
		s.nextOut++
		s.deliver(next)
	}
}
