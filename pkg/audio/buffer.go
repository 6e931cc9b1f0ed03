package audio

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/config"
)

// WindowBuffer accumulates inbound chunks for one call into time-aligned
// windows. Ingest never blocks the media transport: sealed windows go onto a
// bounded queue and the oldest pending window is dropped when the queue is
// full. Losing analysis fidelity is preferable to stalling the call.
type WindowBuffer struct {
	logger *logrus.Entry
	cfg    *config.AudioConfig
	callID string

	mu sync.Mutex

	// Current open window
	pcm           []int16
	chunkCount    int
	firstChunkSeq uint32
	lastChunkSeq  uint32
	openedAt      time.Time
	lastChunkAt   time.Time

	// Sequencing
	haveSeq       bool
	nextWindowSeq uint64

	// The next sealed window is flagged when chunks were lost or reordered
	pendingDiscontinuity bool

	out    chan *Window
	closed bool

	stats BufferStats
}

// NewWindowBuffer creates a buffer for one call. Sealed windows are delivered
// on Windows().
func NewWindowBuffer(logger *logrus.Logger, cfg *config.AudioConfig, callID string) *WindowBuffer {
	return &WindowBuffer{
		logger: logger.WithField("component", "window_buffer").WithField("call_uuid", callID),
		cfg:    cfg,
		callID: callID,
		out:    make(chan *Window, cfg.QueueSize),
	}
}

// Windows returns the sealed-window queue consumed by the call pipeline.
func (b *WindowBuffer) Windows() <-chan *Window {
	return b.out
}

// Ingest appends a chunk to the current window. Out-of-order chunks are
// dropped and counted as discontinuities. The call never blocks.
func (b *WindowBuffer) Ingest(chunk Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if b.haveSeq && chunk.Sequence <= b.lastChunkSeq {
		b.stats.ChunksDropped++
		b.stats.Discontinuities++
		b.pendingDiscontinuity = true
		b.logger.WithFields(logrus.Fields{
			"chunk_seq": chunk.Sequence,
			"last_seq":  b.lastChunkSeq,
		}).Debug("Dropped out-of-order audio chunk")
		return
	}

	samples, err := Decode(chunk.Codec, chunk.Payload)
	if err != nil {
		b.stats.ChunksDropped++
		b.logger.WithError(err).WithField("chunk_seq", chunk.Sequence).Warn("Failed to decode audio chunk")
		return
	}

	if b.haveSeq && chunk.Sequence != b.lastChunkSeq+1 {
		// Gap in the stream: keep the chunk, mark the window
		b.stats.Discontinuities++
		b.pendingDiscontinuity = true
	}

	now := time.Now()
	if b.chunkCount == 0 {
		b.openedAt = now
		b.firstChunkSeq = chunk.Sequence
	}
	b.pcm = append(b.pcm, samples...)
	b.chunkCount++
	b.lastChunkSeq = chunk.Sequence
	b.haveSeq = true
	b.lastChunkAt = now
	b.stats.ChunksIngested++

	if b.chunkCount >= b.cfg.WindowChunks || now.Sub(b.openedAt) >= b.cfg.WindowMaxAge {
		b.sealLocked(now)
	}
}

// FlushIdle force-seals the current partial window when no chunks have
// arrived for the configured idle period. Called periodically by the call
// pipeline to bound latency.
func (b *WindowBuffer) FlushIdle(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.chunkCount == 0 {
		return
	}
	if now.Sub(b.lastChunkAt) >= b.cfg.IdleFlush {
		b.sealLocked(now)
	}
}

// Flush seals whatever partial window remains. Used at call end.
func (b *WindowBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.chunkCount > 0 {
		b.sealLocked(time.Now())
	}
}

// Close flushes the final partial window and closes the window queue.
func (b *WindowBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.chunkCount > 0 {
		b.sealLocked(time.Now())
	}
	b.closed = true
	close(b.out)
}

// Stats returns a snapshot of the ingest counters.
func (b *WindowBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// sealLocked hands the current window to the queue and starts a new one.
// Caller must hold b.mu.
func (b *WindowBuffer) sealLocked(now time.Time) {
	w := &Window{
		CallID:        b.callID,
		Sequence:      b.nextWindowSeq,
		Start:         b.openedAt,
		End:           now,
		PCM:           b.pcm,
		ChunkCount:    b.chunkCount,
		FirstChunkSeq: b.firstChunkSeq,
		LastChunkSeq:  b.lastChunkSeq,
		Discontinuity: b.pendingDiscontinuity,
	}
	b.nextWindowSeq++
	b.pendingDiscontinuity = false
	b.pcm = nil
	b.chunkCount = 0
	b.stats.WindowsSealed++

	select {
	case b.out <- w:
		return
	default:
	}

	// Queue full: transcription backlog. Drop the oldest pending window
	// rather than applying backpressure to the transport.
	select {
	case dropped := <-b.out:
		b.stats.WindowsDropped++
		b.stats.Discontinuities++
		b.pendingDiscontinuity = true
		b.logger.WithField("window_seq", dropped.Sequence).Warn("Window queue full, dropped oldest unprocessed window")
	default:
	}

	select {
	case b.out <- w:
	default:
		// Still full (raced with a slow consumer); drop the new window
		b.stats.WindowsDropped++
		b.stats.Discontinuities++
		b.pendingDiscontinuity = true
		b.logger.WithField("window_seq", w.Sequence).Warn("Window queue full, dropped sealed window")
	}
}
