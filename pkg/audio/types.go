package audio

import "time"

// Chunk is one short slice (~20ms) of compressed telephony audio pushed by
// the media-streaming provider. Chunks are ephemeral: the buffer decodes them
// into the current window and discards the payload.
type Chunk struct {
	Sequence  uint32    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Codec     Codec     `json:"codec"`
	Payload   []byte    `json:"payload"`
}

// Window is an ordered, time-bounded aggregation of decoded chunks handed to
// the transcription adapter and the signal estimators.
type Window struct {
	CallID   string    `json:"call_id"`
	Sequence uint64    `json:"seq"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	// Decoded linear PCM at the configured sample rate
	PCM []int16 `json:"-"`

	ChunkCount    int    `json:"chunk_count"`
	FirstChunkSeq uint32 `json:"first_chunk_seq"`
	LastChunkSeq  uint32 `json:"last_chunk_seq"`

	// Discontinuity is set when chunks were lost or reordered around this
	// window, or when an earlier window was dropped under backlog.
	Discontinuity bool `json:"discontinuity"`
}

// Duration returns the audio length of the window at the given sample rate.
func (w *Window) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.PCM)) * time.Second / time.Duration(sampleRate)
}

// Floats returns the window samples normalized to [-1, 1].
func (w *Window) Floats() []float64 {
	return Normalize(w.PCM)
}

// BufferStats is a snapshot of per-call ingest counters.
type BufferStats struct {
	ChunksIngested  uint64 `json:"chunks_ingested"`
	ChunksDropped   uint64 `json:"chunks_dropped"`
	WindowsSealed   uint64 `json:"windows_sealed"`
	WindowsDropped  uint64 `json:"windows_dropped"`
	Discontinuities uint64 `json:"discontinuities"`
}
