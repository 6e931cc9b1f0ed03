package stt

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MockResponse scripts the mock provider's behavior for one window sequence.
type MockResponse struct {
	Segments []Segment
	Err      error
	Delay    time.Duration
}

// MockProvider is a deterministic in-process provider used in tests and local
// development. Unscripted windows get an empty result for silent audio and a
// canned sentence otherwise.
type MockProvider struct {
	logger *logrus.Logger

	mu     sync.Mutex
	script map[uint64]MockResponse
	calls  int
}

// NewMockProvider creates a mock provider.
func NewMockProvider(logger *logrus.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
		script: make(map[uint64]MockResponse),
	}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Initialize is a no-op for the mock provider.
func (p *MockProvider) Initialize() error {
	p.logger.Info("Mock STT provider initialized")
	return nil
}

// Stub scripts the response for a window sequence.
func (p *MockProvider) Stub(windowSeq uint64, resp MockResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script[windowSeq] = resp
}

// Calls returns how many transcription requests the mock has served.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Transcribe returns the scripted response for the window, or a default
// derived from the audio content.
func (p *MockProvider) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	p.mu.Lock()
	p.calls++
	resp, scripted := p.script[req.WindowSeq]
	p.mu.Unlock()

	if scripted && resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(resp.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if scripted {
		if resp.Err != nil {
			return nil, resp.Err
		}
		return &Result{Provider: p.Name(), Segments: resp.Segments}, nil
	}

	if isSilent(req.PCM) {
		return &Result{Provider: p.Name()}, nil
	}

	windowDur := time.Duration(len(req.PCM)) * time.Second / time.Duration(req.SampleRate)
	return &Result{
		Provider: p.Name(),
		Segments: []Segment{{
			Speaker:    SpeakerContact,
			Text:       "hello this is a mock transcription",
			Start:      req.Offset,
			End:        req.Offset + windowDur,
			Confidence: 0.95,
			WindowSeq:  req.WindowSeq,
		}},
	}, nil
}

// isSilent reports whether the window carries no meaningful signal.
func isSilent(pcm []int16) bool {
	if len(pcm) == 0 {
		return true
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	// RMS below ~1% of full scale
	return sum/float64(len(pcm)) < 327.68*327.68
}
