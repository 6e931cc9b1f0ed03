package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-engine/pkg/config"
)

func newTestAdapter(t *testing.T, timeout time.Duration) (*Adapter, *MockProvider) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := &config.STTConfig{
		DefaultProvider: "mock",
		RequestTimeout:  timeout,
		MaxRetries:      0,
		Language:        "en-US",
	}
	manager := NewProviderManager(logger, "mock")
	mock := NewMockProvider(logger)
	require.NoError(t, manager.RegisterProvider(mock))

	return NewAdapter(logger, cfg, manager), mock
}

func loudWindow(seq uint64) *Request {
	pcm := make([]int16, 8000)
	for i := range pcm {
		pcm[i] = 12000
	}
	return &Request{CallID: "call-1", WindowSeq: seq, SampleRate: 8000, PCM: pcm}
}

func TestAdapterTranscribeSuccess(t *testing.T) {
	adapter, _ := newTestAdapter(t, time.Second)

	result, err := adapter.Transcribe(context.Background(), loudWindow(0))
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "mock", result.Provider)
}

func TestAdapterSilentWindowYieldsNoSegments(t *testing.T) {
	adapter, _ := newTestAdapter(t, time.Second)

	result, err := adapter.Transcribe(context.Background(), &Request{
		CallID: "call-1", WindowSeq: 0, SampleRate: 8000, PCM: make([]int16, 8000),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Segments)
}

func TestAdapterTimeoutCountsAsFailure(t *testing.T) {
	adapter, mock := newTestAdapter(t, 50*time.Millisecond)
	mock.Stub(0, MockResponse{Delay: time.Second})

	_, err := adapter.Transcribe(context.Background(), loudWindow(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptionTimeout), "timeout must map to ErrTranscriptionTimeout, got %v", err)
}

func TestAdapterProviderErrorMapsToFailure(t *testing.T) {
	adapter, mock := newTestAdapter(t, time.Second)
	mock.Stub(3, MockResponse{Err: errors.New("upstream 500")})

	_, err := adapter.Transcribe(context.Background(), loudWindow(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptionFailed))
}

func TestAdapterNoProvider(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	manager := NewProviderManager(logger, "google")
	adapter := NewAdapter(logger, &config.STTConfig{RequestTimeout: time.Second}, manager)

	_, err := adapter.Transcribe(context.Background(), loudWindow(0))
	assert.True(t, errors.Is(err, ErrNoProviderAvailable))
}
