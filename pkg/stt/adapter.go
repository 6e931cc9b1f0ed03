package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/config"
)

// Adapter fronts the hosted speech-to-text service for the call pipelines.
// Every request carries a hard timeout; a timeout counts as a transcription
// failure for that window and never aborts the call's analysis.
type Adapter struct {
	logger  *logrus.Entry
	cfg     *config.STTConfig
	manager *ProviderManager
}

// NewAdapter creates a transcription adapter over the provider registry.
func NewAdapter(logger *logrus.Logger, cfg *config.STTConfig, manager *ProviderManager) *Adapter {
	return &Adapter{
		logger:  logger.WithField("component", "stt_adapter"),
		cfg:     cfg,
		manager: manager,
	}
}

// Transcribe converts one window to text via the default provider, retrying
// transient failures within the request timeout.
func (a *Adapter) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	provider, ok := a.manager.GetDefaultProvider()
	if !ok {
		return nil, ErrNoProviderAvailable
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	var result *Result
	operation := func() error {
		r, err := provider.Transcribe(reqCtx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.cfg.MaxRetries),
		reqCtx,
	)

	start := time.Now()
	err := backoff.Retry(operation, policy)
	elapsed := time.Since(start)

	logger := a.logger.WithFields(logrus.Fields{
		"call_uuid":   req.CallID,
		"window_seq":  req.WindowSeq,
		"provider":    provider.Name(),
		"duration_ms": elapsed.Milliseconds(),
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Transcription request timed out")
			return nil, fmt.Errorf("%w after %s: %v", ErrTranscriptionTimeout, a.cfg.RequestTimeout, err)
		}
		logger.WithError(err).Warn("Transcription request failed")
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	logger.WithField("segments", len(result.Segments)).Debug("Transcription completed")
	return result, nil
}
