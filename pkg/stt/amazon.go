package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/audio"
	"call-analysis-engine/pkg/config"
)

// AmazonProvider transcribes windows with Amazon Transcribe streaming.
type AmazonProvider struct {
	logger *logrus.Logger
	cfg    *config.STTConfig
	client *transcribestreaming.Client
}

// NewAmazonProvider creates an Amazon Transcribe provider.
func NewAmazonProvider(logger *logrus.Logger, cfg *config.STTConfig) *AmazonProvider {
	return &AmazonProvider{
		logger: logger,
		cfg:    cfg,
	}
}

// Name returns the provider name.
func (p *AmazonProvider) Name() string {
	return "amazon"
}

// Initialize creates the Transcribe streaming client.
func (p *AmazonProvider) Initialize() error {
	if !p.cfg.Amazon.Enabled {
		p.logger.Info("Amazon STT is disabled, skipping initialization")
		return nil
	}

	if p.cfg.Amazon.AccessKeyID == "" || p.cfg.Amazon.SecretAccessKey == "" {
		return fmt.Errorf("amazon STT requires AWS access key ID and secret access key")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(p.cfg.Amazon.Region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     p.cfg.Amazon.AccessKeyID,
				SecretAccessKey: p.cfg.Amazon.SecretAccessKey,
			}, nil
		})),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	p.client = transcribestreaming.NewFromConfig(awsCfg)
	p.logger.WithFields(logrus.Fields{
		"region":   p.cfg.Amazon.Region,
		"language": p.cfg.Language,
	}).Info("Amazon Transcribe provider initialized")
	return nil
}

// Transcribe streams one window through Amazon Transcribe and collects the
// final results.
func (p *AmazonProvider) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if p.client == nil {
		return nil, ErrInitializationFailed
	}

	resp, err := p.client.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(p.cfg.Language),
		MediaSampleRateHertz: aws.Int32(int32(req.SampleRate)),
		MediaEncoding:        types.MediaEncodingPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start transcription stream: %w", err)
	}
	stream := resp.GetStream()
	defer stream.Close()

	// Send the whole window, then close the audio leg so the service
	// finalizes its results.
	sendErr := make(chan error, 1)
	go func() {
		pcm := audio.PCM16Bytes(req.PCM)
		const frame = 3200 // 200ms at 8kHz
		for off := 0; off < len(pcm); off += frame {
			end := off + frame
			if end > len(pcm) {
				end = len(pcm)
			}
			event := &types.AudioStreamMemberAudioEvent{
				Value: types.AudioEvent{AudioChunk: pcm[off:end]},
			}
			if err := stream.Send(ctx, event); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- stream.Close()
	}()

	windowDur := time.Duration(len(req.PCM)) * time.Second / time.Duration(req.SampleRate)
	result := &Result{Provider: p.Name()}

	for event := range stream.Events() {
		transcriptEvent, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || transcriptEvent.Value.Transcript == nil {
			continue
		}
		for _, r := range transcriptEvent.Value.Transcript.Results {
			if r.IsPartial || len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if alt.Transcript == nil || *alt.Transcript == "" {
				continue
			}
			seg := Segment{
				Speaker:   SpeakerContact,
				Text:      *alt.Transcript,
				Start:     req.Offset + time.Duration(r.StartTime*float64(time.Second)),
				End:       req.Offset + time.Duration(r.EndTime*float64(time.Second)),
				WindowSeq: req.WindowSeq,
			}
			if seg.End <= seg.Start {
				seg.End = req.Offset + windowDur
			}
			result.Segments = append(result.Segments, seg)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}
	if err := <-sendErr; err != nil && ctx.Err() == nil {
		return nil, err
	}

	return result, nil
}
