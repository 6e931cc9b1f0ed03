package stt

import (
	"context"
	"fmt"
	"os"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"call-analysis-engine/pkg/config"
)

// GoogleProvider transcribes windows with Google Cloud Speech-to-Text.
type GoogleProvider struct {
	logger *logrus.Logger
	cfg    *config.STTConfig
	client *speech.Client
}

// NewGoogleProvider creates a Google Speech-to-Text provider.
func NewGoogleProvider(logger *logrus.Logger, cfg *config.STTConfig) *GoogleProvider {
	return &GoogleProvider{
		logger: logger,
		cfg:    cfg,
	}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Initialize creates the Speech client.
func (p *GoogleProvider) Initialize() error {
	if !p.cfg.Google.Enabled {
		p.logger.Info("Google STT is disabled, skipping initialization")
		return nil
	}

	var clientOptions []option.ClientOption
	if p.cfg.Google.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(p.cfg.Google.APIKey))
	} else if p.cfg.Google.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.cfg.Google.CredentialsFile))
	} else {
		return fmt.Errorf("google STT requires either API key or credentials file")
	}

	var err error
	p.client, err = speech.NewClient(context.Background(), clientOptions...)
	if err != nil {
		return fmt.Errorf("failed to create Google Speech client: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"language":       p.cfg.Language,
		"model":          p.cfg.Google.Model,
		"enhanced_model": p.cfg.Google.EnhancedModel,
	}).Info("Google Speech-to-Text client initialized")
	return nil
}

// Transcribe sends one window through the synchronous Recognize API. The
// scratch WAV written for the request is removed before returning.
func (p *GoogleProvider) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if p.client == nil {
		return nil, ErrInitializationFailed
	}

	path, err := writeTempWAV(p.cfg.TempDir, req.SampleRate, req.PCM)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch audio file: %w", err)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(req.SampleRate),
		LanguageCode:               p.cfg.Language,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
	}
	if p.cfg.Google.Model != "" {
		recognitionConfig.Model = p.cfg.Google.Model
	}
	if p.cfg.Google.EnhancedModel {
		recognitionConfig.UseEnhanced = true
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return nil, err
	}

	windowDur := time.Duration(len(req.PCM)) * time.Second / time.Duration(req.SampleRate)
	result := &Result{Provider: p.Name()}

	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		seg := Segment{
			Speaker:    SpeakerContact,
			Text:       alt.Transcript,
			Start:      req.Offset,
			End:        req.Offset + windowDur,
			Confidence: float64(alt.Confidence),
			WindowSeq:  req.WindowSeq,
		}
		if len(alt.Words) > 0 {
			if first := alt.Words[0]; first.StartTime != nil {
				seg.Start = req.Offset + first.StartTime.AsDuration()
			}
			if last := alt.Words[len(alt.Words)-1]; last.EndTime != nil {
				seg.End = req.Offset + last.EndTime.AsDuration()
			}
		}
		result.Segments = append(result.Segments, seg)
	}

	return result, nil
}
