package stt

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Speaker labels for transcript segments.
const (
	SpeakerAgent   = "agent"
	SpeakerContact = "contact"
)

// Segment is one timestamped piece of transcribed speech. Segments are
// append-only per call; insertion order is chronological order.
type Segment struct {
	Speaker    string        `json:"speaker"`
	Text       string        `json:"text"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"`

	// Gap marks a placeholder inserted where a window's transcription
	// failed; the analysis pipeline continues past it.
	Gap bool `json:"gap,omitempty"`

	WindowSeq uint64 `json:"window_seq"`
}

// Request carries one sealed audio window to a provider.
type Request struct {
	CallID     string
	WindowSeq  uint64
	SampleRate int
	PCM        []int16
	Language   string

	// Offset of the window start from the call start, used to place
	// returned segments on the call timeline
	Offset time.Duration
}

// Result is the transcription of one window.
type Result struct {
	Provider string
	Segments []Segment
}

// Provider is a hosted speech-to-text backend. Implementations must respect
// the request context; the adapter enforces a hard per-request timeout.
type Provider interface {
	// Initialize prepares the provider (client construction, credential
	// checks). Called once at registration.
	Initialize() error

	// Name returns the provider name used in configuration and logs.
	Name() string

	// Transcribe converts one audio window to text segments.
	Transcribe(ctx context.Context, req *Request) (*Result, error)
}

// ProviderManager is a registry of speech-to-text providers with a default.
type ProviderManager struct {
	logger          *logrus.Logger
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderManager creates a provider registry.
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger,
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider initializes and registers a provider.
func (m *ProviderManager) RegisterProvider(provider Provider) error {
	if err := provider.Initialize(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err,
		}).Error("Failed to initialize speech-to-text provider")
		return err
	}

	m.providers[provider.Name()] = provider
	m.logger.WithField("provider", provider.Name()).Info("Registered speech-to-text provider")
	return nil
}

// GetProvider returns a provider by name.
func (m *ProviderManager) GetProvider(name string) (Provider, bool) {
	provider, exists := m.providers[name]
	return provider, exists
}

// GetDefaultProvider returns the configured default provider.
func (m *ProviderManager) GetDefaultProvider() (Provider, bool) {
	return m.GetProvider(m.defaultProvider)
}
