package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the complete engine configuration. It is loaded once at startup,
// validated, and passed by reference into each component.
type Config struct {
	Audio      AudioConfig      `json:"audio"`
	STT        STTConfig        `json:"stt"`
	AMD        AMDConfig        `json:"amd"`
	Coaching   CoachingConfig   `json:"coaching"`
	Compliance ComplianceConfig `json:"compliance"`
	Engine     EngineConfig     `json:"engine"`
	HTTP       HTTPConfig       `json:"http"`
	Messaging  MessagingConfig  `json:"messaging"`
	Logging    LoggingConfig    `json:"logging"`
}

// AudioConfig controls chunk windowing and the ingest queue.
type AudioConfig struct {
	// Sample rate of the telephony audio (G.711 is 8kHz)
	SampleRate int `json:"sample_rate" env:"AUDIO_SAMPLE_RATE" default:"8000"`

	// Chunks per sealed window (~20ms per chunk, 50 chunks ~= 1s)
	WindowChunks int `json:"window_chunks" env:"AUDIO_WINDOW_CHUNKS" default:"50"`

	// Maximum age of an open window before it is force-sealed
	WindowMaxAge time.Duration `json:"window_max_age" env:"AUDIO_WINDOW_MAX_AGE" default:"1500ms"`

	// Idle period after which a partial window is flushed
	IdleFlush time.Duration `json:"idle_flush" env:"AUDIO_IDLE_FLUSH" default:"2s"`

	// Capacity of the sealed-window queue between ingest and processing.
	// When full, the oldest pending window is dropped.
	QueueSize int `json:"queue_size" env:"AUDIO_QUEUE_SIZE" default:"16"`
}

// STTConfig controls the transcription adapter.
type STTConfig struct {
	// Default provider: google, amazon or mock
	DefaultProvider string `json:"default_provider" env:"STT_DEFAULT_PROVIDER" default:"mock"`

	// Hard per-request timeout; a timeout counts as a transcription failure
	RequestTimeout time.Duration `json:"request_timeout" env:"STT_REQUEST_TIMEOUT" default:"5s"`

	// Bounded retries within the request timeout
	MaxRetries uint64 `json:"max_retries" env:"STT_MAX_RETRIES" default:"2"`

	// Directory for scratch audio files sent to hosted providers
	TempDir string `json:"temp_dir" env:"STT_TEMP_DIR" default:""`

	Language string `json:"language" env:"STT_LANGUAGE" default:"en-US"`

	Google GoogleSTTConfig `json:"google"`
	Amazon AmazonSTTConfig `json:"amazon"`
}

// GoogleSTTConfig holds Google Cloud Speech-to-Text settings.
type GoogleSTTConfig struct {
	Enabled         bool   `json:"enabled" env:"GOOGLE_STT_ENABLED" default:"false"`
	APIKey          string `json:"api_key" env:"GOOGLE_STT_API_KEY"`
	CredentialsFile string `json:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Model           string `json:"model" env:"GOOGLE_STT_MODEL" default:"phone_call"`
	EnhancedModel   bool   `json:"enhanced_model" env:"GOOGLE_STT_ENHANCED" default:"true"`
}

// AmazonSTTConfig holds Amazon Transcribe settings.
type AmazonSTTConfig struct {
	Enabled         bool   `json:"enabled" env:"AMAZON_STT_ENABLED" default:"false"`
	Region          string `json:"region" env:"AWS_REGION" default:"us-east-1"`
	AccessKeyID     string `json:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

// AMDConfig holds the fusion thresholds and per-estimator weights. These are
// deliberately configuration, not constants: the accuracy tracker is the
// feedback loop used to retune them.
type AMDConfig struct {
	// Combined score >= MachineThreshold yields verdict "machine"
	MachineThreshold float64 `json:"machine_threshold" env:"AMD_MACHINE_THRESHOLD" default:"0.7"`

	// Combined score <= HumanThreshold yields verdict "human"
	HumanThreshold float64 `json:"human_threshold" env:"AMD_HUMAN_THRESHOLD" default:"0.3"`

	// Evidence floor before a verdict is latched and can no longer regress
	// to undetermined
	MinSampleDuration  time.Duration `json:"min_sample_duration" env:"AMD_MIN_SAMPLE_DURATION" default:"5s"`
	MinTranscriptWords int           `json:"min_transcript_words" env:"AMD_MIN_TRANSCRIPT_WORDS" default:"4"`

	// Fusion weights per estimator
	SilenceWeight  float64 `json:"silence_weight" env:"AMD_SILENCE_WEIGHT" default:"1.0"`
	VoiceWeight    float64 `json:"voice_weight" env:"AMD_VOICE_WEIGHT" default:"1.0"`
	DurationWeight float64 `json:"duration_weight" env:"AMD_DURATION_WEIGHT" default:"1.0"`
	KeywordWeight  float64 `json:"keyword_weight" env:"AMD_KEYWORD_WEIGHT" default:"1.0"`
	EnergyWeight   float64 `json:"energy_weight" env:"AMD_ENERGY_WEIGHT" default:"1.0"`
}

// CoachingConfig controls recommendation triggers.
type CoachingConfig struct {
	// Consecutive negative contact segments before a de-escalation prompt
	NegativeStreak int `json:"negative_streak" env:"COACH_NEGATIVE_STREAK" default:"3"`

	// Agent speech with no contact response before a pacing prompt
	MonologueLimit time.Duration `json:"monologue_limit" env:"COACH_MONOLOGUE_LIMIT" default:"30s"`
}

// ComplianceConfig controls the compliance monitor.
type ComplianceConfig struct {
	// Time after connect within which the mandated disclosure must be heard
	DisclosureDeadline time.Duration `json:"disclosure_deadline" env:"COMPLIANCE_DISCLOSURE_DEADLINE" default:"30s"`

	// Tamper-evident audit log for flags; empty disables file persistence
	AuditLogPath string `json:"audit_log_path" env:"COMPLIANCE_AUDIT_LOG" default:""`
}

// EngineConfig controls per-call session lifecycle.
type EngineConfig struct {
	// How long an ended session is retained for outcome confirmation before
	// it is archived and its state released
	ArchiveGracePeriod time.Duration `json:"archive_grace_period" env:"ENGINE_ARCHIVE_GRACE_PERIOD" default:"15m"`

	// Janitor sweep interval
	SweepInterval time.Duration `json:"sweep_interval" env:"ENGINE_SWEEP_INTERVAL" default:"1m"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Port         int           `json:"port" env:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"30s"`
}

// MessagingConfig holds AMQP settings. AMQP is optional; with no URL the
// publisher is disabled and events only reach the WebSocket feed.
type MessagingConfig struct {
	AMQPURL      string `json:"amqp_url" env:"AMQP_URL"`
	QueueName    string `json:"queue_name" env:"AMQP_QUEUE_NAME" default:"call_analysis_events"`
	ExchangeName string `json:"exchange_name" env:"AMQP_EXCHANGE_NAME" default:""`
	RoutingKey   string `json:"routing_key" env:"AMQP_ROUTING_KEY" default:""`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from the environment (and a .env file if present)
// into a Config. Call Validate before using the result.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Audio: AudioConfig{
			SampleRate:   getEnvInt("AUDIO_SAMPLE_RATE", 8000),
			WindowChunks: getEnvInt("AUDIO_WINDOW_CHUNKS", 50),
			WindowMaxAge: getEnvDuration("AUDIO_WINDOW_MAX_AGE", 1500*time.Millisecond),
			IdleFlush:    getEnvDuration("AUDIO_IDLE_FLUSH", 2*time.Second),
			QueueSize:    getEnvInt("AUDIO_QUEUE_SIZE", 16),
		},
		STT: STTConfig{
			DefaultProvider: getEnvString("STT_DEFAULT_PROVIDER", "mock"),
			RequestTimeout:  getEnvDuration("STT_REQUEST_TIMEOUT", 5*time.Second),
			MaxRetries:      uint64(getEnvInt("STT_MAX_RETRIES", 2)),
			TempDir:         getEnvString("STT_TEMP_DIR", os.TempDir()),
			Language:        getEnvString("STT_LANGUAGE", "en-US"),
			Google: GoogleSTTConfig{
				Enabled:         getEnvBool("GOOGLE_STT_ENABLED", false),
				APIKey:          getEnvString("GOOGLE_STT_API_KEY", ""),
				CredentialsFile: getEnvString("GOOGLE_APPLICATION_CREDENTIALS", ""),
				Model:           getEnvString("GOOGLE_STT_MODEL", "phone_call"),
				EnhancedModel:   getEnvBool("GOOGLE_STT_ENHANCED", true),
			},
			Amazon: AmazonSTTConfig{
				Enabled:         getEnvBool("AMAZON_STT_ENABLED", false),
				Region:          getEnvString("AWS_REGION", "us-east-1"),
				AccessKeyID:     getEnvString("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnvString("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		AMD: AMDConfig{
			MachineThreshold:   getEnvFloat("AMD_MACHINE_THRESHOLD", 0.7),
			HumanThreshold:     getEnvFloat("AMD_HUMAN_THRESHOLD", 0.3),
			MinSampleDuration:  getEnvDuration("AMD_MIN_SAMPLE_DURATION", 5*time.Second),
			MinTranscriptWords: getEnvInt("AMD_MIN_TRANSCRIPT_WORDS", 4),
			SilenceWeight:      getEnvFloat("AMD_SILENCE_WEIGHT", 1.0),
			VoiceWeight:        getEnvFloat("AMD_VOICE_WEIGHT", 1.0),
			DurationWeight:     getEnvFloat("AMD_DURATION_WEIGHT", 1.0),
			KeywordWeight:      getEnvFloat("AMD_KEYWORD_WEIGHT", 1.0),
			EnergyWeight:       getEnvFloat("AMD_ENERGY_WEIGHT", 1.0),
		},
		Coaching: CoachingConfig{
			NegativeStreak: getEnvInt("COACH_NEGATIVE_STREAK", 3),
			MonologueLimit: getEnvDuration("COACH_MONOLOGUE_LIMIT", 30*time.Second),
		},
		Compliance: ComplianceConfig{
			DisclosureDeadline: getEnvDuration("COMPLIANCE_DISCLOSURE_DEADLINE", 30*time.Second),
			AuditLogPath:       getEnvString("COMPLIANCE_AUDIT_LOG", ""),
		},
		Engine: EngineConfig{
			ArchiveGracePeriod: getEnvDuration("ENGINE_ARCHIVE_GRACE_PERIOD", 15*time.Minute),
			SweepInterval:      getEnvDuration("ENGINE_SWEEP_INTERVAL", time.Minute),
		},
		HTTP: HTTPConfig{
			Port:         getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Messaging: MessagingConfig{
			AMQPURL:      getEnvString("AMQP_URL", ""),
			QueueName:    getEnvString("AMQP_QUEUE_NAME", "call_analysis_events"),
			ExchangeName: getEnvString("AMQP_EXCHANGE_NAME", ""),
			RoutingKey:   getEnvString("AMQP_ROUTING_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// ApplyLogging configures the logger from the loaded configuration.
func (c *Config) ApplyLogging(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("configured_level", c.Logging.Level).Warn("Unknown log level, defaulting to info")
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Validate checks the configuration for values the engine cannot run with.
// A validation failure is fatal at startup.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.WindowChunks <= 0 {
		return fmt.Errorf("audio window chunk count must be positive, got %d", c.Audio.WindowChunks)
	}
	if c.Audio.WindowMaxAge <= 0 {
		return fmt.Errorf("audio window max age must be positive, got %s", c.Audio.WindowMaxAge)
	}
	if c.Audio.IdleFlush <= 0 {
		return fmt.Errorf("audio idle flush must be positive, got %s", c.Audio.IdleFlush)
	}
	if c.Audio.QueueSize <= 0 {
		return fmt.Errorf("audio queue size must be positive, got %d", c.Audio.QueueSize)
	}

	switch c.STT.DefaultProvider {
	case "google", "amazon", "mock":
	default:
		return fmt.Errorf("unknown STT provider %q", c.STT.DefaultProvider)
	}
	if c.STT.RequestTimeout <= 0 {
		return fmt.Errorf("STT request timeout must be positive, got %s", c.STT.RequestTimeout)
	}
	if c.STT.DefaultProvider == "google" && !c.STT.Google.Enabled {
		return fmt.Errorf("STT provider google selected but GOOGLE_STT_ENABLED is false")
	}
	if c.STT.DefaultProvider == "amazon" && !c.STT.Amazon.Enabled {
		return fmt.Errorf("STT provider amazon selected but AMAZON_STT_ENABLED is false")
	}

	if err := c.AMD.Validate(); err != nil {
		return err
	}

	if c.Coaching.NegativeStreak <= 0 {
		return fmt.Errorf("coaching negative streak must be positive, got %d", c.Coaching.NegativeStreak)
	}
	if c.Coaching.MonologueLimit <= 0 {
		return fmt.Errorf("coaching monologue limit must be positive, got %s", c.Coaching.MonologueLimit)
	}
	if c.Compliance.DisclosureDeadline <= 0 {
		return fmt.Errorf("compliance disclosure deadline must be positive, got %s", c.Compliance.DisclosureDeadline)
	}
	if c.Engine.ArchiveGracePeriod <= 0 {
		return fmt.Errorf("archive grace period must be positive, got %s", c.Engine.ArchiveGracePeriod)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTP.Port)
	}
	return nil
}

// Validate checks the AMD fusion parameters.
func (a *AMDConfig) Validate() error {
	if a.MachineThreshold <= 0 || a.MachineThreshold > 1 {
		return fmt.Errorf("AMD machine threshold must be in (0,1], got %f", a.MachineThreshold)
	}
	if a.HumanThreshold < 0 || a.HumanThreshold >= 1 {
		return fmt.Errorf("AMD human threshold must be in [0,1), got %f", a.HumanThreshold)
	}
	if a.HumanThreshold >= a.MachineThreshold {
		return fmt.Errorf("AMD human threshold (%f) must be below machine threshold (%f)",
			a.HumanThreshold, a.MachineThreshold)
	}
	for name, w := range map[string]float64{
		"silence":  a.SilenceWeight,
		"voice":    a.VoiceWeight,
		"duration": a.DurationWeight,
		"keyword":  a.KeywordWeight,
		"energy":   a.EnergyWeight,
	} {
		if w < 0 {
			return fmt.Errorf("AMD %s estimator weight must not be negative, got %f", name, w)
		}
	}
	if a.SilenceWeight+a.VoiceWeight+a.DurationWeight+a.KeywordWeight+a.EnergyWeight == 0 {
		return fmt.Errorf("at least one AMD estimator weight must be positive")
	}
	if a.MinSampleDuration <= 0 {
		return fmt.Errorf("AMD min sample duration must be positive, got %s", a.MinSampleDuration)
	}
	if a.MinTranscriptWords < 0 {
		return fmt.Errorf("AMD min transcript words must not be negative, got %d", a.MinTranscriptWords)
	}
	return nil
}
