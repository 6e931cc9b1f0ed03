package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry       *prometheus.Registry
	registryOnce   sync.Once
	metricsEnabled = true

	// Audio ingestion metrics
	ChunksIngested  *prometheus.CounterVec
	WindowsSealed   *prometheus.CounterVec
	Discontinuities *prometheus.CounterVec

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionLatency  *prometheus.HistogramVec
	TranscriptionGaps     *prometheus.CounterVec

	// Detection metrics
	AMDEvaluations    *prometheus.CounterVec
	AMDVerdictChanges *prometheus.CounterVec

	// Coaching and compliance metrics
	CoachingRecommendations *prometheus.CounterVec
	ComplianceFlags         *prometheus.CounterVec

	// Pipeline metrics
	PipelineLatency *prometheus.HistogramVec
	ActiveCalls     prometheus.Gauge

	// Event publishing metrics
	EventsPublished      *prometheus.CounterVec
	AMQPConnectionStatus prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ChunksIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_audio_chunks_ingested_total",
				Help: "Total number of audio chunks ingested",
			},
			[]string{"call_uuid"},
		)

		WindowsSealed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_audio_windows_sealed_total",
				Help: "Total number of audio windows sealed",
			},
			[]string{"call_uuid", "reason"},
		)

		Discontinuities = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_audio_discontinuities_total",
				Help: "Total number of audio stream discontinuities",
			},
			[]string{"call_uuid", "reason"},
		)

		TranscriptionRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_transcription_requests_total",
				Help: "Total number of transcription requests",
			},
			[]string{"provider", "status"},
		)

		TranscriptionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_transcription_latency_seconds",
				Help:    "Latency of transcription requests",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
			},
			[]string{"provider"},
		)

		TranscriptionGaps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_transcription_gaps_total",
				Help: "Total number of gap markers inserted for failed windows",
			},
			[]string{"call_uuid"},
		)

		AMDEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_amd_evaluations_total",
				Help: "Total number of AMD evaluations by resulting classification",
			},
			[]string{"classification"},
		)

		AMDVerdictChanges = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_amd_verdict_changes_total",
				Help: "Total number of AMD verdict transitions",
			},
			[]string{"from", "to"},
		)

		CoachingRecommendations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_coaching_recommendations_total",
				Help: "Total number of coaching recommendations emitted",
			},
			[]string{"category", "urgency"},
		)

		ComplianceFlags = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_compliance_flags_total",
				Help: "Total number of compliance flags raised",
			},
			[]string{"risk_type", "requires_action"},
		)

		PipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_pipeline_latency_seconds",
				Help:    "Per-stage processing latency from audio arrival",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"stage"},
		)

		ActiveCalls = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_active_calls",
				Help: "Number of calls currently being analyzed",
			},
		)

		EventsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_events_published_total",
				Help: "Total number of analysis events published",
			},
			[]string{"transport", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_amqp_connection_status",
				Help: "Status of AMQP connection (1 = connected, 0 = disconnected)",
			},
		)

		registry.MustRegister(
			ChunksIngested,
			WindowsSealed,
			Discontinuities,

			TranscriptionRequests,
			TranscriptionLatency,
			TranscriptionGaps,

			AMDEvaluations,
			AMDVerdictChanges,

			CoachingRecommendations,
			ComplianceFlags,

			PipelineLatency,
			ActiveCalls,

			EventsPublished,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// Handler returns the HTTP handler serving the registry, or nil when metrics
// are disabled or uninitialized.
func Handler() http.Handler {
	if !metricsEnabled || registry == nil {
		return nil
	}
	return promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          registry,
		},
	)
}
