// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_meeting_summary"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal  prometheus.Counter
	SessionsActive prometheus.Gauge
	CallsRejected  *prometheus.CounterVec

	// Viewer metrics
	ViewersActive      prometheus.Gauge
	ViewerConnectsTotal prometheus.Counter

	// Scheduler metrics
	SchedulersActive prometheus.Gauge
	TicksTotal       *prometheus.CounterVec
	TickDuration     prometheus.Histogram

	// Summary metrics
	SummariesGenerated prometheus.Counter
	AILatency          prometheus.Histogram
	AIErrors           prometheus.Counter

	// Broadcast metrics
	BroadcastsTotal     prometheus.Counter
	BroadcastSendErrors prometheus.Counter

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of meeting sessions registered",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions with an answered call",
		}),
		CallsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_rejected_total",
			Help:      "Total number of incoming calls rejected",
		}, []string{"reason"}),

		ViewersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_active",
			Help:      "Number of currently connected viewer websockets",
		}),
		ViewerConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_connects_total",
			Help:      "Total number of viewer websocket connections accepted",
		}),

		SchedulersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedulers_active",
			Help:      "Number of per-session summary jobs currently running",
		}),
		TicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_ticks_total",
			Help:      "Total number of summary scheduler ticks",
		}, []string{"result"}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_tick_duration_seconds",
			Help:      "Duration of summary scheduler ticks in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		SummariesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_generated_total",
			Help:      "Total number of summaries generated and persisted",
		}),
		AILatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_completion_latency_seconds",
			Help:      "AI completion call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		AIErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completion_errors_total",
			Help:      "Total number of failed AI completion calls",
		}),

		BroadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of session broadcasts attempted",
		}),
		BroadcastSendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_send_errors_total",
			Help:      "Total number of per-connection broadcast send failures",
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcript events relayed",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcript segments persisted",
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received from the call engine",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received from the call engine",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionRegistered records a new session being registered.
func (m *Metrics) RecordSessionRegistered() {
	m.SessionsTotal.Inc()
}

// RecordSessionActive records a session's call being answered.
func (m *Metrics) RecordSessionActive() {
	m.SessionsActive.Inc()
}

// RecordSessionEnded records a session ending.
func (m *Metrics) RecordSessionEnded() {
	m.SessionsActive.Dec()
}

// RecordCallRejected records an incoming call being rejected.
func (m *Metrics) RecordCallRejected(reason string) {
	m.CallsRejected.WithLabelValues(reason).Inc()
}

// RecordViewerConnected records a viewer websocket being accepted.
func (m *Metrics) RecordViewerConnected() {
	m.ViewerConnectsTotal.Inc()
	m.ViewersActive.Inc()
}

// RecordViewerDisconnected records a viewer websocket going away.
func (m *Metrics) RecordViewerDisconnected() {
	m.ViewersActive.Dec()
}

// RecordSchedulerStarted records a per-session summary job starting.
func (m *Metrics) RecordSchedulerStarted() {
	m.SchedulersActive.Inc()
}

// RecordSchedulerStopped records a per-session summary job stopping.
func (m *Metrics) RecordSchedulerStopped() {
	m.SchedulersActive.Dec()
}

// RecordTick records one scheduler tick with its outcome.
func (m *Metrics) RecordTick(result string, durationSeconds float64) {
	m.TicksTotal.WithLabelValues(result).Inc()
	m.TickDuration.Observe(durationSeconds)
}

// RecordSummaryGenerated records a summary being persisted.
func (m *Metrics) RecordSummaryGenerated() {
	m.SummariesGenerated.Inc()
}

// RecordAICall records an AI completion attempt.
func (m *Metrics) RecordAICall(err error, latencySeconds float64) {
	m.AILatency.Observe(latencySeconds)
	if err != nil {
		m.AIErrors.Inc()
	}
}

// RecordBroadcast records a session broadcast with the number of
// per-connection send failures.
func (m *Metrics) RecordBroadcast(sendErrors int) {
	m.BroadcastsTotal.Inc()
	for i := 0; i < sendErrors; i++ {
		m.BroadcastSendErrors.Inc()
	}
}

// RecordPartialTranscript records an interim transcript event.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a final transcript segment.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
