package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the realtime audio service
type Metrics struct {
	// Ingest packet metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	ParseErrors      prometheus.Counter
	PacketsLost      prometheus.Counter
	QueueSize        prometheus.Gauge

	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Detection metrics
	WindowsScored  prometheus.Counter
	ScorerErrors   prometheus.Counter
	SamplesDropped prometheus.Counter
	SpeechStarts   prometheus.Counter

	// Segment metrics
	SegmentsEmitted   prometheus.Counter
	SegmentDuration   prometheus.Histogram
	SegmentSize       prometheus.Histogram
	SegmentConfidence prometheus.Histogram

	// Forwarding metrics
	ForwardRequests  prometheus.Counter
	ForwardSuccesses prometheus.Counter
	ForwardFailures  prometheus.Counter
	ForwardDuration  prometheus.Histogram
	ForwardRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Ingest packet metrics
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_packets_received_total",
			Help: "Total number of ingest packets received",
		}),
		PacketsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_packets_processed_total",
			Help: "Total number of ingest packets successfully processed",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_parse_errors_total",
			Help: "Total number of packet parsing errors",
		}),
		PacketsLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_packets_lost_total",
			Help: "Total number of packets written off by sequence reordering",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtaudio_packet_queue_size",
			Help: "Current number of packets in processing queue",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rtaudio_active_sessions",
			Help: "Current number of active audio sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtaudio_session_duration_seconds",
			Help:    "Duration of audio sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		// Detection metrics
		WindowsScored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_windows_scored_total",
			Help: "Total number of audio windows scored",
		}),
		ScorerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_scorer_errors_total",
			Help: "Total number of recoverable scorer failures",
		}),
		SamplesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_samples_dropped_total",
			Help: "Total number of samples dropped under the buffering cap",
		}),
		SpeechStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_speech_starts_total",
			Help: "Total number of speech start transitions",
		}),

		// Segment metrics
		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_segments_emitted_total",
			Help: "Total number of speech segments emitted",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtaudio_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		SegmentSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtaudio_segment_size_samples",
			Help:    "Size of emitted speech segments in samples",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 12), // 4K to ~16M samples
		}),
		SegmentConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtaudio_segment_confidence",
			Help:    "Confidence score of emitted speech segments",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Forwarding metrics
		ForwardRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_forward_requests_total",
			Help: "Total number of segment forwarding requests sent",
		}),
		ForwardSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_forward_successes_total",
			Help: "Total number of successful forwarding requests",
		}),
		ForwardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_forward_failures_total",
			Help: "Total number of failed forwarding requests",
		}),
		ForwardDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtaudio_forward_duration_seconds",
			Help:    "Duration of forwarding requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		ForwardRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rtaudio_forward_retries_total",
			Help: "Total number of forwarding request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtaudio_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtaudio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rtaudio_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the packets received counter
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed increments the packets processed counter
func (m *Metrics) RecordPacketProcessed() {
	m.PacketsProcessed.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordPacketsLost adds to the lost packets counter
func (m *Metrics) RecordPacketsLost(count int) {
	m.PacketsLost.Add(float64(count))
}

// SetQueueSize sets the current queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed increments the sessions destroyed counter and records duration
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordWindowsScored adds to the windows scored counter
func (m *Metrics) RecordWindowsScored(count int) {
	m.WindowsScored.Add(float64(count))
}

// RecordScorerError increments the scorer errors counter
func (m *Metrics) RecordScorerError() {
	m.ScorerErrors.Inc()
}

// RecordSamplesDropped adds to the dropped samples counter
func (m *Metrics) RecordSamplesDropped(count int) {
	m.SamplesDropped.Add(float64(count))
}

// RecordSpeechStart increments the speech starts counter
func (m *Metrics) RecordSpeechStart() {
	m.SpeechStarts.Inc()
}

// RecordSegmentEmitted records an emitted speech segment
func (m *Metrics) RecordSegmentEmitted(durationSeconds float64, sizeSamples int, confidence float64) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
	m.SegmentSize.Observe(float64(sizeSamples))
	m.SegmentConfidence.Observe(confidence)
}

// RecordForwardRequest increments the forwarding requests counter
func (m *Metrics) RecordForwardRequest() {
	m.ForwardRequests.Inc()
}

// RecordForwardSuccess records a successful forwarding request
func (m *Metrics) RecordForwardSuccess(durationSeconds float64) {
	m.ForwardSuccesses.Inc()
	m.ForwardDuration.Observe(durationSeconds)
}

// RecordForwardFailure records a failed forwarding request
func (m *Metrics) RecordForwardFailure(durationSeconds float64) {
	m.ForwardFailures.Inc()
	m.ForwardDuration.Observe(durationSeconds)
}

// RecordForwardRetry increments the retry counter
func (m *Metrics) RecordForwardRetry() {
	m.ForwardRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
