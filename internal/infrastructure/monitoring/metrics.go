package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing, so
// components can be built without a registry.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Interception metrics
	Classifications *prometheus.CounterVec
	Downloads       *prometheus.CounterVec
	Uploads         *prometheus.CounterVec
	UploadFiles     prometheus.Histogram
	EnhancedInputs  prometheus.Counter

	// Page metrics
	PagesActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehook_http_requests_total",
				Help: "Total number of bridge HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagehook_http_request_duration_seconds",
				Help:    "Bridge HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehook_clicks_total",
				Help: "Clicks by classification",
			},
			[]string{"classification"},
		),
		Downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehook_downloads_total",
				Help: "Download strategy outcomes",
			},
			[]string{"strategy", "result"},
		),
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehook_uploads_total",
				Help: "Upload outcomes by source",
			},
			[]string{"source", "result"},
		),
		UploadFiles: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagehook_upload_files",
				Help:    "Files per upload request",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
			},
		),
		EnhancedInputs: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagehook_enhanced_inputs_total",
				Help: "File inputs bound by enhancement passes",
			},
		),

		PagesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagehook_pages_active",
				Help: "Number of pages with an installed interceptor",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagehook_ws_connections",
				Help: "Number of active host WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehook_ws_messages_total",
				Help: "Total number of host WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// RecordHTTPRequest records a bridge HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordClassification counts one classified click
func (m *Metrics) RecordClassification(classification string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(classification).Inc()
}

// RecordDownload counts one download strategy outcome
func (m *Metrics) RecordDownload(strategy, result string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(strategy, result).Inc()
}

// RecordUpload counts one upload outcome
func (m *Metrics) RecordUpload(source, result string, files int) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(source, result).Inc()
	if files > 0 {
		m.UploadFiles.Observe(float64(files))
	}
}

// AddEnhancedInputs counts inputs bound by an enhancement pass
func (m *Metrics) AddEnhancedInputs(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EnhancedInputs.Add(float64(n))
}

// SetPagesActive sets the number of installed pages
func (m *Metrics) SetPagesActive(count int) {
	if m == nil {
		return
	}
	m.PagesActive.Set(float64(count))
}

// RecordWSMessage records a host WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
