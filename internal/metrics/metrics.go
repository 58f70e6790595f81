// Package metrics exposes Prometheus instrumentation for the analyzer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Parsing metrics
	LinesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_lines_processed_total",
			Help: "Non-blank log lines handed to the classifiers",
		},
	)

	LineDiagnostics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_line_diagnostics_total",
			Help: "Recovered per-line problems by kind",
		},
		[]string{"kind"},
	)

	RecordsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_records_parsed_total",
			Help: "Parsed records by component",
		},
		[]string{"component"},
	)

	MessagesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_messages_emitted_total",
			Help: "Unified messages produced by protocol and type",
		},
		[]string{"protocol", "type"},
	)

	ParseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecu_analyzer_parse_duration_seconds",
			Help:    "Time to convert one batch of log text",
			Buckets: prometheus.DefBuckets,
		},
	)

	FileReadErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_file_read_errors_total",
			Help: "Input files that were empty or unreadable",
		},
	)

	// KPI metrics
	KPIResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_kpi_results_total",
			Help: "KPI evaluations by outcome",
		},
		[]string{"status"},
	)

	// Monitoring metrics
	MonitorBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecu_analyzer_monitor_batches_total",
			Help: "Batches delivered to monitor subscribers by session mode",
		},
		[]string{"mode"},
	)

	MonitorActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecu_analyzer_monitor_active",
			Help: "Whether a monitoring session is running (1 = running)",
		},
	)

	ParseSessionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecu_analyzer_parse_sessions",
			Help: "Parse sessions held in memory by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		LinesProcessed,
		LineDiagnostics,
		RecordsParsed,
		MessagesEmitted,
		ParseDuration,
		FileReadErrors,
		KPIResults,
		MonitorBatches,
		MonitorActive,
		ParseSessionsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation into a histogram.
type Timer struct {
	start     time.Time
	histogram prometheus.Observer
}

// NewTimer starts a timer for h.
func NewTimer(h prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// ObserveDuration records the elapsed time.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.histogram.Observe(d.Seconds())
	return d
}
