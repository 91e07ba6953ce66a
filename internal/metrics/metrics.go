// Package metrics exposes process metrics for bundle analysis runs.
//
// Metrics live in a package-owned registry rather than the global default so
// that tests and embedding programs start from a clean slate. The CLI dumps
// the registry in Prometheus text format for textfile collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every bundlescope metric.
var Registry = prometheus.NewRegistry()

var (
	assetsParsed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bscope_assets_parsed_total",
			Help: "Total number of assets parsed, by content type",
		},
		[]string{"type"},
	)
	extractFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bscope_module_extract_failures_total",
			Help: "Assets whose module list could not be extracted",
		},
		[]string{"family"},
	)
	auditFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bscope_audit_failures_total",
			Help: "Audit rule runs that failed or returned an invalid result",
		},
		[]string{"rule"},
	)
	sandboxRuns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bscope_sandbox_runs_total",
			Help: "Sandboxed script runs, by outcome",
		},
		[]string{"outcome"},
	)
	parseDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bscope_parse_duration_seconds",
			Help:    "Wall-clock duration of a full stats parse",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Sandbox outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeMemory  = "memory"
	OutcomeError   = "error"
)

// RecordAssetParsed counts one parsed asset.
func RecordAssetParsed(contentType string) {
	assetsParsed.WithLabelValues(contentType).Inc()
}

// RecordExtractFailure counts one failed module extraction.
func RecordExtractFailure(family string) {
	extractFailures.WithLabelValues(family).Inc()
}

// RecordAuditFailure counts one failed rule run.
func RecordAuditFailure(rule string) {
	auditFailures.WithLabelValues(rule).Inc()
}

// RecordSandboxRun counts one sandbox run.
func RecordSandboxRun(outcome string) {
	sandboxRuns.WithLabelValues(outcome).Inc()
}

// ObserveParse records the duration of a parse that started at start.
func ObserveParse(start time.Time) {
	parseDuration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry to path in Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
