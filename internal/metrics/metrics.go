// Package metrics exposes extraction counters as Prometheus collectors
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/73ai/docextract/internal/parser"
)

const namespace = "docextract"

// Metrics holds the extraction collectors in a dedicated registry, so
// several extractors in one process never collide. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// filesProcessed counts extracted files.
	// Labels: language, status (ok, error)
	filesProcessed *prometheus.CounterVec

	// declarations counts recognized declarations.
	// Labels: language, kind
	declarations *prometheus.CounterVec

	// documented counts declarations bound to a comment.
	// Labels: language, kind
	documented *prometheus.CounterVec

	// warnings counts non-fatal extraction warnings.
	// Labels: language, code
	warnings *prometheus.CounterVec

	// extractDuration measures per-file extraction time.
	// Labels: language
	extractDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them in a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		filesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Source files processed by status",
		}, []string{"language", "status"}),
		declarations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declarations_total",
			Help:      "Declarations recognized",
		}, []string{"language", "kind"}),
		documented: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documented_declarations_total",
			Help:      "Declarations with a bound documentation comment",
		}, []string{"language", "kind"}),
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal extraction warnings by code",
		}, []string{"language", "code"}),
		extractDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time to extract one source file",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"language"}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveResult records a successful extraction
func (m *Metrics) ObserveResult(res *parser.Result, elapsed time.Duration) {
	if m == nil || res == nil {
		return
	}

	m.filesProcessed.WithLabelValues(res.Language, "ok").Inc()
	m.extractDuration.WithLabelValues(res.Language).Observe(elapsed.Seconds())
	for _, b := range res.Bindings {
		kind := string(b.Declaration.Kind)
		m.declarations.WithLabelValues(res.Language, kind).Inc()
		if b.Documented() {
			m.documented.WithLabelValues(res.Language, kind).Inc()
		}
	}
	for _, w := range res.Warnings {
		m.warnings.WithLabelValues(res.Language, w.Code).Inc()
	}
}

// ObserveFailure records a file that could not be extracted
func (m *Metrics) ObserveFailure(language string) {
	if m == nil {
		return
	}
	if language == "" {
		language = "unknown"
	}
	m.filesProcessed.WithLabelValues(language, "error").Inc()
}

// WriteTextfile writes the registry in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
