package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks cache refreshes and the reconciliation they trigger.
type ReconcileMetrics struct {
	refreshDuration *prometheus.HistogramVec
	refreshFailures *prometheus.CounterVec
	generation      *prometheus.GaugeVec
	cachedLines     *prometheus.GaugeVec
	modifiedLines   *prometheus.CounterVec
	warnings        *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconcile metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	m := &ReconcileMetrics{
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of cache refreshes by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		refreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Refreshes that left the previous cache generation in place.",
		}, []string{"mode"}),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_generation",
			Help:      "Current cache generation number.",
		}, []string{"cache"}),
		cachedLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_lines",
			Help:      "Lines held by the current cache generation.",
		}, []string{"cache"}),
		modifiedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_lines_total",
			Help:      "Lines recorded by reconciliation by kind.",
		}, []string{"kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_warnings_total",
			Help:      "Non-fatal warnings raised during refreshes.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.refreshDuration, m.refreshFailures, m.generation, m.cachedLines, m.modifiedLines, m.warnings)
	return m
}

func (m *ReconcileMetrics) ObserveRefresh(mode string, d time.Duration) {
	if m == nil || m.refreshDuration == nil {
		return
	}
	m.refreshDuration.WithLabelValues(normalizeLabel(mode)).Observe(d.Seconds())
}

func (m *ReconcileMetrics) IncRefreshFailure(mode string) {
	if m == nil || m.refreshFailures == nil {
		return
	}
	m.refreshFailures.WithLabelValues(normalizeLabel(mode)).Inc()
}

// SetGeneration publishes the generation number and size of a cache.
func (m *ReconcileMetrics) SetGeneration(cache string, generation uint64, lines int) {
	if m == nil || m.generation == nil {
		return
	}
	m.generation.WithLabelValues(normalizeLabel(cache)).Set(float64(generation))
	m.cachedLines.WithLabelValues(normalizeLabel(cache)).Set(float64(lines))
}

// AddReconciled counts lines written for kind ("removed" or "added").
func (m *ReconcileMetrics) AddReconciled(kind string, n int) {
	if m == nil || m.modifiedLines == nil || n <= 0 {
		return
	}
	m.modifiedLines.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

func (m *ReconcileMetrics) AddWarnings(mode string, n int) {
	if m == nil || m.warnings == nil || n <= 0 {
		return
	}
	m.warnings.WithLabelValues(normalizeLabel(mode)).Add(float64(n))
}
