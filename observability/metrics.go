package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	registryMetricsOnce sync.Once
	registryRegistry    *RegistryMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "patreonix",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RegistryMetrics tracks registry operations executed by the node host.
type RegistryMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	lockWait   prometheus.Histogram
	events     *prometheus.CounterVec
}

// Registry returns the singleton registry operation metrics.
func Registry() *RegistryMetrics {
	registryMetricsOnce.Do(func() {
		registryRegistry = &RegistryMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "registry",
				Name:      "operations_total",
				Help:      "Registry operations segmented by operation and result code.",
			}, []string{"operation", "result"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "patreonix",
				Subsystem: "registry",
				Name:      "operation_duration_seconds",
				Help:      "Latency of registry operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "patreonix",
				Subsystem: "registry",
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for per-record locks.",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
			}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "registry",
				Name:      "events_total",
				Help:      "Committed registry events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			registryRegistry.operations,
			registryRegistry.latency,
			registryRegistry.lockWait,
			registryRegistry.events,
		)
	})
	return registryRegistry
}

// ObserveOperation records one registry operation. result is "ok" or the
// stable error name.
func (m *RegistryMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLockWait records how long an operation waited for its record locks.
func (m *RegistryMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// RecordEvent counts a committed event.
func (m *RegistryMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// IntegrationMetrics covers the sinks fed by committed events: the webhook
// dispatcher and the SQL search mirror.
type IntegrationMetrics struct {
	deliveries *prometheus.CounterVec
	dropped    prometheus.Counter
	applied    *prometheus.CounterVec
}

var (
	integrationMetricsOnce sync.Once
	integrationRegistry    *IntegrationMetrics
)

// Integrations returns the singleton integration metrics.
func Integrations() *IntegrationMetrics {
	integrationMetricsOnce.Do(func() {
		integrationRegistry = &IntegrationMetrics{
			deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "webhook",
				Name:      "deliveries_total",
				Help:      "Webhook deliveries by final outcome.",
			}, []string{"outcome"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "webhook",
				Name:      "dropped_total",
				Help:      "Events dropped because the delivery queue was full.",
			}),
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "patreonix",
				Subsystem: "indexer",
				Name:      "events_applied_total",
				Help:      "Events folded into the search mirror by result.",
			}, []string{"type", "result"}),
		}
		prometheus.MustRegister(
			integrationRegistry.deliveries,
			integrationRegistry.dropped,
			integrationRegistry.applied,
		)
	})
	return integrationRegistry
}

// RecordDelivery counts a webhook delivery that succeeded or exhausted its
// retries.
func (m *IntegrationMetrics) RecordDelivery(ok bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// RecordDrop counts an event the dispatcher had no room for.
func (m *IntegrationMetrics) RecordDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// RecordApply counts an event folded into the mirror.
func (m *IntegrationMetrics) RecordApply(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.applied.WithLabelValues(eventType, result).Inc()
}
