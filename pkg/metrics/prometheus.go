// Package metrics provides Prometheus metrics for the scoreboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Known label values for the enum gauges. Only one value per gauge is set to 1.
var (
	animationStates = []string{"idle", "emergency", "glitching"}
	contestPhases   = []string{"idle", "before", "during", "after"}
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Relay
	snapshotsIngested  prometheus.Counter
	snapshotsDuplicate prometheus.Counter
	snapshotRows       prometheus.Gauge
	relayVersion       prometheus.Gauge

	// Delivery channel
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Board
	snapshotsApplied prometheus.Counter
	snapshotsEmpty   prometheus.Counter
	applyLatency     prometheus.Histogram
	classifications  *prometheus.CounterVec
	triggersRejected *prometheus.CounterVec
	animationState   *prometheus.GaugeVec
	watchdogResets   prometheus.Counter
	cueFailures      *prometheus.CounterVec
	contestPhase     *prometheus.GaugeVec

	// Websocket fan-out
	wsClients        prometheus.Gauge
	wsBroadcasts     *prometheus.CounterVec
	wsClientsDropped *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoreboard",
		subsystem:        "board",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.snapshotsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "relay",
		Name: "snapshots_ingested_total",
		Help: "Standings posts accepted into the relay buffer",
	})
	m.snapshotsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "relay",
		Name: "snapshots_duplicate_total",
		Help: "Standings posts identical to a recent one and ignored",
	})
	m.snapshotRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "relay",
		Name: "snapshot_rows",
		Help: "Rows in the latest relay snapshot",
	})
	m.relayVersion = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "relay",
		Name: "version",
		Help: "Version of the latest relay snapshot",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "size",
		Help: "Snapshots waiting on the delivery channel",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "capacity",
		Help: "Capacity of the delivery channel",
	})
	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "enqueued_total",
		Help: "Snapshots enqueued on the delivery channel",
	})
	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "dequeued_total",
		Help: "Snapshots handed to the board consumer",
	})
	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "enqueue_errors_total",
		Help: "Snapshots that could not be enqueued, by reason",
	}, []string{"reason"})

	m.snapshotsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshots_applied_total",
		Help: "Canonical snapshots applied to the board",
	})
	m.snapshotsEmpty = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshots_empty_total",
		Help: "Snapshots that normalized to no usable data",
	})
	m.applyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "apply_latency_ms",
		Help:    "Time from dequeue to board apply in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.classifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "classifications_total",
		Help: "Rank change classifications, by kind",
	}, []string{"kind"})
	m.triggersRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "triggers_rejected_total",
		Help: "Animation triggers dropped because an animation was active",
	}, []string{"kind"})
	m.animationState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "animation_state",
		Help: "Current animation state (1 for the active state)",
	}, []string{"state"})
	m.watchdogResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "watchdog_resets_total",
		Help: "Animations forced back to idle by the watchdog",
	})
	m.cueFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cue_failures_total",
		Help: "Audio cues that failed to start, by cue",
	}, []string{"cue"})
	m.contestPhase = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "contest_phase",
		Help: "Current contest phase (1 for the active phase)",
	}, []string{"phase"})

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "ws",
		Name: "clients",
		Help: "Connected websocket clients",
	})
	m.wsBroadcasts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ws",
		Name: "broadcasts_total",
		Help: "Messages fanned out to websocket clients, by type",
	}, []string{"type"})
	m.wsClientsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ws",
		Name: "clients_dropped_total",
		Help: "Websocket clients disconnected by the hub, by reason",
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Number of goroutines",
	})
}

func setEnum(vec *prometheus.GaugeVec, all []string, current string) {
	for _, v := range all {
		if v == current {
			vec.WithLabelValues(v).Set(1)
		} else {
			vec.WithLabelValues(v).Set(0)
		}
	}
}

// Relay

func RecordSnapshotIngested(rows int, version int64) {
	globalManager.snapshotsIngested.Inc()
	globalManager.snapshotRows.Set(float64(rows))
	globalManager.relayVersion.Set(float64(version))
}

func RecordSnapshotDuplicate() { globalManager.snapshotsDuplicate.Inc() }

// Delivery channel

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordQueueEnqueue()              { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeued.Inc() }

func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Board

func RecordSnapshotApplied(latencyMs float64) {
	globalManager.snapshotsApplied.Inc()
	globalManager.applyLatency.Observe(latencyMs)
}

func RecordSnapshotEmpty() { globalManager.snapshotsEmpty.Inc() }

func RecordClassification(kind string) {
	globalManager.classifications.WithLabelValues(kind).Inc()
}

func RecordTriggerRejected(kind string) {
	globalManager.triggersRejected.WithLabelValues(kind).Inc()
}

func UpdateAnimationState(state string) {
	setEnum(globalManager.animationState, animationStates, state)
}

func RecordWatchdogReset() { globalManager.watchdogResets.Inc() }

func RecordCueFailure(cue string) { globalManager.cueFailures.WithLabelValues(cue).Inc() }

func UpdateContestPhase(phase string) {
	setEnum(globalManager.contestPhase, contestPhases, phase)
}

// Websocket

func UpdateWebsocketClients(count int) { globalManager.wsClients.Set(float64(count)) }

func RecordBroadcast(msgType string) {
	globalManager.wsBroadcasts.WithLabelValues(msgType).Inc()
}

func RecordClientDropped(reason string) {
	globalManager.wsClientsDropped.WithLabelValues(reason).Inc()
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry holding every service metric.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
