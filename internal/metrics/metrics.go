// Package metrics provides the node's Prometheus metrics sink (C10).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector required by spec §4.10. It is constructed
// once at startup against an explicit Registerer and threaded down to every
// component that observes it — there is no package-level global.
type Metrics struct {
	ToolExecutionDuration *prometheus.HistogramVec
	ToolExecutionTotal    *prometheus.CounterVec

	JobQueueDepth          *prometheus.GaugeVec
	JobProcessingDuration  *prometheus.HistogramVec

	AttestationDuration     *prometheus.HistogramVec
	AttestationCacheHits    *prometheus.CounterVec
	AttestationCacheMisses  *prometheus.CounterVec

	WasmModuleLoadDuration *prometheus.HistogramVec
	WasmExecutionDuration  *prometheus.HistogramVec
	WasmFuelConsumed       *prometheus.HistogramVec

	ContainerStartDuration *prometheus.HistogramVec
	ContainerPoolSize      *prometheus.GaugeVec

	RegimeSwitchTotal    *prometheus.CounterVec
	RegimeSwitchDuration *prometheus.HistogramVec
}

// New constructs and registers every series against registerer.
// registerer is never nil in production; tests may pass prometheus.NewRegistry().
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_execution_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"runtime", "tool_key", "status"}),

		ToolExecutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_execution_total",
			Help: "Total tool invocations",
		}, []string{"runtime", "tool_key", "status"}),

		JobQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Current job queue depth by status",
		}, []string{"status"}),

		JobProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "Job end-to-end processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type", "status"}),

		AttestationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestation_duration_seconds",
			Help:    "Attestation generate+verify duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"tee_type", "status"}),

		AttestationCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_cache_hits_total",
			Help: "Attestation cache hits",
		}, []string{"tee_type"}),

		AttestationCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_cache_misses_total",
			Help: "Attestation cache misses",
		}, []string{"tee_type"}),

		WasmModuleLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasm_module_load_duration_seconds",
			Help:    "Wasm module load duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"module"}),

		WasmExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasm_execution_duration_seconds",
			Help:    "Wasm function execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"module", "function"}),

		WasmFuelConsumed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasm_fuel_consumed",
			Help:    "Wasm fuel units consumed per call",
			Buckets: []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9},
		}, []string{"module", "function"}),

		ContainerStartDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "container_start_duration_seconds",
			Help:    "Container start duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"runtime", "image"}),

		ContainerPoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "container_pool_size",
			Help: "Container pool size by status",
		}, []string{"runtime", "status"}),

		RegimeSwitchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regime_switch_total",
			Help: "Regime transitions",
		}, []string{"from", "to"}),

		RegimeSwitchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regime_switch_duration_seconds",
			Help:    "Duration of observe+transition decision in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"from", "to"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.ToolExecutionDuration,
			m.ToolExecutionTotal,
			m.JobQueueDepth,
			m.JobProcessingDuration,
			m.AttestationDuration,
			m.AttestationCacheHits,
			m.AttestationCacheMisses,
			m.WasmModuleLoadDuration,
			m.WasmExecutionDuration,
			m.WasmFuelConsumed,
			m.ContainerStartDuration,
			m.ContainerPoolSize,
			m.RegimeSwitchTotal,
			m.RegimeSwitchDuration,
		)
	}

	return m
}

// RecordToolExecution records one tool invocation outcome.
func (m *Metrics) RecordToolExecution(runtime, toolKey, status string, d time.Duration) {
	m.ToolExecutionTotal.WithLabelValues(runtime, toolKey, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(runtime, toolKey, status).Observe(d.Seconds())
}

// SetJobQueueDepth sets the current depth for a job status.
func (m *Metrics) SetJobQueueDepth(status string, depth int) {
	m.JobQueueDepth.WithLabelValues(status).Set(float64(depth))
}

// RecordJobProcessing records job end-to-end duration.
func (m *Metrics) RecordJobProcessing(jobType, status string, d time.Duration) {
	m.JobProcessingDuration.WithLabelValues(jobType, status).Observe(d.Seconds())
}

// RecordAttestation records a generate+verify cycle.
func (m *Metrics) RecordAttestation(teeType, status string, d time.Duration) {
	m.AttestationDuration.WithLabelValues(teeType, status).Observe(d.Seconds())
}

// RecordCacheHit/RecordCacheMiss record attestation cache outcomes.
func (m *Metrics) RecordCacheHit(teeType string)  { m.AttestationCacheHits.WithLabelValues(teeType).Inc() }
func (m *Metrics) RecordCacheMiss(teeType string) { m.AttestationCacheMisses.WithLabelValues(teeType).Inc() }

// RecordRegimeSwitch records a transition decision; from==to means no switch occurred.
func (m *Metrics) RecordRegimeSwitch(from, to string, d time.Duration) {
	if from != to {
		m.RegimeSwitchTotal.WithLabelValues(from, to).Inc()
	}
	m.RegimeSwitchDuration.WithLabelValues(from, to).Observe(d.Seconds())
}
