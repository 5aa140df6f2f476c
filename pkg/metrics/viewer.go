// Parse job metrics
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"sync"
	"time"
)

// ViewerMetrics holds the metrics of the parse service.
type ViewerMetrics struct {
	JobsStarted   *Counter
	JobsCompleted *Counter
	JobsFailed    *Counter
	JobsCancelled *Counter
	ActiveJobs    *Gauge

	ParseSeconds   *Histogram
	AnalyzeSeconds *Histogram
	LinesParsed    *Counter
	LayersBuilt    *Histogram
	BytesSent      *Counter
	UnknownMoves   *Counter

	Clients       *Gauge
	Goroutines    *Gauge
	HeapBytes     *Gauge
	UptimeSeconds *Gauge

	startTime time.Time
	registry  *Registry
}

// NewViewerMetrics creates and registers all metrics.
func NewViewerMetrics() *ViewerMetrics {
	m := &ViewerMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),

		JobsStarted: NewCounter("gcodeview_jobs_started_total",
			"Parse jobs started, by source kind"),
		JobsCompleted: NewCounter("gcodeview_jobs_completed_total",
			"Parse jobs that produced a summary"),
		JobsFailed: NewCounter("gcodeview_jobs_failed_total",
			"Parse jobs that failed, by error code"),
		JobsCancelled: NewCounter("gcodeview_jobs_cancelled_total",
			"Parse jobs replaced or cancelled before completion"),
		ActiveJobs: NewGauge("gcodeview_active_jobs",
			"Parse jobs currently running"),

		ParseSeconds: NewHistogram("gcodeview_parse_seconds",
			"Time spent reading and interpreting G-code", ExponentialBuckets(0.01, 4, 8)),
		AnalyzeSeconds: NewHistogram("gcodeview_analyze_seconds",
			"Time spent in the statistics pass", ExponentialBuckets(0.001, 4, 8)),
		LinesParsed: NewCounter("gcodeview_lines_parsed_total",
			"G-code lines read"),
		LayersBuilt: NewHistogram("gcodeview_layers_per_job",
			"Layers in each finished model", ExponentialBuckets(1, 4, 7)),
		BytesSent: NewCounter("gcodeview_ws_bytes_sent_total",
			"Message bytes written to WebSocket clients"),
		UnknownMoves: NewCounter("gcodeview_unknown_moves_total",
			"Records that could not be classified"),

		Clients: NewGauge("gcodeview_websocket_clients",
			"Connected WebSocket clients"),
		Goroutines: NewGauge("gcodeview_go_goroutines",
			"Number of goroutines"),
		HeapBytes: NewGauge("gcodeview_go_heap_bytes",
			"Heap bytes allocated"),
		UptimeSeconds: NewGauge("gcodeview_uptime_seconds",
			"Seconds since start"),
	}
	m.registry.MustRegister(
		m.JobsStarted, m.JobsCompleted, m.JobsFailed, m.JobsCancelled, m.ActiveJobs,
		m.ParseSeconds, m.AnalyzeSeconds, m.LinesParsed, m.LayersBuilt,
		m.BytesSent, m.UnknownMoves,
		m.Clients, m.Goroutines, m.HeapBytes, m.UptimeSeconds,
	)
	return m
}

// JobStarted counts a job reading from a source of the given kind.
func (m *ViewerMetrics) JobStarted(kind string) {
	m.JobsStarted.Inc(Labels{"source": kind})
	m.ActiveJobs.Inc(nil)
}

// JobCompleted records a successful job.
func (m *ViewerMetrics) JobCompleted(parse, analyze time.Duration, lines, layers int) {
	m.ActiveJobs.Dec(nil)
	m.JobsCompleted.Inc(nil)
	m.ParseSeconds.Observe(nil, parse.Seconds())
	m.AnalyzeSeconds.Observe(nil, analyze.Seconds())
	m.LinesParsed.Add(nil, uint64(lines))
	m.LayersBuilt.Observe(nil, float64(layers))
}

// JobFailed records a failed job by error code.
func (m *ViewerMetrics) JobFailed(code string) {
	m.ActiveJobs.Dec(nil)
	m.JobsFailed.Inc(Labels{"code": code})
}

// JobCancelled records a job stopped by a newer one or by the client.
func (m *ViewerMetrics) JobCancelled() {
	m.ActiveJobs.Dec(nil)
	m.JobsCancelled.Inc(nil)
}

// updateRuntime refreshes the Go runtime gauges.
func (m *ViewerMetrics) updateRuntime() {
	var ms goruntime.MemStats
	goruntime.ReadMemStats(&ms)
	m.Goroutines.Set(nil, float64(goruntime.NumGoroutine()))
	m.HeapBytes.Set(nil, float64(ms.HeapAlloc))
	m.UptimeSeconds.Set(nil, time.Since(m.startTime).Seconds())
}

// Gather returns all metrics in Prometheus text format
func (m *ViewerMetrics) Gather() string {
	m.updateRuntime()
	return m.registry.Gather()
}

// Registry returns the internal registry
func (m *ViewerMetrics) Registry() *Registry {
	return m.registry
}

var (
	global     *ViewerMetrics
	globalOnce sync.Once
)

// Global returns the process wide metrics.
func Global() *ViewerMetrics {
	globalOnce.Do(func() {
		global = NewViewerMetrics()
	})
	return global
}
