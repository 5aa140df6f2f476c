// Prometheus text metrics
//
// Counters, gauges and histograms keyed by label sets, rendered in the
// Prometheus text exposition format.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	}
	return "untyped"
}

// Labels is a label set. A nil Labels is the unlabelled series.
type Labels map[string]string

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key identifies the series for l.
func (l Labels) Key() string {
	var sb strings.Builder
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k + "=" + l[k])
	}
	return sb.String()
}

// String renders l as {k="v",...}, or "" when empty.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l))
	for _, k := range l.sortedKeys() {
		parts = append(parts, k+`="`+escapeLabel(l[k])+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// With returns a copy of l with key set to value.
func (l Labels) With(key, value string) Labels {
	out := l.clone()
	out[key] = value
	return out
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metric is one named family of series.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// family keeps one value per label set in first-seen order so that
// output is stable.
type family[V any] struct {
	name, help string
	typ        MetricType

	mu     sync.Mutex
	series map[string]*V
	labels map[string]Labels
	order  []string
}

func newFamily[V any](name, help string, typ MetricType) *family[V] {
	return &family[V]{
		name:   name,
		help:   help,
		typ:    typ,
		series: make(map[string]*V),
		labels: make(map[string]Labels),
	}
}

func (f *family[V]) Name() string     { return f.name }
func (f *family[V]) Help() string     { return f.help }
func (f *family[V]) Type() MetricType { return f.typ }

// update runs fn on the series for labels, creating it with init.
func (f *family[V]) update(labels Labels, init func() *V, fn func(*V)) {
	key := labels.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.series[key]
	if !ok {
		v = init()
		f.series[key] = v
		f.labels[key] = labels.clone()
		f.order = append(f.order, key)
	}
	fn(v)
}

// read runs fn on the series for labels if it exists.
func (f *family[V]) read(labels Labels, fn func(*V)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.series[labels.Key()]; ok {
		fn(v)
	}
}

func (f *family[V]) write(sb *strings.Builder, line func(sb *strings.Builder, labels Labels, v *V)) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.typ)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.order {
		line(sb, f.labels[key], f.series[key])
	}
}

// Counter is a monotonically increasing metric
type Counter struct {
	*family[uint64]
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{newFamily[uint64](name, help, TypeCounter)}
}

func newUint64() *uint64 { return new(uint64) }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by delta
func (c *Counter) Add(labels Labels, delta uint64) {
	c.update(labels, newUint64, func(v *uint64) { *v += delta })
}

// Get returns the current value for labels
func (c *Counter) Get(labels Labels) uint64 {
	var out uint64
	c.read(labels, func(v *uint64) { out = *v })
	return out
}

func (c *Counter) Write(sb *strings.Builder) {
	c.write(sb, func(sb *strings.Builder, l Labels, v *uint64) {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, l, *v)
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	*family[float64]
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{newFamily[float64](name, help, TypeGauge)}
}

func newFloat() *float64 { return new(float64) }

// Set sets the gauge to value
func (g *Gauge) Set(labels Labels, value float64) {
	g.update(labels, newFloat, func(v *float64) { *v = value })
}

// Add adds delta, which may be negative
func (g *Gauge) Add(labels Labels, delta float64) {
	g.update(labels, newFloat, func(v *float64) { *v += delta })
}

// Inc increments the gauge by 1
func (g *Gauge) Inc(labels Labels) { g.Add(labels, 1) }

// Dec decrements the gauge by 1
func (g *Gauge) Dec(labels Labels) { g.Add(labels, -1) }

// Get returns the current value for labels
func (g *Gauge) Get(labels Labels) float64 {
	var out float64
	g.read(labels, func(v *float64) { out = *v })
	return out
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.write(sb, func(sb *strings.Builder, l Labels, v *float64) {
		fmt.Fprintf(sb, "%s%s %s\n", g.name, l, formatFloat(*v))
	})
}

type histogramValue struct {
	count   uint64
	sum     float64
	buckets []uint64 // per bucket, not cumulative
}

// Histogram tracks the distribution of observations
type Histogram struct {
	*family[histogramValue]
	bounds []float64
}

// NewHistogram creates a histogram with the given upper bounds
func NewHistogram(name, help string, bounds []float64) *Histogram {
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{family: newFamily[histogramValue](name, help, TypeHistogram), bounds: sorted}
}

// DefaultBuckets suits durations in seconds.
func DefaultBuckets() []float64 {
	return []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
}

// ExponentialBuckets creates count bounds starting at start
func ExponentialBuckets(start, factor float64, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = start
		start *= factor
	}
	return out
}

func (h *Histogram) newValue() *histogramValue {
	return &histogramValue{buckets: make([]uint64, len(h.bounds))}
}

// Observe records value
func (h *Histogram) Observe(labels Labels, value float64) {
	h.update(labels, h.newValue, func(v *histogramValue) {
		v.count++
		v.sum += value
		if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
			v.buckets[i]++
		}
	})
}

// HistogramSnapshot holds cumulative bucket counts keyed by bound
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// GetSnapshot returns the current state for labels
func (h *Histogram) GetSnapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.bounds))}
	h.read(labels, func(v *histogramValue) {
		snap.Count, snap.Sum = v.count, v.sum
		var cum uint64
		for i, b := range h.bounds {
			cum += v.buckets[i]
			snap.Buckets[b] = cum
		}
	})
	return snap
}

func (h *Histogram) Write(sb *strings.Builder) {
	h.write(sb, func(sb *strings.Builder, l Labels, v *histogramValue) {
		var cum uint64
		for i, b := range h.bounds {
			cum += v.buckets[i]
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.With("le", formatFloat(b)), cum)
		}
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.With("le", "+Inf"), v.count)
		fmt.Fprintf(sb, "%s_sum%s %s\n", h.name, l, formatFloat(v.sum))
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, l, v.count)
	})
}

// Registry holds metrics in registration order
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric; names must be unique
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[m.Name()]; ok {
		return fmt.Errorf("metric %q already registered", m.Name())
	}
	r.metrics[m.Name()] = m
	r.order = append(r.order, m.Name())
	return nil
}

// MustRegister adds a metric and panics on error
func (r *Registry) MustRegister(metrics ...Metric) {
	for _, m := range metrics {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Gather renders every metric in registration order
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
