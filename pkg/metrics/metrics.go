// Diagnostics metrics for the odometer plugin
//
// Provides Prometheus-compatible metric collection:
// - Counter: Monotonically increasing values
// - Gauge: Values that can go up and down
//
// Outputs in Prometheus text format.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

// labelKey generates a unique key for a label set
func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

// formatLabels formats labels for Prometheus output
func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabel(labels[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

// escapeLabel escapes special characters in label values
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing metric
type Counter struct {
	name   string
	help   string
	values sync.Map // labelKey -> *counterValue
}

type counterValue struct {
	labels Labels
	value  uint64
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) {
	key := labelKey(labels)
	val, _ := c.values.LoadOrStore(key, &counterValue{labels: labels})
	cv := val.(*counterValue)
	atomic.AddUint64(&cv.value, delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	key := labelKey(labels)
	val, ok := c.values.Load(key)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&val.(*counterValue).value)
}

func (c *Counter) Write(sb *strings.Builder) {
	sb.WriteString("# HELP ")
	sb.WriteString(c.name)
	sb.WriteByte(' ')
	sb.WriteString(c.help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(c.name)
	sb.WriteString(" counter\n")

	c.values.Range(func(_, value interface{}) bool {
		cv := value.(*counterValue)
		sb.WriteString(c.name)
		sb.WriteString(formatLabels(cv.labels))
		sb.WriteByte(' ')
		sb.WriteString(fmt.Sprintf("%d", atomic.LoadUint64(&cv.value)))
		sb.WriteByte('\n')
		return true
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	values sync.Map // labelKey -> *gaugeValue
}

type gaugeValue struct {
	labels Labels
	value  float64
	mu     sync.Mutex
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	key := labelKey(labels)
	val, _ := g.values.LoadOrStore(key, &gaugeValue{labels: labels})
	gv := val.(*gaugeValue)
	gv.mu.Lock()
	gv.value = value
	gv.mu.Unlock()
}

// Add adds the given value to the gauge
func (g *Gauge) Add(labels Labels, delta float64) {
	key := labelKey(labels)
	val, _ := g.values.LoadOrStore(key, &gaugeValue{labels: labels})
	gv := val.(*gaugeValue)
	gv.mu.Lock()
	gv.value += delta
	gv.mu.Unlock()
}

// Inc increments the gauge by 1
func (g *Gauge) Inc(labels Labels) {
	g.Add(labels, 1)
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	key := labelKey(labels)
	val, ok := g.values.Load(key)
	if !ok {
		return 0
	}
	gv := val.(*gaugeValue)
	gv.mu.Lock()
	defer gv.mu.Unlock()
	return gv.value
}

func (g *Gauge) Write(sb *strings.Builder) {
	sb.WriteString("# HELP ")
	sb.WriteString(g.name)
	sb.WriteByte(' ')
	sb.WriteString(g.help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(g.name)
	sb.WriteString(" gauge\n")

	g.values.Range(func(_, value interface{}) bool {
		gv := value.(*gaugeValue)
		gv.mu.Lock()
		v := gv.value
		gv.mu.Unlock()
		sb.WriteString(g.name)
		sb.WriteString(formatLabels(gv.labels))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte('\n')
		return true
	})
}

// Registry holds a set of metrics and renders them
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry. Registering a name twice
// returns the already registered metric.
func (r *Registry) Register(m Metric) Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.metrics[m.Name()]; ok {
		return existing
	}
	r.metrics[m.Name()] = m
	return m
}

// Counter registers (or returns) a counter with the given name
func (r *Registry) Counter(name, help string) *Counter {
	return r.Register(NewCounter(name, help)).(*Counter)
}

// Gauge registers (or returns) a gauge with the given name
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.Register(NewGauge(name, help)).(*Gauge)
}

// Gather renders all registered metrics in Prometheus text format,
// sorted by metric name.
func (r *Registry) Gather() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		r.metrics[name].Write(&sb)
	}
	r.mu.RUnlock()
	return sb.String()
}
