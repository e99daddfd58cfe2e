package observability

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Metric names recorded by the service.
const (
	MetricHTTPRequests           = "http_requests_total"
	MetricHTTPDuration           = "http_request_duration_seconds"
	MetricActiveConnections      = "active_connections"
	MetricAuthRequests           = "auth_requests_total"
	MetricWorkloadRuns           = "workload_runs_total"
	MetricWorkloadDuration       = "workload_duration_seconds"
	MetricWorkloadMemoryInFlight = "workload_memory_inflight_bytes"
	MetricWorkerPoolBusy         = "workload_pool_busy_workers"
	MetricSimulatedErrors        = "simulated_errors_total"
	MetricReadinessChecks        = "readiness_checks_total"
)

// MetricKind enumerates the sample types produced by Snapshot.
type MetricKind string

const (
	KindCounter   MetricKind = "counter"
	KindGauge     MetricKind = "gauge"
	KindHistogram MetricKind = "histogram"
	KindSummary   MetricKind = "summary"
	KindUntyped   MetricKind = "untyped"
)

// ErrUnknownMetric is returned when recording against an undeclared metric name.
var ErrUnknownMetric = errors.New("metrics: unknown metric")

// Labels is a label set; keys are unique by construction.
type Labels map[string]string

// Key returns a stable, sorted representation of the labels.
func (l Labels) Key() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+l[k])
	}
	return strings.Join(parts, ",")
}

// MetricSample is one flattened value from a registry snapshot.
type MetricSample struct {
	Name   string     `json:"name"`
	Labels Labels     `json:"labels,omitempty"`
	Value  float64    `json:"value"`
	Kind   MetricKind `json:"kind"`
}

// Definition declares a metric before any value is recorded against it.
type Definition struct {
	Name    string
	Help    string
	Kind    MetricKind
	Labels  []string
	Buckets []float64
}

var workloadBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5}

// DefaultDefinitions returns every metric the service records.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: MetricHTTPRequests, Help: "Total HTTP requests", Kind: KindCounter, Labels: []string{"method", "endpoint", "status_code"}},
		{Name: MetricHTTPDuration, Help: "HTTP request duration", Kind: KindHistogram, Labels: []string{"method", "endpoint"}, Buckets: prometheus.DefBuckets},
		{Name: MetricActiveConnections, Help: "Number of in-flight requests", Kind: KindGauge},
		{Name: MetricAuthRequests, Help: "Authentication attempts by operation and outcome", Kind: KindCounter, Labels: []string{"operation", "outcome"}},
		{Name: MetricWorkloadRuns, Help: "Synthetic workload runs by kind and outcome", Kind: KindCounter, Labels: []string{"kind", "outcome"}},
		{Name: MetricWorkloadDuration, Help: "Synthetic workload duration", Kind: KindHistogram, Labels: []string{"kind"}, Buckets: workloadBuckets},
		{Name: MetricWorkloadMemoryInFlight, Help: "Bytes currently held by memory workloads", Kind: KindGauge},
		{Name: MetricWorkerPoolBusy, Help: "CPU workload workers currently busy", Kind: KindGauge},
		{Name: MetricSimulatedErrors, Help: "Deliberately triggered failures by kind", Kind: KindCounter, Labels: []string{"kind"}},
		{Name: MetricReadinessChecks, Help: "Readiness check executions by check and outcome", Kind: KindCounter, Labels: []string{"check", "outcome"}},
	}
}

// Registry is a concurrency-safe metrics registry. The set of metrics is fixed at
// construction; afterwards only values change, through prometheus' atomic primitives.
type Registry struct {
	registry   *prometheus.Registry
	logger     *zap.Logger
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewRegistry declares defs on a private prometheus registry alongside the Go runtime and
// process collectors.
func NewRegistry(logger *zap.Logger, defs []Definition) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		registry:   prometheus.NewRegistry(),
		logger:     logger,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	if err := r.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := r.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	for _, def := range defs {
		if err := r.declare(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) declare(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return errors.New("metrics: name is required")
	}
	help := def.Help
	if help == "" {
		help = name
	}

	var collector prometheus.Collector
	switch def.Kind {
	case KindCounter:
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, def.Labels)
		r.counters[name] = vec
		collector = vec
	case KindGauge:
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, def.Labels)
		r.gauges[name] = vec
		collector = vec
	case KindHistogram:
		buckets := def.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, def.Labels)
		r.histograms[name] = vec
		collector = vec
	default:
		return fmt.Errorf("metrics: invalid type %q for %s", def.Kind, name)
	}

	if err := r.registry.Register(collector); err != nil {
		return fmt.Errorf("metrics: register %s: %w", name, err)
	}
	return nil
}

// Increment adds one to a counter.
func (r *Registry) Increment(name string, labels Labels) error {
	return r.Add(name, labels, 1)
}

// Add adds a non-negative delta to a counter.
func (r *Registry) Add(name string, labels Labels, delta float64) error {
	if r == nil {
		return nil
	}
	if delta < 0 {
		return r.report(name, fmt.Errorf("metrics: counter %s cannot decrease", name))
	}
	vec, ok := r.counters[name]
	if !ok {
		return r.report(name, fmt.Errorf("%w: counter %s", ErrUnknownMetric, name))
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return r.report(name, err)
	}
	counter.Add(delta)
	return nil
}

// Observe records value into a histogram's fixed buckets.
func (r *Registry) Observe(name string, labels Labels, value float64) error {
	if r == nil {
		return nil
	}
	vec, ok := r.histograms[name]
	if !ok {
		return r.report(name, fmt.Errorf("%w: histogram %s", ErrUnknownMetric, name))
	}
	observer, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return r.report(name, err)
	}
	observer.Observe(value)
	return nil
}

// Set stores value in a gauge.
func (r *Registry) Set(name string, labels Labels, value float64) error {
	gauge, err := r.gauge(name, labels)
	if err != nil || gauge == nil {
		return err
	}
	gauge.Set(value)
	return nil
}

// AddGauge moves a gauge by delta, which may be negative.
func (r *Registry) AddGauge(name string, labels Labels, delta float64) error {
	gauge, err := r.gauge(name, labels)
	if err != nil || gauge == nil {
		return err
	}
	gauge.Add(delta)
	return nil
}

func (r *Registry) gauge(name string, labels Labels) (prometheus.Gauge, error) {
	if r == nil {
		return nil, nil
	}
	vec, ok := r.gauges[name]
	if !ok {
		return nil, r.report(name, fmt.Errorf("%w: gauge %s", ErrUnknownMetric, name))
	}
	gauge, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return nil, r.report(name, err)
	}
	return gauge, nil
}

func (r *Registry) report(name string, err error) error {
	r.logger.Warn("metric not recorded", zap.String("metric", name), zap.Error(err))
	return err
}

// Snapshot gathers every metric into samples ordered by family name, then by labels.
// Each family is read consistently; families may reflect concurrent writes unevenly.
func (r *Registry) Snapshot() ([]MetricSample, error) {
	if r == nil {
		return nil, nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var samples []MetricSample
	for _, family := range families {
		name := family.GetName()
		for _, m := range family.GetMetric() {
			labels := labelsOf(m)
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, MetricSample{Name: name, Labels: labels, Value: m.GetCounter().GetValue(), Kind: KindCounter})
			case dto.MetricType_GAUGE:
				samples = append(samples, MetricSample{Name: name, Labels: labels, Value: m.GetGauge().GetValue(), Kind: KindGauge})
			case dto.MetricType_HISTOGRAM:
				samples = append(samples, histogramSamples(name, labels, m.GetHistogram())...)
			case dto.MetricType_SUMMARY:
				samples = append(samples, summarySamples(name, labels, m.GetSummary())...)
			default:
				samples = append(samples, MetricSample{Name: name, Labels: labels, Value: m.GetUntyped().GetValue(), Kind: KindUntyped})
			}
		}
	}
	return samples, nil
}

// Value returns the current value of a counter or gauge, or zero if it has not been recorded.
func (r *Registry) Value(name string, labels Labels) float64 {
	samples, err := r.Snapshot()
	if err != nil {
		return 0
	}
	key := labels.Key()
	for _, s := range samples {
		if s.Name == name && s.Labels.Key() == key {
			return s.Value
		}
	}
	return 0
}

// Handler serves the text exposition format for scrapers.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(r.logger),
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      r.registry,
	})
}

func labelsOf(m *dto.Metric) Labels {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return nil
	}
	labels := make(Labels, len(pairs))
	for _, lp := range pairs {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func withLabel(labels Labels, key, value string) Labels {
	out := make(Labels, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

func formatBound(f float64) string {
	if math.IsInf(f, +1) {
		return "+Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func histogramSamples(name string, labels Labels, h *dto.Histogram) []MetricSample {
	samples := make([]MetricSample, 0, len(h.GetBucket())+3)
	for _, b := range h.GetBucket() {
		if math.IsInf(b.GetUpperBound(), +1) {
			continue
		}
		samples = append(samples, MetricSample{
			Name:   name + "_bucket",
			Labels: withLabel(labels, "le", formatBound(b.GetUpperBound())),
			Value:  float64(b.GetCumulativeCount()),
			Kind:   KindHistogram,
		})
	}
	samples = append(samples,
		MetricSample{Name: name + "_bucket", Labels: withLabel(labels, "le", "+Inf"), Value: float64(h.GetSampleCount()), Kind: KindHistogram},
		MetricSample{Name: name + "_sum", Labels: labels, Value: h.GetSampleSum(), Kind: KindHistogram},
		MetricSample{Name: name + "_count", Labels: labels, Value: float64(h.GetSampleCount()), Kind: KindHistogram},
	)
	return samples
}

func summarySamples(name string, labels Labels, s *dto.Summary) []MetricSample {
	samples := make([]MetricSample, 0, len(s.GetQuantile())+2)
	for _, q := range s.GetQuantile() {
		samples = append(samples, MetricSample{
			Name:   name,
			Labels: withLabel(labels, "quantile", formatBound(q.GetQuantile())),
			Value:  q.GetValue(),
			Kind:   KindSummary,
		})
	}
	samples = append(samples,
		MetricSample{Name: name + "_sum", Labels: labels, Value: s.GetSampleSum(), Kind: KindSummary},
		MetricSample{Name: name + "_count", Labels: labels, Value: float64(s.GetSampleCount()), Kind: KindSummary},
	)
	return samples
}
