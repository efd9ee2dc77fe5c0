package telemetry

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements platform.Metrics on its own registry. Vectors are
// created on first use with the sorted label names of that call; later
// calls with a different label set are dropped.
type Prometheus struct {
	namespace string
	registry  *prometheus.Registry
	factory   promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	labelNames map[string][]string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheus builds a registry preloaded with the Go and process
// collectors. namespace prefixes every metric name.
func NewPrometheus(namespace string) *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		namespace:  sanitize(namespace),
		registry:   reg,
		factory:    factory,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		labelNames: make(map[string][]string),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: sanitize(namespace),
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Counter(_ context.Context, name string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	names := labelKeys(labels)
	vec, ok := p.counterVec(name, names)
	if !ok {
		return
	}
	vec.With(prometheus.Labels(labels)).Add(value)
}

func (p *Prometheus) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	names := labelKeys(labels)
	vec, ok := p.gaugeVec(name, names)
	if !ok {
		return
	}
	vec.With(prometheus.Labels(labels)).Set(value)
}

func (p *Prometheus) ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (p *Prometheus) counterVec(name string, labels []string) (*prometheus.CounterVec, bool) {
	name = sanitize(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[name]; ok {
		return vec, sameLabels(p.labelNames[name], labels)
	}
	if _, taken := p.gauges[name]; taken {
		return nil, false
	}
	vec := p.factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      name,
	}, labels)
	p.counters[name] = vec
	p.labelNames[name] = labels
	return vec, true
}

func (p *Prometheus) gaugeVec(name string, labels []string) (*prometheus.GaugeVec, bool) {
	name = sanitize(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.gauges[name]; ok {
		return vec, sameLabels(p.labelNames[name], labels)
	}
	if _, taken := p.counters[name]; taken {
		return nil, false
	}
	vec := p.factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      name,
	}, labels)
	p.gauges[name] = vec
	p.labelNames[name] = labels
	return vec, true
}

var _ platform.Metrics = (*Prometheus)(nil)

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sanitize maps a free-form name onto the Prometheus metric charset.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
