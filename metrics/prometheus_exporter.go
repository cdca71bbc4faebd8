package metrics

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter serves the contents of a Registry at an HTTP endpoint
// using client_golang's exposition format encoder, rather than a hand-rolled
// text formatter. A registryCollector bridges Registry's Counter/Gauge/
// Histogram types to prometheus.Collector so DefaultRegistry (and the named
// metrics in standard.go) show up under real prometheus.Desc metadata.

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Namespace is an optional prefix prepended to all metric names
	// (e.g. "dac" produces "dac_batches_committed_total").
	Namespace string
	// EnableRuntime controls whether Go runtime metrics (goroutines,
	// memory, GC) are included in the output via the standard collectors.
	EnableRuntime bool
	// Path is the HTTP path to serve metrics on (default "/metrics").
	Path string
}

// DefaultPrometheusConfig returns a config with sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "dac",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// PrometheusExporter owns a dedicated prometheus.Registry and exposes it
// over HTTP. It is kept separate from the process-wide DefaultRegistry so a
// test can stand up its own exporter without colliding with another test's
// metric names.
type PrometheusExporter struct {
	mu       sync.Mutex
	config   PrometheusConfig
	registry *Registry
	promReg  *prometheus.Registry
}

// NewPrometheusExporter creates a new exporter that reads from the given
// Registry and registers it, plus (optionally) Go runtime collectors, with a
// fresh prometheus.Registry.
func NewPrometheusExporter(registry *Registry, config PrometheusConfig) *PrometheusExporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(&registryCollector{registry: registry, namespace: config.Namespace})
	if config.EnableRuntime {
		promReg.MustRegister(prometheus.NewGoCollector())
		promReg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return &PrometheusExporter{
		config:   config,
		registry: registry,
		promReg:  promReg,
	}
}

// RegisterCollector adds an additional prometheus.Collector to the
// exporter's registry, for components (gateway, storage) that want to
// expose richer labeled metrics than Registry's flat name-to-value model.
func (pe *PrometheusExporter) RegisterCollector(c prometheus.Collector) error {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return pe.promReg.Register(c)
}

// Handler returns an http.Handler that serves the /metrics endpoint in
// Prometheus exposition format.
func (pe *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pe.config.Path, promhttp.HandlerFor(pe.promReg, promhttp.HandlerOpts{}))
	return mux
}

// registryCollector adapts Registry's counters, gauges, and histograms to
// the prometheus.Collector interface. Descriptors are created lazily on
// each Collect call since Registry creates metrics on first access and the
// set of names is not known up front.
type registryCollector struct {
	registry  *Registry
	namespace string
}

func (rc *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	// Unchecked collector: Describe intentionally sends nothing so that
	// Registry can grow new metric names at runtime without a restart.
}

func (rc *registryCollector) Collect(ch chan<- prometheus.Metric) {
	rc.registry.mu.RLock()
	defer rc.registry.mu.RUnlock()

	for name, c := range rc.registry.counters {
		desc := rc.desc(name, "counter metric "+name)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(c.Value()))
	}
	for name, g := range rc.registry.gauges {
		desc := rc.desc(name, "gauge metric "+name)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(g.Value()))
	}
	for name, h := range rc.registry.histograms {
		desc := rc.desc(name+"_count", "sample count for "+name)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(h.Count()))
		desc = rc.desc(name+"_sum", "sample sum for "+name)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, h.Sum())
		if h.Count() > 0 {
			desc = rc.desc(name+"_mean", "sample mean for "+name)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, h.Mean())
		}
	}
}

func (rc *registryCollector) desc(name, help string) *prometheus.Desc {
	fqName := prometheus.BuildFQName(rc.namespace, "", sanitizeName(name))
	return prometheus.NewDesc(fqName, help, nil, nil)
}

// sanitizeName converts a dot-separated metric name to Prometheus's
// underscore convention (dac.batches_committed_total -> dac_batches_committed_total).
func sanitizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '.', '-':
			out[i] = '_'
		default:
			out[i] = c
		}
	}
	return string(out)
}

// goroutineGauge is a small convenience collector used by callers that want
// a single extra runtime signal without pulling in the full Go collector.
type goroutineGauge struct{}

var goroutineGaugeDesc = prometheus.NewDesc("dac_goroutines", "number of active goroutines", nil, nil)

func (goroutineGauge) Describe(ch chan<- *prometheus.Desc) { ch <- goroutineGaugeDesc }
func (goroutineGauge) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(goroutineGaugeDesc, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
}
