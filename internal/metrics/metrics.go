package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	datasetLoads        *prometheus.CounterVec
	datasetFirms        prometheus.Gauge
	datasetDropped      prometheus.Gauge
	emptySelections     prometheus.Counter
}

// New creates a fresh Metrics registry with HTTP and dataset metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by vcmap",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vcmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by vcmap",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	datasetLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcmap",
		Name:      "dataset_loads_total",
		Help:      "Dataset load attempts by result",
	}, []string{"result"})

	datasetFirms := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vcmap",
		Name:      "dataset_firms",
		Help:      "Firms in the currently served dataset",
	})

	datasetDropped := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vcmap",
		Name:      "dataset_dropped_rows",
		Help:      "Rows discarded from the current dataset for missing coordinates",
	})

	emptySelections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vcmap",
		Name:      "filter_empty_selection_total",
		Help:      "Filter requests where a sector or stage selection was empty",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		datasetLoads,
		datasetFirms,
		datasetDropped,
		emptySelections,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		datasetLoads:        datasetLoads,
		datasetFirms:        datasetFirms,
		datasetDropped:      datasetDropped,
		emptySelections:     emptySelections,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveDatasetLoad records a load attempt. Gauges are zeroed on failure
// because nothing is served.
func (m *Metrics) ObserveDatasetLoad(ok bool, firms, dropped int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.datasetLoads.WithLabelValues(result).Inc()
	m.datasetFirms.Set(float64(firms))
	m.datasetDropped.Set(float64(dropped))
}

// IncEmptySelection counts a filter request that matched nothing by rule.
func (m *Metrics) IncEmptySelection() {
	if m == nil {
		return
	}
	m.emptySelections.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
