package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

const namespace = "unification"

// PrometheusAdapter - счетчики исходов матчинга, записей каноники и обращений к геокодеру
type PrometheusAdapter struct {
	registry *prometheus.Registry

	probes         *prometheus.CounterVec
	canonicals     *prometheus.CounterVec
	backRefFailed  *prometheus.CounterVec
	geocoderLookup *prometheus.CounterVec
}

var _ port.MetricsPort = (*PrometheusAdapter)(nil)

// NewPrometheusAdapter регистрирует метрики в собственном реестре, а не в глобальном
func NewPrometheusAdapter() *PrometheusAdapter {
	a := &PrometheusAdapter{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes that reached a terminal status.",
		}, []string{"kind", "status"}),
		canonicals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canonical_writes_total",
			Help:      "Writes to unified_houses by operation.",
		}, []string{"operation"}),
		backRefFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backref_failures_total",
			Help:      "Source back-reference updates that failed after the canonical was written.",
		}, []string{"kind"}),
		geocoderLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocoder_lookups_total",
			Help:      "Reverse geocoding lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}

	a.registry.MustRegister(
		a.probes,
		a.canonicals,
		a.backRefFailed,
		a.geocoderLookup,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return a
}

func (a *PrometheusAdapter) ProbeFinished(kind domain.SourceKind, status domain.ProbeStatus) {
	a.probes.WithLabelValues(string(kind), string(status)).Inc()
}

func (a *PrometheusAdapter) CanonicalWritten(operation string) {
	a.canonicals.WithLabelValues(operation).Inc()
}

func (a *PrometheusAdapter) BackRefFailed(kind domain.SourceKind) {
	a.backRefFailed.WithLabelValues(string(kind)).Inc()
}

func (a *PrometheusAdapter) GeocoderLookup(result string) {
	a.geocoderLookup.WithLabelValues(result).Inc()
}

// Handler отдает /metrics
func (a *PrometheusAdapter) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})
}

// Registry - для тестов и дополнительных коллекторов
func (a *PrometheusAdapter) Registry() *prometheus.Registry {
	return a.registry
}
