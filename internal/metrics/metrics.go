// Package metrics define las métricas Prometheus del BFF. Se construyen sobre
// un registry inyectado para evitar estado global registrable.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa todas las métricas del servicio. Los métodos Inc* son
// nil-safe para que los componentes puedan operar sin métricas en tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInflight        *prometheus.GaugeVec

	// Flujo de auth
	LoginsStarted  prometheus.Counter
	CodeExchanges  *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
	Enrichments    *prometheus.CounterVec
	CacheErrors    *prometheus.CounterVec
}

// New crea y registra las métricas en un registry propio.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		HTTPInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),

		LoginsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logins_started_total",
			Help: "Redirecciones al identity provider iniciadas",
		}),

		CodeExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_code_exchanges_total",
			Help: "Intercambios de authorization code por resultado",
		}, []string{"result"}), // result: ok|provider_error|error

		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Silent refresh de tokens por resultado",
		}, []string{"result"}), // result: ok|no_account|error

		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_enrichments_total",
			Help: "Intercambios de enrichment contra el backend por resultado",
		}, []string{"result"}), // result: ok|error

		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_cache_errors_total",
			Help: "Errores del cache backend tragados por el adapter",
		}, []string{"op"}), // op: get|set|delete
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInflight,
		m.LoginsStarted,
		m.CodeExchanges,
		m.TokenRefreshes,
		m.Enrichments,
		m.CacheErrors,
	)

	// Métricas estándar del proceso/runtime
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler expone el registry en formato Prometheus (para /metrics).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncLoginStarted cuenta un login iniciado.
func (m *Metrics) IncLoginStarted() {
	if m == nil {
		return
	}
	m.LoginsStarted.Inc()
}

// IncCodeExchange cuenta un intercambio de código por resultado.
func (m *Metrics) IncCodeExchange(result string) {
	if m == nil {
		return
	}
	m.CodeExchanges.WithLabelValues(result).Inc()
}

// IncTokenRefresh cuenta un silent refresh por resultado.
func (m *Metrics) IncTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// IncEnrichment cuenta un intercambio de enrichment por resultado.
func (m *Metrics) IncEnrichment(result string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(result).Inc()
}

// IncCacheError cuenta un error de cache tragado.
func (m *Metrics) IncCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(op).Inc()
}
