package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/hellobff/internal/metrics"
)

// WithMetrics registra contadores/latencias HTTP por método y ruta.
// La ruta se toma del patrón del router, no del path crudo, para mantener
// acotada la cardinalidad.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := routePattern(r)

			m.HTTPInflight.WithLabelValues(r.Method, path).Inc()
			defer m.HTTPInflight.WithLabelValues(r.Method, path).Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	// chi deja el patrón en el route context recién después del match; como
	// este middleware corre antes, usamos el path normalizado a los prefijos
	// conocidos del BFF.
	p := r.URL.Path
	switch {
	case p == "/":
		return "/"
	case len(p) >= 6 && p[:6] == "/auth/":
		return p
	case len(p) >= 5 && p[:5] == "/api/":
		return p
	case p == "/healthz" || p == "/readyz" || p == "/metrics":
		return p
	default:
		return "other"
	}
}
