// Package router contains the route aggregator.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apictrl "github.com/dropDatabas3/hellobff/internal/http/controllers/api"
	authctrl "github.com/dropDatabas3/hellobff/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hellobff/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	mw "github.com/dropDatabas3/hellobff/internal/http/middlewares"
	"github.com/dropDatabas3/hellobff/internal/metrics"
	"github.com/dropDatabas3/hellobff/internal/rate"
	"github.com/dropDatabas3/hellobff/internal/session"
	"go.uber.org/zap"
)

// Deps contains all dependencies for the router.
type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Store   *session.Store
	// Limiter throttles the /auth/* routes. Nil disables throttling.
	Limiter rate.Limiter

	Login     *authctrl.LoginController
	Callback  *authctrl.CallbackController
	Logout    *authctrl.LogoutController
	Me        *apictrl.MeController
	Protected *apictrl.ProtectedController
	Health    *healthctrl.HealthController
}

// New builds the HTTP router. All auth and api routes run behind the full
// middleware chain; health endpoints skip logging because probes are noisy.
func New(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Health + metrics: infra only, no session and no per-request logging.
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithLogging(deps.Logger))
		r.Use(mw.WithMetrics(deps.Metrics))
		r.Use(mw.WithSession(deps.Store))

		r.Group(func(r chi.Router) {
			r.Use(mw.WithRateLimit(deps.Limiter))
			r.Get("/auth/login", deps.Login.Login)
			r.Get("/auth/callback", deps.Callback.Callback)
			r.Get("/auth/logout", deps.Logout.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireUser())
			r.Get("/api/me", deps.Me.Me)
			r.Get("/api/protected-data", deps.Protected.ProtectedData)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Recover y request id envuelven el router completo, incluidos health y metrics.
	return mw.Chain(r, mw.WithRecover(), mw.WithRequestID())
}
