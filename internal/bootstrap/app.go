// Package bootstrap arma el grafo de dependencias de la aplicación.
// Todo se inyecta por constructor: nada de singletons ni estado global.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellobff/internal/auth"
	"github.com/dropDatabas3/hellobff/internal/backend"
	"github.com/dropDatabas3/hellobff/internal/cache"
	"github.com/dropDatabas3/hellobff/internal/config"
	apictrl "github.com/dropDatabas3/hellobff/internal/http/controllers/api"
	authctrl "github.com/dropDatabas3/hellobff/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hellobff/internal/http/controllers/health"
	"github.com/dropDatabas3/hellobff/internal/http/router"
	authsvc "github.com/dropDatabas3/hellobff/internal/http/services/auth"
	healthsvc "github.com/dropDatabas3/hellobff/internal/http/services/health"
	"github.com/dropDatabas3/hellobff/internal/metrics"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/rate"
	"github.com/dropDatabas3/hellobff/internal/security/secretbox"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// App agrupa las piezas vivas de la aplicación que main necesita.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Cache   cache.Client
	Handler http.Handler
	// MetadataCheck resuelve la metadata del provider una vez. Lo comparten
	// el readiness check y el subcomando `check`.
	MetadataCheck func(ctx context.Context) error
}

// Close libera recursos. Llamar en defer desde main.
func (a *App) Close() error {
	if a.Cache != nil {
		return a.Cache.Close()
	}
	return nil
}

// Build construye toda la aplicación a partir de la config.
func Build(cfg *config.Config) (*App, error) {
	// 1. Logger
	log := logger.New(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "hellobff",
	})

	// 2. Cache distribuido (o memoria en dev)
	cacheClient, err := cache.New(cache.Config{
		Driver:          cfg.Cache.Driver,
		Host:            cfg.Cache.Host,
		Port:            cfg.Cache.Port,
		Password:        cfg.Cache.Password,
		DB:              cfg.Cache.DB,
		Prefix:          cfg.Cache.Prefix,
		CommandTimeout:  cfg.CacheCommandTimeout(),
		MaxRetryBackoff: cfg.CacheMaxRetryBackoff(),
	})
	if err != nil {
		return nil, fmt.Errorf("cache init: %w", err)
	}

	// 3. Métricas
	m := metrics.New()

	// 4. Capa OAuth: adapter -> resolver -> token cache -> manager
	httpClient := &http.Client{Timeout: 15 * time.Second}
	adapter := auth.NewCacheAdapter(cacheClient, cfg.TokenCacheTTL(), log, m)
	resolver := auth.NewMetadataResolver(adapter, cfg.Provider.Instance, httpClient, log)
	tokens := auth.NewTokenCache(adapter, cfg.Provider.ClientID, cfg.TokenCacheTTL(), log)
	if cfg.Provider.TokenEncryptionKey != "" {
		sealer, err := secretbox.New(cfg.Provider.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("token encryption key: %w", err)
		}
		tokens = tokens.WithSealer(sealer)
	}
	manager := auth.NewManager(auth.ManagerConfig{
		TenantID:             cfg.Provider.TenantID,
		ClientID:             cfg.Provider.ClientID,
		ClientSecret:         cfg.Provider.ClientSecret,
		RedirectURI:          cfg.Provider.RedirectURI,
		Scopes:               cfg.Provider.Scopes,
		AllowAccountFallback: cfg.Provider.AllowAccountFallback,
	}, resolver, tokens, httpClient, log)

	// 5. Backend API client
	backendClient := backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		JWTSecret: cfg.Backend.JWTSecret,
	}, httpClient, log)

	// 6. Sesiones
	store := session.NewStore(cacheClient, session.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.Domain,
		SameSite: cfg.Session.SameSite,
		Secure:   cfg.Session.Secure,
		TTL:      cfg.SessionTTL(),
	}, cfg.SessionTTL(), log)

	// 7. Services
	flow := authsvc.NewFlowService(manager, backendClient, m, cfg.BackendRefreshWindow(), log)
	metadataCheck := func(ctx context.Context) error {
		_, err := resolver.GetMetadata(ctx, cfg.Provider.ClientID, cfg.Provider.TenantID)
		return err
	}
	health := healthsvc.NewHealthService(healthsvc.Deps{
		CacheCheck:    cacheClient.Ping,
		MetadataCheck: metadataCheck,
	})

	// 8. Rate limit para /auth/* (deshabilitado si Max == 0)
	var limiter rate.Limiter
	if cfg.RateLimit.Max > 0 {
		limiter = rate.NewFixedWindowLimiter(cacheClient, "rl:", cfg.RateLimit.Max, cfg.RateLimitWindow())
	}

	// 9. Controllers + router
	handler := router.New(router.Deps{
		Logger:    log,
		Metrics:   m,
		Store:     store,
		Limiter:   limiter,
		Login:     authctrl.NewLoginController(flow, store),
		Callback:  authctrl.NewCallbackController(flow, store),
		Logout:    authctrl.NewLogoutController(flow, store, cfg.Server.PublicOrigin),
		Me:        apictrl.NewMeController(),
		Protected: apictrl.NewProtectedController(flow, backendClient, store),
		Health:    healthctrl.NewHealthController(health),
	})

	return &App{
		Config:        cfg,
		Logger:        log,
		Cache:         cacheClient,
		Handler:       handler,
		MetadataCheck: metadataCheck,
	}, nil
}
