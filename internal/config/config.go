// Package config carga la configuración del BFF desde YAML + overrides por
// variables de entorno. Los secretos (client secret, JWT secret) normalmente
// llegan por env, no por YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicOrigin es el origin externo del BFF (scheme://host[:port]),
		// usado para armar el post_logout_redirect_uri.
		PublicOrigin string `yaml:"public_origin"`
	} `yaml:"server"`

	Cache struct {
		Driver          string `yaml:"driver"` // memory | redis
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		Prefix          string `yaml:"prefix"`
		CommandTimeout  string `yaml:"command_timeout"`
		MaxRetryBackoff string `yaml:"max_retry_backoff"`
	} `yaml:"cache"`

	Provider struct {
		Instance     string   `yaml:"instance"` // host, ej: login.microsoftonline.com
		TenantID     string   `yaml:"tenant_id"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RedirectURI  string   `yaml:"redirect_uri"`
		Scopes       []string `yaml:"scopes"`
		// AllowAccountFallback habilita la selección permisiva de cuenta en
		// el silent refresh. Default: estricto.
		AllowAccountFallback bool   `yaml:"allow_account_fallback"`
		TokenCacheTTL        string `yaml:"token_cache_ttl"`
		// TokenEncryptionKey (opcional): clave AES-256 (base64/hex/raw de 32
		// bytes) para cifrar las entradas del token cache en reposo.
		TokenEncryptionKey string `yaml:"token_encryption_key"`
	} `yaml:"provider"`

	RateLimit struct {
		// Max requests por IP por ventana en /auth/*. 0 deshabilita.
		Max    int    `yaml:"max"`
		Window string `yaml:"window"`
	} `yaml:"rate_limit"`

	Backend struct {
		BaseURL   string `yaml:"base_url"`
		JWTSecret string `yaml:"jwt_secret"`
		// RefreshWindow: margen antes del expiry del app JWT en el que
		// EnsureAPIAccess re-fetchea proactivamente.
		RefreshWindow string `yaml:"refresh_window"`
	} `yaml:"backend"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML, aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			// sin archivo: todo por env/defaults
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicOrigin == "" {
		c.Server.PublicOrigin = "http://localhost:8080"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.CommandTimeout == "" {
		c.Cache.CommandTimeout = "1s"
	}
	if c.Cache.MaxRetryBackoff == "" {
		c.Cache.MaxRetryBackoff = "5s"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "hellobff"
	}
	if c.Provider.Instance == "" {
		c.Provider.Instance = "login.microsoftonline.com"
	}
	if c.Provider.TokenCacheTTL == "" {
		c.Provider.TokenCacheTTL = "24h"
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}
	if c.Backend.RefreshWindow == "" {
		c.Backend.RefreshWindow = "5m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "bff_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "8h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()

	// validate string durations
	for name, v := range map[string]string{
		"cache.command_timeout":   c.Cache.CommandTimeout,
		"cache.max_retry_backoff": c.Cache.MaxRetryBackoff,
		"provider.token_cache_ttl": c.Provider.TokenCacheTTL,
		"rate_limit.window":       c.RateLimit.Window,
		"backend.refresh_window":  c.Backend.RefreshWindow,
		"session.ttl":             c.Session.TTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("config: invalid duration for %s: %w", name, err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate verifica lo mínimo para poder arrancar.
func (c *Config) Validate() error {
	if c.Provider.ClientID == "" {
		return fmt.Errorf("config: provider.client_id is required")
	}
	if c.Provider.TenantID == "" {
		return fmt.Errorf("config: provider.tenant_id is required")
	}
	if c.Provider.RedirectURI == "" {
		return fmt.Errorf("config: provider.redirect_uri is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("config: backend.base_url is required")
	}
	if c.Backend.JWTSecret == "" {
		return fmt.Errorf("config: backend.jwt_secret is required")
	}
	// Guardia dura: cookies Secure obligatorias en prod.
	if strings.EqualFold(c.App.Env, "prod") && !c.Session.Secure {
		return fmt.Errorf("config: session.secure must be true in prod")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_ORIGIN"); ok {
		c.Server.PublicOrigin = v
	}
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Password = v
	}
	if v, ok := getEnvStr("PROVIDER_INSTANCE"); ok {
		c.Provider.Instance = v
	}
	if v, ok := getEnvStr("PROVIDER_TENANT_ID"); ok {
		c.Provider.TenantID = v
	}
	if v, ok := getEnvStr("PROVIDER_CLIENT_ID"); ok {
		c.Provider.ClientID = v
	}
	if v, ok := getEnvStr("PROVIDER_CLIENT_SECRET"); ok {
		c.Provider.ClientSecret = v
	}
	if v, ok := getEnvStr("PROVIDER_REDIRECT_URI"); ok {
		c.Provider.RedirectURI = v
	}
	if v, ok := getEnvBool("PROVIDER_ALLOW_ACCOUNT_FALLBACK"); ok {
		c.Provider.AllowAccountFallback = v
	}
	if v, ok := getEnvStr("PROVIDER_TOKEN_ENCRYPTION_KEY"); ok {
		c.Provider.TokenEncryptionKey = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_MAX"); ok {
		c.RateLimit.Max = v
	}
	if v, ok := getEnvStr("BACKEND_BASE_URL"); ok {
		c.Backend.BaseURL = v
	}
	if v, ok := getEnvStr("BACKEND_JWT_SECRET"); ok {
		c.Backend.JWTSecret = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// ---- Accessors de duraciones (ya validadas en Load) ----

func (c *Config) CacheCommandTimeout() time.Duration  { return mustDur(c.Cache.CommandTimeout) }
func (c *Config) CacheMaxRetryBackoff() time.Duration { return mustDur(c.Cache.MaxRetryBackoff) }
func (c *Config) TokenCacheTTL() time.Duration        { return mustDur(c.Provider.TokenCacheTTL) }
func (c *Config) RateLimitWindow() time.Duration      { return mustDur(c.RateLimit.Window) }
func (c *Config) BackendRefreshWindow() time.Duration { return mustDur(c.Backend.RefreshWindow) }
func (c *Config) SessionTTL() time.Duration           { return mustDur(c.Session.TTL) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
