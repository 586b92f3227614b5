package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
provider:
  tenant_id: tid-1
  client_id: client-1
  redirect_uri: http://localhost:8080/auth/callback
backend:
  base_url: http://localhost:9090
  jwt_secret: test-secret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("Cache.Driver = %q, want memory", cfg.Cache.Driver)
	}
	if cfg.Provider.Instance != "login.microsoftonline.com" {
		t.Errorf("Provider.Instance = %q", cfg.Provider.Instance)
	}
	if got := cfg.TokenCacheTTL(); got != 24*time.Hour {
		t.Errorf("TokenCacheTTL = %v, want 24h", got)
	}
	if got := cfg.BackendRefreshWindow(); got != 5*time.Minute {
		t.Errorf("BackendRefreshWindow = %v, want 5m", got)
	}
	if got := cfg.RateLimitWindow(); got != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", got)
	}
	if cfg.RateLimit.Max != 0 {
		t.Errorf("RateLimit.Max = %d, want 0 (disabled)", cfg.RateLimit.Max)
	}
	if cfg.Session.CookieName != "bff_session" {
		t.Errorf("Session.CookieName = %q", cfg.Session.CookieName)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("PROVIDER_TENANT_ID", "tid-env")
	t.Setenv("PROVIDER_CLIENT_ID", "client-env")
	t.Setenv("PROVIDER_REDIRECT_URI", "http://localhost/cb")
	t.Setenv("BACKEND_BASE_URL", "http://api.internal")
	t.Setenv("BACKEND_JWT_SECRET", "s3cr3t")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.ClientID != "client-env" {
		t.Errorf("Provider.ClientID = %q", cfg.Provider.ClientID)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("PROVIDER_CLIENT_ID", "overridden")
	t.Setenv("PROVIDER_TOKEN_ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("RATE_LIMIT_MAX", "30")
	t.Setenv("SERVER_ADDR", ":9999")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.ClientID != "overridden" {
		t.Errorf("Provider.ClientID = %q, want overridden", cfg.Provider.ClientID)
	}
	if len(cfg.Provider.TokenEncryptionKey) != 32 {
		t.Errorf("TokenEncryptionKey len = %d", len(cfg.Provider.TokenEncryptionKey))
	}
	if cfg.RateLimit.Max != 30 {
		t.Errorf("RateLimit.Max = %d, want 30", cfg.RateLimit.Max)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	body := minimalYAML + "\nsession:\n  ttl: ocho-horas\n"
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for invalid session.ttl")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing client_id", strings.Replace(minimalYAML, "client_id: client-1", "", 1)},
		{"missing tenant_id", strings.Replace(minimalYAML, "tenant_id: tid-1", "", 1)},
		{"missing jwt_secret", strings.Replace(minimalYAML, "jwt_secret: test-secret", "", 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_ProdRequiresSecureCookies(t *testing.T) {
	body := minimalYAML + "\napp:\n  env: prod\n"
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error: secure cookies required in prod")
	}

	body += "session:\n  secure: true\n"
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Fatalf("Load with secure cookies: %v", err)
	}
}
