package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellobff/internal/observability/logger"
)

// metadataTTL bounds cached discovery documents. The design has no TTL-driven
// invalidation: entries are written once and refreshed only when missing, so
// the TTL is just an eventual cleanup bound.
const metadataTTL = 30 * 24 * time.Hour

// Metadata holds the two raw discovery documents for a (clientID, tenantID)
// pair, exactly as fetched from the provider.
type Metadata struct {
	CloudDiscovery string
	Authority      string
}

// AuthorityEndpoints are the provider endpoints parsed out of the authority
// (OIDC configuration) document.
type AuthorityEndpoints struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

// Endpoints parses the authority document.
func (m Metadata) Endpoints() (AuthorityEndpoints, error) {
	var eps AuthorityEndpoints
	if err := json.Unmarshal([]byte(m.Authority), &eps); err != nil {
		return AuthorityEndpoints{}, WrapError(err, KindMetadataFetch, "authority metadata is not valid JSON")
	}
	if eps.AuthorizationEndpoint == "" || eps.TokenEndpoint == "" {
		return AuthorityEndpoints{}, NewError(KindMetadataFetch, "authority metadata is missing required endpoints")
	}
	return eps, nil
}

// MetadataResolver fetches and caches provider discovery documents (cloud
// instance discovery plus OIDC authority configuration) keyed by
// client+tenant. Fetches go through the swallow-errors cache adapter, so a
// cache outage degrades to a refetch, while a failed fetch is fatal to client
// construction (no stale fallback).
type MetadataResolver struct {
	cache    *CacheAdapter
	http     *http.Client
	instance string // provider host, e.g. login.microsoftonline.com
	log      *zap.Logger
}

// NewMetadataResolver creates a resolver against the given provider instance
// host. httpClient may be nil.
func NewMetadataResolver(adapter *CacheAdapter, instance string, httpClient *http.Client, log *zap.Logger) *MetadataResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MetadataResolver{cache: adapter, http: httpClient, instance: instance, log: log}
}

func discoveryKey(clientID, tenantID string) string {
	return fmt.Sprintf("%s.%s.discovery-metadata", clientID, tenantID)
}

func authorityKey(clientID, tenantID string) string {
	return fmt.Sprintf("%s.%s.authority-metadata", clientID, tenantID)
}

// Authority returns the authority URL for a tenant on this instance.
func (r *MetadataResolver) Authority(tenantID string) string {
	return fmt.Sprintf("https://%s/%s", r.instance, tenantID)
}

// GetMetadata returns both discovery documents for the pair, from cache when
// both entries are present, otherwise freshly fetched and written back before
// returning. Concurrent calls for the same pair may race harmlessly: both
// fetch, both write the same entries.
func (r *MetadataResolver) GetMetadata(ctx context.Context, clientID, tenantID string) (Metadata, error) {
	var cachedDiscovery, cachedAuthority string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cachedDiscovery = r.cache.Get(gctx, discoveryKey(clientID, tenantID))
		return nil
	})
	g.Go(func() error {
		cachedAuthority = r.cache.Get(gctx, authorityKey(clientID, tenantID))
		return nil
	})
	_ = g.Wait()

	if cachedDiscovery != "" && cachedAuthority != "" {
		return Metadata{CloudDiscovery: cachedDiscovery, Authority: cachedAuthority}, nil
	}

	md, err := r.fetch(ctx, tenantID)
	if err != nil {
		return Metadata{}, err
	}

	// Write-back completes before returning so a caller that immediately
	// re-resolves is served from cache.
	r.cache.Set(ctx, discoveryKey(clientID, tenantID), md.CloudDiscovery, metadataTTL)
	r.cache.Set(ctx, authorityKey(clientID, tenantID), md.Authority, metadataTTL)

	r.log.Info("provider metadata refreshed",
		logger.ClientID(clientID), logger.TenantID(tenantID), logger.Component("auth.metadata"))

	return md, nil
}

// fetch retrieves both documents from the provider's public endpoints in
// parallel.
func (r *MetadataResolver) fetch(ctx context.Context, tenantID string) (Metadata, error) {
	authority := r.Authority(tenantID)

	discoveryURL := fmt.Sprintf(
		"https://%s/common/discovery/instance?api-version=1.1&authorization_endpoint=%s",
		r.instance,
		url.QueryEscape(authority+"/oauth2/v2.0/authorize"),
	)
	authorityURL := authority + "/v2.0/.well-known/openid-configuration"

	var md Metadata

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := r.fetchDocument(gctx, discoveryURL)
		if err != nil {
			return err
		}
		md.CloudDiscovery = body
		return nil
	})
	g.Go(func() error {
		body, err := r.fetchDocument(gctx, authorityURL)
		if err != nil {
			return err
		}
		md.Authority = body
		return nil
	})
	if err := g.Wait(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

func (r *MetadataResolver) fetchDocument(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", WrapError(err, KindMetadataFetch, "building discovery request")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", WrapError(err, KindMetadataFetch, "discovery endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", NewError(KindMetadataFetch,
			fmt.Sprintf("discovery endpoint returned HTTP %d", resp.StatusCode)).
			WithDetail(rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", WrapError(err, KindMetadataFetch, "reading discovery response")
	}
	return string(body), nil
}
