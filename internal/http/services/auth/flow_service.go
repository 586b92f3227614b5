// Package auth implements the session-facing service over the token
// lifecycle manager and the backend enrichment client. Controllers stay thin;
// the flow decisions live here.
package auth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	coreauth "github.com/dropDatabas3/hellobff/internal/auth"
	"github.com/dropDatabas3/hellobff/internal/backend"
	"github.com/dropDatabas3/hellobff/internal/metrics"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// ErrReauthRequired signals that no cached account can serve a silent
// refresh: the user has to go through the interactive login again.
var ErrReauthRequired = errors.New("authflow: interactive login required")

// DefaultRefreshWindow is the safety margin before API-token expiry within
// which EnsureAPIAccess re-fetches proactively.
const DefaultRefreshWindow = 5 * time.Minute

// FlowService drives the login, refresh and logout flows for a session.
type FlowService struct {
	manager       *coreauth.Manager
	backend       *backend.Client
	metrics       *metrics.Metrics
	refreshWindow time.Duration
	log           *zap.Logger
	now           func() time.Time
}

// NewFlowService wires the service. metrics may be nil; refreshWindow <= 0
// means DefaultRefreshWindow.
func NewFlowService(manager *coreauth.Manager, backendClient *backend.Client, m *metrics.Metrics, refreshWindow time.Duration, log *zap.Logger) *FlowService {
	if refreshWindow <= 0 {
		refreshWindow = DefaultRefreshWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FlowService{
		manager:       manager,
		backend:       backendClient,
		metrics:       m,
		refreshWindow: refreshWindow,
		log:           log,
		now:           time.Now,
	}
}

// StartLogin generates the authorization URL and parks the PKCE artifacts in
// the session. The caller persists the session and redirects.
func (s *FlowService) StartLogin(ctx context.Context, sess *session.Session, returnURL string) (string, error) {
	authURL, err := s.manager.GenerateAuthorizationURL(ctx, sess, returnURL)
	if err != nil {
		return "", err
	}
	s.metrics.IncLoginStarted()
	return authURL, nil
}

// CompleteLogin finishes the callback leg: code exchange, session user
// construction from the verified ID-token claims, and a first enrichment
// exchange. An enrichment failure does not fail the login; the API-access
// gate retries on the first protected call.
func (s *FlowService) CompleteLogin(ctx context.Context, sess *session.Session, callback *url.URL) (string, error) {
	result, redirectTo, err := s.manager.ExchangeCodeForTokens(ctx, sess, callback)
	if err != nil {
		if coreauth.IsKind(err, coreauth.KindAuthProvider) {
			s.metrics.IncCodeExchange("provider_error")
		} else {
			s.metrics.IncCodeExchange("error")
		}
		return "", err
	}
	s.metrics.IncCodeExchange("ok")

	sess.User = &session.User{
		ID:    result.Account.LocalAccountID,
		Name:  result.Claims.Name,
		Email: result.Claims.Email,
		Roles: []string{},
	}
	if sess.User.ID == "" {
		sess.User.ID = result.Claims.Subject
	}
	if sess.User.Email == "" {
		sess.User.Email = result.Claims.PreferredUsername
	}

	if err := s.enrich(ctx, sess, result.AccessToken); err != nil {
		s.log.Warn("initial enrichment failed, deferring to API-access gate",
			logger.Err(err), logger.Layer("service"), logger.Op("FlowService.CompleteLogin"))
	}

	return redirectTo, nil
}

// EnsureAPIAccess guarantees the session carries a backend API token that is
// valid beyond the safety window. On a cache miss or refresh failure the
// app-level JWT is cleared so a broken session can't serve stale access.
func (s *FlowService) EnsureAPIAccess(ctx context.Context, sess *session.Session) error {
	if sess.APITokenValid(s.refreshWindow, s.now()) {
		return nil
	}

	result, err := s.manager.RefreshAccessToken(ctx, sess)
	if err != nil {
		s.metrics.IncTokenRefresh("error")
		sess.ClearAPIToken()
		return err
	}
	if result == nil {
		s.metrics.IncTokenRefresh("no_account")
		sess.ClearAPIToken()
		return ErrReauthRequired
	}
	s.metrics.IncTokenRefresh("ok")

	return s.enrich(ctx, sess, result.AccessToken)
}

// Logout builds the provider logout URL and clears the session's account
// linkage. Local teardown (cookie, session record) stays with the caller.
func (s *FlowService) Logout(ctx context.Context, sess *session.Session, requestOrigin, returnPath string) (string, error) {
	return s.manager.Logout(ctx, sess, requestOrigin, returnPath)
}

func (s *FlowService) enrich(ctx context.Context, sess *session.Session, accessToken string) error {
	enriched, err := s.backend.EnrichToken(ctx, accessToken)
	if err != nil {
		s.metrics.IncEnrichment("error")
		return err
	}
	s.metrics.IncEnrichment("ok")

	if sess.User == nil {
		sess.User = &session.User{
			ID:    enriched.Subject,
			Name:  enriched.Name,
			Email: enriched.Email,
		}
	}
	sess.User.Roles = enriched.Roles
	sess.User.APIToken = enriched.Token
	sess.User.APITokenExpiresAt = enriched.ExpiresAt
	return nil
}
