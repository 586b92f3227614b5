package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// DefaultScopes are requested when the config names none. offline_access is
// required for the refresh token that powers silent acquisition.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// ManagerConfig configures the token lifecycle manager.
type ManagerConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// AllowAccountFallback opts in to the permissive account selection on
	// silent refresh (substring-tolerant match, first cached account when the
	// session has no home account id). Default is strict: no exact match, no
	// refresh.
	AllowAccountFallback bool
}

func (c ManagerConfig) scopes() []string {
	if len(c.Scopes) == 0 {
		return DefaultScopes
	}
	return c.Scopes
}

// TokenResult is a successful token acquisition (code exchange or silent
// refresh).
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
	Account      Account
	Claims       IDClaims
}

// IDClaims are the identity claims extracted from a verified ID token.
type IDClaims struct {
	Subject           string   `json:"sub"`
	ObjectID          string   `json:"oid"`
	TenantID          string   `json:"tid"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username"`
	Roles             []string `json:"roles"`
}

// HomeAccountID derives the stable partition identifier for the account:
// {object id}.{tenant id}, falling back to the subject when the provider
// omits the object id.
func (c IDClaims) HomeAccountID(defaultTenant string) string {
	local := c.ObjectID
	if local == "" {
		local = c.Subject
	}
	if local == "" {
		return ""
	}
	realm := c.TenantID
	if realm == "" {
		realm = defaultTenant
	}
	if realm == "" {
		return local
	}
	return local + "." + realm
}

// Manager orchestrates the OAuth/PKCE token lifecycle against the identity
// provider: authorization-URL generation, code exchange, silent refresh and
// logout. All token state lives in the partitioned distributed cache; all
// per-attempt state lives in the session.
type Manager struct {
	cfg      ManagerConfig
	resolver *MetadataResolver
	tokens   *TokenCache
	http     *http.Client
	log      *zap.Logger
}

// NewManager wires the manager. httpClient may be nil; it is used for every
// provider call (token endpoint, JWKS) so tests can point at a fake provider.
func NewManager(cfg ManagerConfig, resolver *MetadataResolver, tokens *TokenCache, httpClient *http.Client, log *zap.Logger) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, resolver: resolver, tokens: tokens, http: httpClient, log: log}
}

// providerClient resolves metadata and builds the oauth2 config for this
// client. Metadata errors propagate as-is (fatal to client construction).
func (m *Manager) providerClient(ctx context.Context) (*oauth2.Config, AuthorityEndpoints, error) {
	md, err := m.resolver.GetMetadata(ctx, m.cfg.ClientID, m.cfg.TenantID)
	if err != nil {
		return nil, AuthorityEndpoints{}, err
	}
	eps, err := md.Endpoints()
	if err != nil {
		return nil, AuthorityEndpoints{}, err
	}
	cfg := &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  m.cfg.RedirectURI,
		Scopes:       m.cfg.scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  eps.AuthorizationEndpoint,
			TokenURL: eps.TokenEndpoint,
		},
	}
	return cfg, eps, nil
}

// clientContext makes golang.org/x/oauth2 and go-oidc use the manager's HTTP
// client.
func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.http)
}

// GenerateAuthorizationURL builds the provider authorization request and
// parks the PKCE artifacts in the session (transition to
// AuthorizationPending). The caller persists the session before redirecting.
func (m *Manager) GenerateAuthorizationURL(ctx context.Context, sess *session.Session, returnURL string) (string, error) {
	if returnURL == "" {
		returnURL = "/"
	}

	cfg, _, err := m.providerClient(m.clientContext(ctx))
	if err != nil {
		return "", err
	}

	pkce, err := GeneratePKCEChallenge()
	if err != nil {
		return "", err
	}
	state, err := GenerateRandomString(32)
	if err != nil {
		return "", err
	}

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(pkce.Verifier))

	sess.CodeVerifier = pkce.Verifier
	sess.State = state
	sess.ReturnURL = returnURL

	m.log.Debug("authorization url generated",
		logger.ClientID(m.cfg.ClientID), logger.SessionID(sess.ID), logger.Component("auth.manager"))

	return authURL, nil
}

// ExchangeCodeForTokens completes the callback leg: it parses the provider's
// redirect, exchanges the code and verifier for tokens, verifies the ID
// token, persists the account in the token cache and marks the session
// authenticated. Returns the token result plus the post-login redirect
// target.
//
// The PKCE artifacts are read and cleared from the session before the network
// call, so a stale verifier cannot be replayed even when the exchange itself
// fails. The caller must persist the session regardless of outcome.
func (m *Manager) ExchangeCodeForTokens(ctx context.Context, sess *session.Session, callback *url.URL) (*TokenResult, string, error) {
	q := callback.Query()

	if provErr := q.Get("error"); provErr != "" {
		sess.ClearAuthAttempt()
		desc := q.Get("error_description")
		msg := provErr
		if desc != "" {
			msg = fmt.Sprintf("%s: %s", provErr, desc)
		}
		return nil, "", NewError(KindAuthProvider, msg)
	}

	verifier := sess.CodeVerifier
	state := sess.State
	redirectTo := sess.ReturnURL
	sess.ClearAuthAttempt()
	if redirectTo == "" {
		redirectTo = "/"
	}

	code := q.Get("code")
	switch {
	case code == "":
		return nil, "", NewError(KindCallback, "callback missing authorization code")
	case verifier == "" || state == "":
		return nil, "", NewError(KindCallback, "no authorization attempt pending for this session")
	case q.Get("state") != state:
		return nil, "", NewError(KindCallback, "state mismatch on callback")
	}

	cctx := m.clientContext(ctx)
	cfg, eps, err := m.providerClient(cctx)
	if err != nil {
		return nil, "", err
	}

	tok, err := cfg.Exchange(cctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, "", WrapError(err, KindCallback, "authorization code exchange failed")
	}

	claims, rawIDToken, err := m.verifyIDToken(cctx, eps, tok)
	if err != nil {
		return nil, "", err
	}

	acct := Account{
		HomeAccountID:  claims.HomeAccountID(m.cfg.TenantID),
		LocalAccountID: claims.ObjectID,
		Realm:          claims.TenantID,
		Username:       claims.PreferredUsername,
		Name:           claims.Name,
		RefreshToken:   tok.RefreshToken,
		Scopes:         m.cfg.scopes(),
	}
	if acct.HomeAccountID == "" {
		return nil, "", NewError(KindCallback, "provider ID token carries no account identifier")
	}

	// Best-effort write; a cache outage just costs the silent refresh later.
	if err := m.tokens.SaveAccount(ctx, acct); err != nil {
		m.log.Warn("token cache write failed after exchange",
			logger.Err(err), logger.Component("auth.manager"))
	}

	sess.HomeAccountID = acct.HomeAccountID

	m.log.Info("authorization code exchanged",
		logger.ClientID(m.cfg.ClientID), logger.SessionID(sess.ID), logger.Component("auth.manager"))

	return &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
		Expiry:       tok.Expiry,
		Account:      acct,
		Claims:       claims,
	}, redirectTo, nil
}

// verifyIDToken validates the ID token's signature against the provider JWKS
// plus issuer/audience/expiry, and extracts the identity claims.
func (m *Manager) verifyIDToken(ctx context.Context, eps AuthorityEndpoints, tok *oauth2.Token) (IDClaims, string, error) {
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return IDClaims{}, "", NewError(KindCallback, "token response carries no ID token")
	}

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, m.http), eps.JWKSURI)
	verifier := oidc.NewVerifier(eps.Issuer, keySet, &oidc.Config{ClientID: m.cfg.ClientID})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return IDClaims{}, "", WrapError(err, KindCallback, "ID token verification failed")
	}

	var claims IDClaims
	if err := idToken.Claims(&claims); err != nil {
		return IDClaims{}, "", WrapError(err, KindCallback, "ID token claims are malformed")
	}
	if claims.Subject == "" {
		claims.Subject = idToken.Subject
	}
	return claims, rawIDToken, nil
}

// RefreshAccessToken silently acquires fresh tokens for the session's cached
// account. A nil result with nil error means "no cached account, interactive
// login required": expected absence, not a failure.
func (m *Manager) RefreshAccessToken(ctx context.Context, sess *session.Session) (*TokenResult, error) {
	partitionKey := PartitionKey(sess)
	accounts := m.tokens.Accounts(ctx, partitionKey)
	if len(accounts) == 0 {
		return nil, nil
	}

	acct, ok := matchAccount(accounts, sess.HomeAccountID, m.cfg.AllowAccountFallback)
	if !ok {
		return nil, nil
	}
	if acct.RefreshToken == "" {
		return nil, nil
	}

	cctx := m.clientContext(ctx)
	cfg, _, err := m.providerClient(cctx)
	if err != nil {
		return nil, err
	}

	tok, err := cfg.TokenSource(cctx, &oauth2.Token{RefreshToken: acct.RefreshToken}).Token()
	if err != nil {
		return nil, WrapError(err, KindTokenRefresh, "silent token acquisition failed")
	}

	// Providers may rotate the refresh token; keep the cache current.
	if tok.RefreshToken != "" && tok.RefreshToken != acct.RefreshToken {
		acct.RefreshToken = tok.RefreshToken
		if err := m.tokens.SaveAccount(ctx, acct); err != nil {
			m.log.Warn("token cache update failed after refresh",
				logger.Err(err), logger.Component("auth.manager"))
		}
	}

	rawIDToken, _ := tok.Extra("id_token").(string)

	return &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
		Expiry:       tok.Expiry,
		Account:      acct,
	}, nil
}

// Logout validates the post-logout return path, removes the session's cached
// account best-effort, clears the session's home account id and returns the
// provider logout URL. Local session teardown (cookie, user record) is the
// caller's responsibility.
func (m *Manager) Logout(ctx context.Context, sess *session.Session, requestOrigin, returnPath string) (string, error) {
	returnPath, err := NormalizeRelativePath(returnPath)
	if err != nil {
		return "", err
	}

	if sess.HomeAccountID != "" {
		m.tokens.RemoveAccount(ctx, PartitionKey(sess), sess.HomeAccountID)
		sess.HomeAccountID = ""
	}

	_, eps, err := m.providerClient(m.clientContext(ctx))
	if err != nil {
		return "", err
	}

	endSession := eps.EndSessionEndpoint
	if endSession == "" {
		endSession = m.resolver.Authority(m.cfg.TenantID) + "/oauth2/v2.0/logout"
	}

	logoutURL := fmt.Sprintf("%s?post_logout_redirect_uri=%s",
		endSession, url.QueryEscape(strings.TrimRight(requestOrigin, "/")+returnPath))

	m.log.Info("logout url generated",
		logger.ClientID(m.cfg.ClientID), logger.SessionID(sess.ID), logger.Component("auth.manager"))

	return logoutURL, nil
}

// NormalizeRelativePath ensures a redirect target is a relative path. An
// absolute or scheme-carrying path is a programming error in the caller, not
// user input to tolerate.
func NormalizeRelativePath(p string) (string, error) {
	if p == "" {
		return "/", nil
	}
	if strings.HasPrefix(p, "//") || strings.Contains(p, "://") {
		return "", NewError(KindInvalidReturnPath, "return path must be relative").WithDetail(p)
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", NewError(KindInvalidReturnPath, "return path must be relative").WithDetail(p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p, nil
}
