package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/hellobff/internal/cache"
	"github.com/dropDatabas3/hellobff/internal/session"
)

const (
	testClientID = "client-1"
	testTenantID = "tid-1"
)

// fakeIDP is an in-process identity provider: token endpoint plus JWKS.
type fakeIDP struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	tokenCalls   atomic.Int64
	lastTokenReq atomic.Pointer[url.Values]

	// refreshTokenOut lets a test exercise refresh-token rotation.
	refreshTokenOut atomic.Pointer[string]
	failTokens      atomic.Bool
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	idp := &fakeIDP{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.0/token", idp.handleToken)
	mux.HandleFunc("/discovery/v2.0/keys", idp.handleJWKS)
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (f *fakeIDP) issuer() string { return f.srv.URL + "/v2.0" }

func (f *fakeIDP) handleToken(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	_ = r.ParseForm()
	form := r.Form
	f.lastTokenReq.Store(&form)

	if f.failTokens.Load() {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		return
	}

	refreshOut := "refresh-token-1"
	if v := f.refreshTokenOut.Load(); v != nil {
		refreshOut = *v
	}

	resp := map[string]any{
		"access_token":  "access-token-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refreshOut,
	}
	if r.Form.Get("grant_type") == "authorization_code" {
		resp["id_token"] = f.signIDToken()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeIDP) signIDToken() string {
	now := time.Now()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
		"iss":                f.issuer(),
		"aud":                testClientID,
		"sub":                "sub-1",
		"oid":                "oid-1",
		"tid":                testTenantID,
		"name":               "Ana Pérez",
		"email":              "ana@example.com",
		"preferred_username": "ana@example.com",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(f.key)
	if err != nil {
		panic(err)
	}
	return signed
}

func (f *fakeIDP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := f.key.Public().(*rsa.PublicKey)
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": "test-key",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   "AQAB",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jwks)
}

// newTestManager builds a manager with the provider metadata pre-seeded in
// the cache, pointing every endpoint at the fake IdP.
func newTestManager(t *testing.T, idp *fakeIDP, fallback bool) (*Manager, *TokenCache) {
	t.Helper()
	ctx := context.Background()

	adapter := NewCacheAdapter(cache.NewMemory(cache.Config{}), time.Minute, nil, nil)
	resolver := NewMetadataResolver(adapter, "login.example.net", idp.srv.Client(), nil)
	tokens := NewTokenCache(adapter, testClientID, time.Minute, nil)

	authority := fmt.Sprintf(`{
		"issuer": %q,
		"authorization_endpoint": %q,
		"token_endpoint": %q,
		"jwks_uri": %q,
		"end_session_endpoint": %q
	}`, idp.issuer(), idp.srv.URL+"/oauth2/v2.0/authorize", idp.srv.URL+"/oauth2/v2.0/token",
		idp.srv.URL+"/discovery/v2.0/keys", idp.srv.URL+"/oauth2/v2.0/logout")

	adapter.Set(ctx, discoveryKey(testClientID, testTenantID), `{"tenant_discovery_endpoint":"seeded"}`, time.Minute)
	adapter.Set(ctx, authorityKey(testClientID, testTenantID), authority, time.Minute)

	m := NewManager(ManagerConfig{
		TenantID:             testTenantID,
		ClientID:             testClientID,
		ClientSecret:         "secret",
		RedirectURI:          "https://bff.example.com/auth/callback",
		AllowAccountFallback: fallback,
	}, resolver, tokens, idp.srv.Client(), nil)

	return m, tokens
}

func TestGenerateAuthorizationURL(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)
	sess := &session.Session{ID: "sess-1"}

	rawURL, err := m.GenerateAuthorizationURL(context.Background(), sess, "/dashboard")
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()

	if q.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256, got %q", q.Get("code_challenge_method"))
	}
	if sess.CodeVerifier == "" || sess.State == "" {
		t.Fatal("session missing the authorization attempt artifacts")
	}
	if q.Get("code_challenge") != GenerateCodeChallenge(sess.CodeVerifier) {
		t.Fatal("code_challenge does not match the session verifier")
	}
	if q.Get("state") != sess.State {
		t.Fatalf("state mismatch: url %q vs session %q", q.Get("state"), sess.State)
	}
	if q.Get("client_id") != testClientID {
		t.Fatalf("unexpected client_id %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://bff.example.com/auth/callback" {
		t.Fatalf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
	if !strings.Contains(q.Get("scope"), "offline_access") {
		t.Fatalf("scope must request offline_access, got %q", q.Get("scope"))
	}
	if sess.ReturnURL != "/dashboard" {
		t.Fatalf("return url not parked in session: %q", sess.ReturnURL)
	}
}

func TestGenerateAuthorizationURL_FreshArtifactsPerAttempt(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)
	sess := &session.Session{ID: "sess-1"}

	if _, err := m.GenerateAuthorizationURL(context.Background(), sess, "/"); err != nil {
		t.Fatal(err)
	}
	v1, s1 := sess.CodeVerifier, sess.State

	if _, err := m.GenerateAuthorizationURL(context.Background(), sess, "/"); err != nil {
		t.Fatal(err)
	}
	if sess.CodeVerifier == v1 || sess.State == s1 {
		t.Fatal("second attempt reused PKCE artifacts")
	}
}

func TestExchangeCodeForTokens_Success(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	sess := &session.Session{ID: "sess-1"}
	if _, err := m.GenerateAuthorizationURL(ctx, sess, "/dashboard"); err != nil {
		t.Fatal(err)
	}
	verifier := sess.CodeVerifier

	callback, _ := url.Parse("/auth/callback?code=auth-code-1&state=" + sess.State)
	result, redirectTo, err := m.ExchangeCodeForTokens(ctx, sess, callback)
	if err != nil {
		t.Fatal(err)
	}

	if redirectTo != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", redirectTo)
	}
	if result.AccessToken != "access-token-1" || result.RefreshToken != "refresh-token-1" {
		t.Fatalf("unexpected tokens: %+v", result)
	}
	if result.Claims.Email != "ana@example.com" || result.Claims.ObjectID != "oid-1" {
		t.Fatalf("unexpected claims: %+v", result.Claims)
	}

	// Session transitions to authenticated with the PKCE artifacts gone.
	if sess.HomeAccountID != "oid-1."+testTenantID {
		t.Fatalf("unexpected home account id %q", sess.HomeAccountID)
	}
	if sess.CodeVerifier != "" || sess.State != "" || sess.ReturnURL != "" {
		t.Fatal("PKCE artifacts survived the exchange")
	}

	// The exchange sent the original verifier to the token endpoint.
	form := idp.lastTokenReq.Load()
	if form == nil {
		t.Fatal("token endpoint never called")
	}
	if form.Get("code_verifier") != verifier {
		t.Fatal("token request missing the session's code verifier")
	}
	if form.Get("grant_type") != "authorization_code" {
		t.Fatalf("unexpected grant type %q", form.Get("grant_type"))
	}

	// The account landed in its cache partition, refresh token included.
	accounts := tokens.Accounts(ctx, sess.HomeAccountID)
	if len(accounts) != 1 || accounts[0].RefreshToken != "refresh-token-1" {
		t.Fatalf("account not cached correctly: %+v", accounts)
	}
}

func TestExchangeCodeForTokens_ProviderError(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)
	ctx := context.Background()

	sess := &session.Session{ID: "sess-1"}
	if _, err := m.GenerateAuthorizationURL(ctx, sess, "/"); err != nil {
		t.Fatal(err)
	}

	callback, _ := url.Parse("/auth/callback?error=access_denied&error_description=User+cancelled")
	_, _, err := m.ExchangeCodeForTokens(ctx, sess, callback)
	if !IsKind(err, KindAuthProvider) {
		t.Fatalf("expected %s, got %v", KindAuthProvider, err)
	}
	if !strings.Contains(err.Error(), "User cancelled") {
		t.Fatalf("error must carry the provider description, got %v", err)
	}
	if sess.CodeVerifier != "" || sess.State != "" {
		t.Fatal("artifacts must be cleared on provider error")
	}
	if idp.tokenCalls.Load() != 0 {
		t.Fatal("provider error must not reach the token endpoint")
	}
}

func TestExchangeCodeForTokens_StateMismatch(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)
	ctx := context.Background()

	sess := &session.Session{ID: "sess-1"}
	if _, err := m.GenerateAuthorizationURL(ctx, sess, "/"); err != nil {
		t.Fatal(err)
	}

	callback, _ := url.Parse("/auth/callback?code=auth-code-1&state=forged")
	_, _, err := m.ExchangeCodeForTokens(ctx, sess, callback)
	if !IsKind(err, KindCallback) {
		t.Fatalf("expected %s, got %v", KindCallback, err)
	}
	if idp.tokenCalls.Load() != 0 {
		t.Fatal("state mismatch must not reach the token endpoint")
	}
	if sess.CodeVerifier != "" {
		t.Fatal("artifacts must be cleared even on a rejected callback")
	}
}

func TestExchangeCodeForTokens_MissingCodeAndAttempt(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)
	ctx := context.Background()

	// No code in the callback.
	sess := &session.Session{ID: "sess-1", CodeVerifier: "v", State: "s"}
	callback, _ := url.Parse("/auth/callback?state=s")
	if _, _, err := m.ExchangeCodeForTokens(ctx, sess, callback); !IsKind(err, KindCallback) {
		t.Fatalf("expected %s, got %v", KindCallback, err)
	}

	// No attempt pending in the session.
	fresh := &session.Session{ID: "sess-2"}
	callback, _ = url.Parse("/auth/callback?code=auth-code-1&state=s")
	if _, _, err := m.ExchangeCodeForTokens(ctx, fresh, callback); !IsKind(err, KindCallback) {
		t.Fatalf("expected %s, got %v", KindCallback, err)
	}
	if idp.tokenCalls.Load() != 0 {
		t.Fatal("rejected callbacks must not reach the token endpoint")
	}
}

func TestRefreshAccessToken_NoAccountIsExpected(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)

	// Anonymous session: empty partition, zero accounts.
	result, err := m.RefreshAccessToken(context.Background(), &session.Session{ID: "sess-1"})
	if err != nil {
		t.Fatalf("expected expected-absence, got error %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if idp.tokenCalls.Load() != 0 {
		t.Fatal("no cached account must mean no provider traffic")
	}
}

func TestRefreshAccessToken_StrictMatch(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	if err := tokens.SaveAccount(ctx, Account{HomeAccountID: "oid-1." + testTenantID, RefreshToken: "refresh-token-0"}); err != nil {
		t.Fatal(err)
	}

	sess := &session.Session{ID: "sess-1", HomeAccountID: "oid-1." + testTenantID}
	result, err := m.RefreshAccessToken(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || result.AccessToken != "access-token-1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	form := idp.lastTokenReq.Load()
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-token-0" {
		t.Fatalf("unexpected refresh request: %v", form)
	}
}

func TestRefreshAccessToken_RotationUpdatesCache(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	rotated := "refresh-token-2"
	idp.refreshTokenOut.Store(&rotated)

	if err := tokens.SaveAccount(ctx, Account{HomeAccountID: "oid-1." + testTenantID, RefreshToken: "refresh-token-0"}); err != nil {
		t.Fatal(err)
	}

	sess := &session.Session{ID: "sess-1", HomeAccountID: "oid-1." + testTenantID}
	if _, err := m.RefreshAccessToken(ctx, sess); err != nil {
		t.Fatal(err)
	}

	accounts := tokens.Accounts(ctx, sess.HomeAccountID)
	if len(accounts) != 1 || accounts[0].RefreshToken != "refresh-token-2" {
		t.Fatalf("rotated refresh token not persisted: %+v", accounts)
	}
}

func TestRefreshAccessToken_ProviderFailure(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	idp.failTokens.Store(true)
	if err := tokens.SaveAccount(ctx, Account{HomeAccountID: "oid-1." + testTenantID, RefreshToken: "refresh-token-0"}); err != nil {
		t.Fatal(err)
	}

	sess := &session.Session{ID: "sess-1", HomeAccountID: "oid-1." + testTenantID}
	_, err := m.RefreshAccessToken(ctx, sess)
	if !IsKind(err, KindTokenRefresh) {
		t.Fatalf("expected %s, got %v", KindTokenRefresh, err)
	}
}

func TestRefreshAccessToken_ForeignAccountStrict(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	if err := tokens.SaveAccount(ctx, Account{HomeAccountID: "oid-1." + testTenantID, RefreshToken: "refresh-token-0"}); err != nil {
		t.Fatal(err)
	}

	// Session points at a partition that only holds a near-miss id. With a
	// self-partitioned cache this requires a corrupted entry, but strict
	// matching must still refuse it.
	sess := &session.Session{ID: "sess-1", HomeAccountID: "oid-1"}
	result, err := m.RefreshAccessToken(ctx, sess)
	if err != nil || result != nil {
		t.Fatalf("strict mode must yield expected-absence, got %+v / %v", result, err)
	}
}

func TestLogout(t *testing.T) {
	idp := newFakeIDP(t)
	m, tokens := newTestManager(t, idp, false)
	ctx := context.Background()

	home := "oid-1." + testTenantID
	if err := tokens.SaveAccount(ctx, Account{HomeAccountID: home, RefreshToken: "refresh-token-0"}); err != nil {
		t.Fatal(err)
	}

	sess := &session.Session{ID: "sess-1", HomeAccountID: home}
	logoutURL, err := m.Logout(ctx, sess, "https://bff.example.com/", "/goodbye")
	if err != nil {
		t.Fatal(err)
	}

	wantRedirect := url.QueryEscape("https://bff.example.com/goodbye")
	if !strings.HasPrefix(logoutURL, idp.srv.URL+"/oauth2/v2.0/logout?post_logout_redirect_uri=") {
		t.Fatalf("unexpected logout url: %q", logoutURL)
	}
	if !strings.HasSuffix(logoutURL, wantRedirect) {
		t.Fatalf("post_logout_redirect_uri not escaped/joined correctly: %q", logoutURL)
	}

	if sess.HomeAccountID != "" {
		t.Fatal("logout must clear the session's home account id")
	}
	if accounts := tokens.Accounts(ctx, home); len(accounts) != 0 {
		t.Fatalf("logout must remove the cached account, got %+v", accounts)
	}
}

func TestLogout_RejectsAbsoluteReturnPath(t *testing.T) {
	idp := newFakeIDP(t)
	m, _ := newTestManager(t, idp, false)

	sess := &session.Session{ID: "sess-1", HomeAccountID: "oid-1." + testTenantID}
	_, err := m.Logout(context.Background(), sess, "https://bff.example.com", "https://evil.example.com/phish")
	if !IsKind(err, KindInvalidReturnPath) {
		t.Fatalf("expected %s, got %v", KindInvalidReturnPath, err)
	}
	if sess.HomeAccountID == "" {
		t.Fatal("rejected logout must not touch the session")
	}
}

func TestNormalizeRelativePath(t *testing.T) {
	valid := map[string]string{
		"":                 "/",
		"/":                "/",
		"/dashboard":       "/dashboard",
		"dashboard":        "/dashboard",
		"/a/b?x=1":         "/a/b?x=1",
		"/logged-out.html": "/logged-out.html",
	}
	for in, want := range valid {
		got, err := NormalizeRelativePath(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}

	invalid := []string{
		"//evil.example.com/x",
		"https://evil.example.com",
		"javascript://alert",
		"http://evil",
	}
	for _, in := range invalid {
		if _, err := NormalizeRelativePath(in); !IsKind(err, KindInvalidReturnPath) {
			t.Fatalf("%q: expected %s, got %v", in, KindInvalidReturnPath, err)
		}
	}
}

func TestIDClaimsHomeAccountID(t *testing.T) {
	cases := []struct {
		claims IDClaims
		want   string
	}{
		{IDClaims{ObjectID: "oid-1", TenantID: "tid-1"}, "oid-1.tid-1"},
		{IDClaims{Subject: "sub-1", TenantID: "tid-1"}, "sub-1.tid-1"},
		{IDClaims{ObjectID: "oid-1"}, "oid-1.default"},
		{IDClaims{}, ""},
	}
	for _, c := range cases {
		if got := c.claims.HomeAccountID("default"); got != c.want {
			t.Fatalf("claims %+v: expected %q, got %q", c.claims, c.want, got)
		}
	}
}
