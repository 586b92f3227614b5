// Package backend implements the token enrichment exchange against the
// application backend: a validated provider access token goes in, a
// short-lived signed application JWT carrying roles comes out.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellobff/internal/auth"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
)

// Config configures the backend client.
type Config struct {
	// BaseURL of the backend API, e.g. http://localhost:5000.
	BaseURL string

	// JWTSecret is the shared HMAC secret the backend signs application JWTs
	// with. Verification happens here, before the token ever enters a
	// session.
	JWTSecret string
}

// EnrichedToken is the verified result of an enrichment exchange.
type EnrichedToken struct {
	Token     string
	ExpiresAt int64 // epoch milliseconds
	Roles     []string
	Subject   string
	Name      string
	Email     string
}

// Client calls the backend enrichment and data endpoints.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New creates a backend client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

type enrichResponse struct {
	Token string `json:"token"`
}

// EnrichToken swaps a provider access token for the backend's application
// JWT, verifies its signature and expiry against the shared secret, and
// normalizes the role claim. The backend's error body never travels further
// than the error Detail (logged, not shown to browsers).
func (c *Client) EnrichToken(ctx context.Context, accessToken string) (*EnrichedToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/enrich-token", nil)
	if err != nil {
		return nil, auth.WrapError(err, auth.KindBackendAuth, "building enrichment request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, auth.WrapError(err, auth.KindBackendAuth, "enrichment endpoint unreachable")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode/100 != 2 {
		c.log.Warn("enrichment exchange rejected",
			logger.Status(resp.StatusCode), logger.Component("backend.client"))
		return nil, auth.NewError(auth.KindBackendAuth,
			fmt.Sprintf("enrichment endpoint returned HTTP %d", resp.StatusCode)).
			WithDetail(string(body))
	}

	var er enrichResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Token == "" {
		return nil, auth.NewError(auth.KindBackendAuth, "enrichment response carries no token")
	}

	return c.verifyToken(er.Token)
}

// verifyToken checks the application JWT cryptographically and extracts the
// session-relevant claims.
func (c *Client) verifyToken(raw string) (*EnrichedToken, error) {
	tok, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return []byte(c.cfg.JWTSecret), nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, auth.WrapError(err, auth.KindTokenVerification, "application JWT failed verification")
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, auth.NewError(auth.KindTokenVerification, "application JWT claims have unexpected type")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, auth.NewError(auth.KindTokenVerification, "application JWT has no expiry")
	}

	return &EnrichedToken{
		Token:     raw,
		ExpiresAt: exp.UnixMilli(),
		Roles:     NormalizeRoles(claims["role"]),
		Subject:   strClaim(claims, "sub"),
		Name:      strClaim(claims, "name"),
		Email:     strClaim(claims, "email"),
	}, nil
}

// FetchProtectedData calls the backend's protected endpoint with the
// application JWT and returns the raw JSON payload.
func (c *Client) FetchProtectedData(ctx context.Context, appToken string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/protected-data", nil)
	if err != nil {
		return nil, auth.WrapError(err, auth.KindBackendAuth, "building protected data request")
	}
	req.Header.Set("Authorization", "Bearer "+appToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, auth.WrapError(err, auth.KindBackendAuth, "backend unreachable")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode/100 != 2 {
		return nil, auth.NewError(auth.KindBackendAuth,
			fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)).
			WithDetail(string(body))
	}
	return json.RawMessage(body), nil
}

// NormalizeRoles flattens the role claim into a list. Backends emit either a
// single string or an array; an absent claim means no roles, never nil
// surprises downstream.
func NormalizeRoles(claim any) []string {
	switch v := claim.(type) {
	case nil:
		return []string{}
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func strClaim(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}
