package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellobff/internal/cache"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
)

const keyPrefix = "sess:"

// Store persists sessions in the shared cache backend, keyed by an opaque
// session id carried in the browser cookie.
type Store struct {
	cache  cache.Client
	cookie CookieConfig
	ttl    time.Duration
	log    *zap.Logger
}

// NewStore creates a session store. ttl bounds the server-side session
// lifetime; the cookie uses the same TTL.
func NewStore(c cache.Client, cookie CookieConfig, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	cookie.TTL = ttl
	return &Store{cache: c, cookie: cookie, ttl: ttl, log: log}
}

// Load resolves the request's session. A missing cookie, an unknown id or a
// corrupt record all yield a fresh anonymous session; Load never fails the
// request for cache trouble.
func (s *Store) Load(ctx context.Context, r *http.Request) *Session {
	ck, err := r.Cookie(s.cookie.name())
	if err != nil || ck.Value == "" {
		return s.newSession()
	}

	raw, err := s.cache.Get(ctx, keyPrefix+ck.Value)
	if err != nil {
		if !cache.IsNotFound(err) {
			s.log.Warn("session load failed, starting anonymous session",
				logger.Err(err), logger.SessionID(ck.Value))
		}
		return s.newSession()
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.log.Warn("corrupt session record, starting anonymous session",
			logger.Err(err), logger.SessionID(ck.Value))
		return s.newSession()
	}
	if sess.ID == "" {
		sess.ID = ck.Value
	}
	return &sess
}

// Save persists the session and (re)issues the cookie.
func (s *Store) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, keyPrefix+sess.ID, string(raw), s.ttl); err != nil {
		return err
	}
	http.SetCookie(w, BuildCookie(s.cookie, sess.ID))
	return nil
}

// Destroy removes the server-side record and expires the cookie.
// Cache errors are logged; the cookie is expired regardless so the browser
// ends up logged out either way.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) {
	if sess != nil && sess.ID != "" {
		if err := s.cache.Delete(ctx, keyPrefix+sess.ID); err != nil {
			s.log.Warn("session destroy failed", logger.Err(err), logger.SessionID(sess.ID))
		}
	}
	http.SetCookie(w, BuildDeletionCookie(s.cookie))
}

func (s *Store) newSession() *Session {
	return &Session{ID: uuid.NewString()}
}
