package api

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellobff/internal/backend"
	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	svc "github.com/dropDatabas3/hellobff/internal/http/services/auth"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// ProtectedController proxies GET /api/protected-data to the backend API
// using the session's enriched app token.
type ProtectedController struct {
	flow    *svc.FlowService
	backend *backend.Client
	store   *session.Store
}

func NewProtectedController(flow *svc.FlowService, backendClient *backend.Client, store *session.Store) *ProtectedController {
	return &ProtectedController{flow: flow, backend: backendClient, store: store}
}

// ProtectedData ensures the session holds a valid app token (refreshing the
// provider token silently when needed), persists any session mutation, and
// forwards the backend response body as-is.
func (c *ProtectedController) ProtectedData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProtectedController.ProtectedData"))

	sess := session.FromContext(ctx)
	if sess == nil || !sess.Authenticated() {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	accessErr := c.flow.EnsureAPIAccess(ctx, sess)

	// EnsureAPIAccess may have refreshed the app token or cleared a stale
	// one. Either way the session changed and must be persisted.
	if err := c.store.Save(ctx, w, sess); err != nil {
		log.Error("failed to persist session", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	if accessErr != nil {
		if errors.Is(accessErr, svc.ErrReauthRequired) {
			httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("reauthentication required"))
			return
		}
		log.Warn("could not obtain api access", logger.Err(accessErr))
		httperrors.WriteError(w, accessErr)
		return
	}

	data, err := c.backend.FetchProtectedData(ctx, sess.User.APIToken)
	if err != nil {
		log.Warn("backend call failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
