package auth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	svc "github.com/dropDatabas3/hellobff/internal/http/services/auth"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// CallbackController handles GET /auth/callback.
type CallbackController struct {
	flow  *svc.FlowService
	store *session.Store
}

// NewCallbackController creates the callback controller.
func NewCallbackController(flow *svc.FlowService, store *session.Store) *CallbackController {
	return &CallbackController{flow: flow, store: store}
}

// Callback completes the authorization code flow. The session is persisted on
// every path, including failures: the exchange clears the PKCE artifacts
// before touching the network and that cleared state must reach the store.
// Error details are logged only; the browser sees a generic message.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	sess := session.FromContext(ctx)
	if sess == nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	redirectTo, flowErr := c.flow.CompleteLogin(ctx, sess, r.URL)

	if err := c.store.Save(ctx, w, sess); err != nil {
		log.Error("failed to persist session after callback", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	if flowErr != nil {
		log.Warn("login attempt failed", logger.Err(flowErr))
		httperrors.WriteError(w, flowErr)
		return
	}

	http.Redirect(w, r, redirectTo, http.StatusFound)
}
