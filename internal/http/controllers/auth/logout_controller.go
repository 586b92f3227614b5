package auth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	svc "github.com/dropDatabas3/hellobff/internal/http/services/auth"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// LogoutController handles GET /auth/logout.
type LogoutController struct {
	flow         *svc.FlowService
	store        *session.Store
	publicOrigin string
}

// NewLogoutController creates the logout controller. publicOrigin is the
// externally visible base URL used to build the post-logout redirect.
func NewLogoutController(flow *svc.FlowService, store *session.Store, publicOrigin string) *LogoutController {
	return &LogoutController{flow: flow, store: store, publicOrigin: publicOrigin}
}

// Logout removes the cached account, destroys the local session and sends the
// browser to the provider's end-session endpoint.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LogoutController.Logout"))

	sess := session.FromContext(ctx)
	if sess == nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	logoutURL, err := c.flow.Logout(ctx, sess, c.publicOrigin, r.URL.Query().Get("return_url"))
	if err != nil {
		log.Warn("logout rejected", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	c.store.Destroy(ctx, w, sess)
	http.Redirect(w, r, logoutURL, http.StatusFound)
}
