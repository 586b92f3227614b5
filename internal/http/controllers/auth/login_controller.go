package auth

import (
	"net/http"

	coreauth "github.com/dropDatabas3/hellobff/internal/auth"
	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	svc "github.com/dropDatabas3/hellobff/internal/http/services/auth"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// LoginController handles GET /auth/login.
type LoginController struct {
	flow  *svc.FlowService
	store *session.Store
}

// NewLoginController creates the login controller.
func NewLoginController(flow *svc.FlowService, store *session.Store) *LoginController {
	return &LoginController{flow: flow, store: store}
}

// Login starts the authorization code flow: generates the provider
// authorization URL, persists the PKCE artifacts in the session and redirects
// the browser to the provider.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	sess := session.FromContext(ctx)
	if sess == nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	// Only relative post-login targets; anything absolute falls back to /.
	returnURL := r.URL.Query().Get("return_url")
	if returnURL != "" {
		normalized, err := coreauth.NormalizeRelativePath(returnURL)
		if err != nil {
			returnURL = "/"
		} else {
			returnURL = normalized
		}
	}

	authURL, err := c.flow.StartLogin(ctx, sess, returnURL)
	if err != nil {
		log.Error("failed to start login", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	if err := c.store.Save(ctx, w, sess); err != nil {
		log.Error("failed to persist session before redirect", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}
