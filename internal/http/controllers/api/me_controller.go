package api

import (
	"encoding/json"
	"net/http"

	authdto "github.com/dropDatabas3/hellobff/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobff/internal/http/errors"
	"github.com/dropDatabas3/hellobff/internal/session"
)

// MeController handles GET /api/me.
type MeController struct{}

func NewMeController() *MeController {
	return &MeController{}
}

// Me returns the authenticated user's profile from the session. Tokens never
// leave the server.
func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authdto.FromSession(sess))
}
