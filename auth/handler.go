package auth

import (
	"net/http"
	"net/url"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/middleware"
	"github.com/upb/ugc-pageguard/services/access"
	"github.com/upb/ugc-pageguard/services/gate"
	"github.com/upb/ugc-pageguard/utils"
	"go.uber.org/zap"
)

// ConfirmField is the form field carrying the user's answer to the sign-out
// prompt. Only ConfirmYes signs out.
const (
	ConfirmField = "confirm"
	ConfirmYes   = "yes"
)

// Handler handles sign-out for the page guard session
type Handler struct {
	gates       *gate.Builder
	pagesRoot   string
	defaultPage string
	logger      *zap.Logger
}

// NewHandler creates a new auth handler. pagesRoot is the URL path the guarded
// pages are served under, ending in "/".
func NewHandler(gates *gate.Builder, pagesRoot, defaultPage string, logger *zap.Logger) *Handler {
	if pagesRoot == "" {
		pagesRoot = "/"
	}
	return &Handler{
		gates:       gates,
		pagesRoot:   pagesRoot,
		defaultPage: defaultPage,
		logger:      logger,
	}
}

// HandleLogout handles POST /auth/logout. The confirmation comes from the
// page's confirm dialog; a declined sign-out changes nothing.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx, h.logger)

	store := middleware.GetStoreFromContext(ctx)
	if store == nil {
		logger.Error("session store missing from context")
		_ = utils.WriteInternalServerError(w, "Session unavailable")
		return
	}

	if err := r.ParseForm(); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid form", nil)
		return
	}
	confirmed := r.PostFormValue(ConfirmField) == ConfirmYes

	effects := &gate.Effects{}
	g := h.gates.Build(store, effects, gate.Answer(confirmed), h.refererPage(r), middleware.RequestInfo(r))

	signedOut, err := g.SignOut(ctx)
	if err != nil {
		logger.Error("sign-out failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to sign out")
		return
	}
	if !signedOut {
		logger.Debug("sign-out declined")
		utils.WriteNoContent(w)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.pagesRoot+effects.Target(), http.StatusSeeOther)
}

// refererPage names the page the sign-out was posted from, for the audit trail
func (h *Handler) refererPage(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return access.PageFromPath(u.Path, h.defaultPage)
}
