package handlers

import (
	"net/http"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/middleware"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services"
	"github.com/upb/ugc-pageguard/services/gate"
	"github.com/upb/ugc-pageguard/utils"
	"go.uber.org/zap"
)

// AuthorizeRequest asks whether the current session may perform an action
type AuthorizeRequest struct {
	Action string `json:"action" validate:"required,max=100"`
	// Page the action is attempted on, for the audit trail
	Page string `json:"page,omitempty" validate:"max=255"`
}

// CurrentUserResponse carries the current session, null when signed out
type CurrentUserResponse struct {
	User *models.Session `json:"user"`
}

// AdministratorResponse reports whether the current session is an administrator
type AdministratorResponse struct {
	Administrator bool `json:"administrator"`
}

// AuthorizeResponse reports an allowed action
type AuthorizeResponse struct {
	Allowed bool `json:"allowed"`
}

// SessionHandler exposes the session gate to page scripts
type SessionHandler struct {
	gates     *gate.Builder
	pagesRoot string
	logger    *zap.Logger
}

// NewSessionHandler creates a new SessionHandler. pagesRoot prefixes the
// login page in redirect hints.
func NewSessionHandler(gates *gate.Builder, pagesRoot string, logger *zap.Logger) *SessionHandler {
	if pagesRoot == "" {
		pagesRoot = "/"
	}
	return &SessionHandler{
		gates:     gates,
		pagesRoot: pagesRoot,
		logger:    logger,
	}
}

// gateFor builds the gate for one request. The store comes from
// SessionMiddleware.BindSession.
func (h *SessionHandler) gateFor(r *http.Request, effects *gate.Effects, page string) (*gate.Gate, error) {
	store := middleware.GetStoreFromContext(r.Context())
	if store == nil {
		return nil, services.WrapError(services.ErrorTypeInternal, "session store missing from context", nil)
	}
	return h.gates.Build(store, effects, gate.Answer(false), page, middleware.RequestInfo(r)), nil
}

// HandleCurrentUser handles GET /api/v1/session
func (h *SessionHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	g, err := h.gateFor(r, &gate.Effects{}, "")
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	s, err := g.CurrentUser(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapError(services.ErrorTypeInternal, "failed to read session", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, CurrentUserResponse{User: s})
}

// HandleIsAdministrator handles GET /api/v1/session/admin
func (h *SessionHandler) HandleIsAdministrator(w http.ResponseWriter, r *http.Request) {
	g, err := h.gateFor(r, &gate.Effects{}, "")
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, AdministratorResponse{Administrator: g.IsAdministrator(r.Context())})
}

// HandleAuthorize handles POST /api/v1/session/authorize. Denials carry the
// notice to show; a missing session also carries the login redirect.
func (h *SessionHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx, h.logger)

	var req AuthorizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	effects := &gate.Effects{}
	g, err := h.gateFor(r, effects, req.Page)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if g.AuthorizeAction(ctx, req.Action) {
		_ = utils.WriteOK(w, AuthorizeResponse{Allowed: true})
		return
	}

	var notice models.Notice
	if notices := effects.Notices(); len(notices) > 0 {
		notice = notices[len(notices)-1]
	}
	details := map[string]interface{}{
		"allowed": false,
		"notice":  notice,
	}

	if target := effects.Target(); target != "" {
		details["redirect"] = h.pagesRoot + target
		logger.Debug("action requires sign-in", zap.String("action", req.Action))
		if err := utils.WriteUnauthorized(w, notice.Message, details); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteForbidden(w, notice.Message, details); err != nil {
		logger.Error("failed to write forbidden response", zap.Error(err))
	}
}
