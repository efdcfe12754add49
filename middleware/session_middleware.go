package middleware

import (
	"net/http"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
	"github.com/upb/ugc-pageguard/utils"
	"go.uber.org/zap"
)

// SessionMiddleware binds the cookie-held session record to API requests
type SessionMiddleware struct {
	cookie session.CookieOptions
	logger *zap.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware
func NewSessionMiddleware(cookie session.CookieOptions, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		cookie: cookie,
		logger: logger,
	}
}

// BindSession puts a request-scoped cookie store in the context. Handlers
// read, save and destroy the session through it.
func (m *SessionMiddleware) BindSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.NewCookieStore(m.cookie, r, w)
		next.ServeHTTP(w, r.WithContext(WithStore(r.Context(), store)))
	})
}

// RequireSession rejects requests without a well-formed session. It must run
// after BindSession. A malformed record is destroyed and treated as absent.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.FromContext(ctx, m.logger)

		store := GetStoreFromContext(ctx)
		if store == nil {
			logger.Error("session store missing from context")
			_ = utils.WriteInternalServerError(w, "Session unavailable")
			return
		}

		s, _, err := session.Load(ctx, store, logger)
		if err != nil {
			logger.Error("failed to load session", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Session unavailable")
			return
		}
		if s == nil {
			notice := models.LoginRequiredNotice()
			logger.Debug("missing session")
			_ = utils.WriteUnauthorized(w, notice.Message, map[string]interface{}{
				"notice": notice,
			})
			return
		}

		logger.Debug("session loaded",
			zap.String("user", s.Name),
			zap.String("role", string(s.Role)))

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
	})
}
