package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
)

// Context key type to avoid collisions
type contextKey string

const (
	// SessionKey is the context key for the session a guarded page was allowed with
	SessionKey contextKey = "session"

	// PageKey is the context key for the guarded page identifier
	PageKey contextKey = "page"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetSessionFromContext retrieves the session from context
func GetSessionFromContext(ctx context.Context) *models.Session {
	if val := ctx.Value(SessionKey); val != nil {
		if s, ok := val.(*models.Session); ok {
			return s
		}
	}
	return nil
}

// WithSession adds a session to the context
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// GetPageFromContext retrieves the guarded page identifier from context
func GetPageFromContext(ctx context.Context) string {
	if val := ctx.Value(PageKey); val != nil {
		if page, ok := val.(string); ok {
			return page
		}
	}
	return ""
}

// WithPage adds the guarded page identifier to the context
func WithPage(ctx context.Context, page string) context.Context {
	return context.WithValue(ctx, PageKey, page)
}

// RequestInfo collects the request metadata recorded on audit entries.
// RemoteAddr is the client address once chi's RealIP has run.
func RequestInfo(r *http.Request) models.RequestInfo {
	return models.RequestInfo{
		RequestID: GetRequestIDFromContext(r.Context()),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// StoreKey is the context key for the request-scoped session store
const StoreKey contextKey = "session_store"

// GetStoreFromContext retrieves the session store bound by BindSession
func GetStoreFromContext(ctx context.Context) session.Store {
	if val := ctx.Value(StoreKey); val != nil {
		if store, ok := val.(session.Store); ok {
			return store
		}
	}
	return nil
}

// WithStore adds a session store to the context
func WithStore(ctx context.Context, store session.Store) context.Context {
	return context.WithValue(ctx, StoreKey, store)
}
