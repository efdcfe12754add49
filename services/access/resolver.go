// Package access reconciles the requested page and the current session into
// an allow or redirect decision.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
)

// Action is the outcome of a page access check
type Action int

const (
	// Allow serves the page
	Allow Action = iota
	// RedirectLogin sends an anonymous visitor to the login page
	RedirectLogin
	// RedirectRestricted sends a non-administrator to the read-only view
	RedirectRestricted
)

// String returns the action name used in logs and metrics
func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectRestricted:
		return "redirect_restricted"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the resolved outcome for one page load
type Decision struct {
	Action Action
	Page   string
	// Target is the page to navigate to when Action is a redirect
	Target string
	// Session is the resolved session. It is nil for anonymous visitors and
	// for the login page, which is exempt from session handling.
	Session *models.Session
	// Discarded is set when a malformed record was found and destroyed
	Discarded bool
}

// Redirect reports whether the decision navigates away from the page
func (d Decision) Redirect() bool {
	return d.Action != Allow
}

// Pages names the three pages the resolver distinguishes
type Pages struct {
	Login      string
	Admin      string
	Restricted string
	Default    string
}

// PageFromPath derives the page identifier from a request path: its last
// segment, matched case-sensitively. A path ending in "/" names the default page.
func PageFromPath(path, defaultPage string) string {
	page := path[strings.LastIndex(path, "/")+1:]
	if page == "" {
		return defaultPage
	}
	return page
}

// Resolver applies the page access decision table
type Resolver struct {
	pages  Pages
	logger *zap.Logger
}

// NewResolver creates a Resolver for the given pages
func NewResolver(pages Pages, logger *zap.Logger) *Resolver {
	return &Resolver{pages: pages, logger: logger}
}

// Pages returns the configured pages
func (r *Resolver) Pages() Pages {
	return r.pages
}

// Decide evaluates the decision table, first matching row wins:
//  1. login page: allow, no session needed
//  2. no session: redirect to login
//  3. admin page and not administrator: redirect to the restricted view
//  4. restricted view and administrator: allow
//  5. anything else: allow with the session
func (r *Resolver) Decide(page string, s *models.Session) Decision {
	d := Decision{Page: page}

	switch {
	case page == r.pages.Login:
		d.Action = Allow
	case s == nil:
		d.Action = RedirectLogin
		d.Target = r.pages.Login
	case page == r.pages.Admin && !s.IsAdministrator():
		d.Action = RedirectRestricted
		d.Target = r.pages.Restricted
		d.Session = s
	case page == r.pages.Restricted && s.IsAdministrator():
		d.Action = Allow
		d.Session = s
	default:
		d.Action = Allow
		d.Session = s
	}
	return d
}

// Resolve reads the session from the provider, except on the login page where
// evaluation stops before any session handling, and decides.
func (r *Resolver) Resolve(ctx context.Context, page string, provider session.Provider) (Decision, error) {
	if page == r.pages.Login {
		return r.Decide(page, nil), nil
	}

	s, discarded, err := session.Load(ctx, provider, r.logger)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load session: %w", err)
	}

	d := r.Decide(page, s)
	d.Discarded = discarded
	if page == r.pages.Restricted && s.IsAdministrator() {
		r.logger.Debug("administrator viewing the restricted page", zap.String("page", page))
	}
	return d, nil
}
