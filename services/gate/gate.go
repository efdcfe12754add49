// Package gate is the capability surface other page features call before
// acting: who is signed in, whether they are an administrator, whether an
// action is authorized, and sign-out.
//
// Authorization here is advisory. The record it reads is client-held and
// unsigned.
package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
)

// SessionGate is the stable interface for session and authorization checks
type SessionGate interface {
	// SignOut asks for confirmation, then destroys the session and navigates
	// to the login page. It reports whether the user confirmed.
	SignOut(ctx context.Context) (bool, error)
	CurrentUser(ctx context.Context) (*models.Session, error)
	IsAdministrator(ctx context.Context) bool
	// AuthorizeAction permits administrators only. Denials notify the user
	// and, without a session, navigate to the login page.
	AuthorizeAction(ctx context.Context, action string) bool
}

// Navigator performs a full-page navigation
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Notifier shows a blocking notice to the user
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice)
}

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Answer returns a Confirmer that always gives the same answer
func Answer(yes bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return yes })
}

// SignOutPrompt is the confirmation question asked before signing out
const SignOutPrompt = "Are you sure you want to sign out?"

// Metrics receives gate outcomes
type Metrics interface {
	RecordAuthorization(outcome string)
	RecordSignOut(confirmed bool)
}

// Auditor receives access audit events
type Auditor interface {
	Record(log *models.AuditLog)
}

type nopMetrics struct{}

func (nopMetrics) RecordAuthorization(string) {}
func (nopMetrics) RecordSignOut(bool)         {}

type nopAuditor struct{}

func (nopAuditor) Record(*models.AuditLog) {}

// Options configures a Gate
type Options struct {
	LoginPage string
	Contact   string
	// Page names where the gate is used, for audit records
	Page    string
	Request models.RequestInfo
	Metrics Metrics
	Auditor Auditor
}

// Gate implements SessionGate over a session provider
type Gate struct {
	provider  session.Provider
	navigator Navigator
	notifier  Notifier
	confirmer Confirmer
	opts      Options
	logger    *zap.Logger
}

var _ SessionGate = (*Gate)(nil)

// New creates a Gate
func New(provider session.Provider, nav Navigator, notifier Notifier, confirmer Confirmer, opts Options, logger *zap.Logger) *Gate {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Auditor == nil {
		opts.Auditor = nopAuditor{}
	}
	return &Gate{
		provider:  provider,
		navigator: nav,
		notifier:  notifier,
		confirmer: confirmer,
		opts:      opts,
		logger:    logger,
	}
}

// SignOut implements SessionGate
func (g *Gate) SignOut(ctx context.Context) (bool, error) {
	if !g.confirmer.Confirm(ctx, SignOutPrompt) {
		g.opts.Metrics.RecordSignOut(false)
		return false, nil
	}

	// read before destroying, for the audit record only
	current, err := g.CurrentUser(ctx)
	if err != nil {
		observability.FromContext(ctx, g.logger).Warn("session unreadable before sign-out", zap.Error(err))
	}

	if err := g.provider.Destroy(ctx); err != nil {
		return true, fmt.Errorf("failed to destroy session: %w", err)
	}
	if err := g.navigator.Navigate(ctx, g.opts.LoginPage); err != nil {
		return true, fmt.Errorf("failed to navigate to login: %w", err)
	}

	g.opts.Metrics.RecordSignOut(true)
	g.audit(models.NewAuditLog(models.AuditActionSignOut, g.opts.Page).
		WithSession(current).
		WithTarget(g.opts.LoginPage))
	observability.FromContext(ctx, g.logger).Info("session signed out")
	return true, nil
}

// CurrentUser implements SessionGate. A malformed record reads as absent.
func (g *Gate) CurrentUser(ctx context.Context) (*models.Session, error) {
	s, _, err := session.Load(ctx, g.provider, g.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return s, nil
}

// IsAdministrator implements SessionGate
func (g *Gate) IsAdministrator(ctx context.Context) bool {
	s, err := g.CurrentUser(ctx)
	if err != nil {
		observability.FromContext(ctx, g.logger).Warn("session unreadable", zap.Error(err))
		return false
	}
	return s.IsAdministrator()
}

// AuthorizeAction implements SessionGate
func (g *Gate) AuthorizeAction(ctx context.Context, action string) bool {
	logger := observability.FromContext(ctx, g.logger).With(zap.String("action", action))

	s, err := g.CurrentUser(ctx)
	if err != nil {
		logger.Warn("session unreadable, treating as signed out", zap.Error(err))
	}

	switch {
	case s == nil:
		g.notifier.Notify(ctx, models.LoginRequiredNotice())
		if err := g.navigator.Navigate(ctx, g.opts.LoginPage); err != nil {
			logger.Error("failed to navigate to login", zap.Error(err))
		}
		g.opts.Metrics.RecordAuthorization(observability.OutcomeLoginRequired)
		g.audit(models.NewAuditLog(models.AuditActionActionDenied, g.opts.Page).
			WithTarget(g.opts.LoginPage).
			WithDetails(map[string]string{"action": action, "reason": "no_session"}))
		return false

	case !s.IsAdministrator():
		g.notifier.Notify(ctx, models.PermissionDeniedNotice(g.opts.Contact))
		g.opts.Metrics.RecordAuthorization(observability.OutcomeDenied)
		g.audit(models.NewAuditLog(models.AuditActionActionDenied, g.opts.Page).
			WithSession(s).
			WithDetails(map[string]string{"action": action, "reason": "read_only"}))
		logger.Info("action denied for read-only session")
		return false
	}

	g.opts.Metrics.RecordAuthorization(observability.OutcomeAllowed)
	return true
}

func (g *Gate) audit(log *models.AuditLog) {
	g.opts.Auditor.Record(log.WithRequestInfo(g.opts.Request))
}

// Effects records navigations and notices instead of performing them, so a
// request handler can turn them into a response.
type Effects struct {
	mu      sync.Mutex
	target  string
	notices []models.Notice
}

// Navigate implements Navigator
func (e *Effects) Navigate(_ context.Context, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = target
	return nil
}

// Notify implements Notifier
func (e *Effects) Notify(_ context.Context, notice models.Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notices = append(e.notices, notice)
}

// Target returns the last navigation target, empty when none
func (e *Effects) Target() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Notices returns the notices shown so far
func (e *Effects) Notices() []models.Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Notice(nil), e.notices...)
}

// Builder creates request-scoped gates that share one configuration
type Builder struct {
	base   Options
	logger *zap.Logger
}

// NewBuilder creates a Builder. Page and Request in base are ignored.
func NewBuilder(base Options, logger *zap.Logger) *Builder {
	base.Page = ""
	base.Request = models.RequestInfo{}
	return &Builder{base: base, logger: logger}
}

// LoginPage returns the configured login page
func (b *Builder) LoginPage() string {
	return b.base.LoginPage
}

// Build returns a gate for one request on page
func (b *Builder) Build(provider session.Provider, effects *Effects, confirmer Confirmer, page string, info models.RequestInfo) *Gate {
	opts := b.base
	opts.Page = page
	opts.Request = info
	return New(provider, effects, effects, confirmer, opts, b.logger)
}
