// Package guard runs the per-page-load sequence: access check first, then UI
// enforcement for allowed sessions.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/services/access"
	"github.com/upb/ugc-pageguard/services/enforcer"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// State is the position of a page load in its lifecycle
type State int

const (
	StateInit State = iota
	// StateRedirecting is terminal: anonymous visitor sent to login
	StateRedirecting
	// StateDenied is terminal: non-administrator sent off the admin page
	StateDenied
	StateAllowedAnonymous
	StateAllowedAdmin
	StateAllowedReadOnly
	// StateLocked follows StateAllowedReadOnly once the lockdown is applied
	StateLocked
)

var stateNames = map[State]string{
	StateInit:             "init",
	StateRedirecting:      "redirecting",
	StateDenied:           "denied",
	StateAllowedAnonymous: "allowed_anonymous",
	StateAllowedAdmin:     "allowed_admin",
	StateAllowedReadOnly:  "allowed_read_only",
	StateLocked:           "locked",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Recorder receives page load metrics
type Recorder interface {
	RecordDecision(decision string)
	RecordLockdown(buttons, fields int)
}

// Auditor receives access audit events
type Auditor interface {
	Record(log *models.AuditLog)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string)   {}
func (nopRecorder) RecordLockdown(int, int) {}

type nopAuditor struct{}

func (nopAuditor) Record(*models.AuditLog) {}

// Config configures a Guard
type Config struct {
	// LockDelay defers the read-only lockdown after identity decoration
	LockDelay time.Duration
	Metrics   Recorder
	Auditor   Auditor
}

// Guard creates page loads sharing one resolver and enforcer
type Guard struct {
	resolver  *access.Resolver
	enforcer  *enforcer.Enforcer
	lockDelay time.Duration
	metrics   Recorder
	auditor   Auditor
	logger    *zap.Logger
}

// New creates a Guard
func New(resolver *access.Resolver, enf *enforcer.Enforcer, cfg Config, logger *zap.Logger) *Guard {
	g := &Guard{
		resolver:  resolver,
		enforcer:  enf,
		lockDelay: cfg.LockDelay,
		metrics:   cfg.Metrics,
		auditor:   cfg.Auditor,
		logger:    logger,
	}
	if g.metrics == nil {
		g.metrics = nopRecorder{}
	}
	if g.auditor == nil {
		g.auditor = nopAuditor{}
	}
	return g
}

// Resolver returns the access resolver
func (g *Guard) Resolver() *access.Resolver {
	return g.resolver
}

// PageLoad is one evaluation of one page. Check and Decorate may each be
// called any number of times, in any order; the work runs once.
type PageLoad struct {
	g        *Guard
	page     string
	provider session.Provider
	info     models.RequestInfo

	mu        sync.Mutex
	state     State
	checked   bool
	decision  access.Decision
	checkErr  error
	decorated bool
	report    enforcer.LockdownReport
}

// NewPageLoad starts a page load for page, reading the session from provider
func (g *Guard) NewPageLoad(page string, provider session.Provider, info models.RequestInfo) *PageLoad {
	return &PageLoad{g: g, page: page, provider: provider, info: info}
}

// Page returns the page identifier
func (p *PageLoad) Page() string {
	return p.page
}

// State returns the current state
func (p *PageLoad) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Report returns what the lockdown disabled, zero until it has run
func (p *PageLoad) Report() enforcer.LockdownReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// Check resolves access once and caches the decision
func (p *PageLoad) Check(ctx context.Context) (access.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check(ctx)
}

func (p *PageLoad) check(ctx context.Context) (access.Decision, error) {
	if p.checked {
		return p.decision, p.checkErr
	}
	p.checked = true

	logger := observability.FromContext(ctx, p.g.logger).With(zap.String("page", p.page))

	d, err := p.g.resolver.Resolve(ctx, p.page, p.provider)
	if err != nil {
		p.checkErr = err
		logger.Error("access check failed", zap.Error(err))
		return d, err
	}
	p.decision = d

	if d.Discarded {
		p.audit(models.NewAuditLog(models.AuditActionMalformedSession, p.page))
	}

	switch d.Action {
	case access.RedirectLogin:
		p.state = StateRedirecting
		p.audit(models.NewAuditLog(models.AuditActionLoginRedirect, p.page).WithTarget(d.Target))
	case access.RedirectRestricted:
		p.state = StateDenied
		p.audit(models.NewAuditLog(models.AuditActionRestrictedRedirect, p.page).
			WithTarget(d.Target).
			WithSession(d.Session))
	default:
		switch {
		case d.Session == nil:
			p.state = StateAllowedAnonymous
		case d.Session.IsAdministrator():
			p.state = StateAllowedAdmin
		default:
			p.state = StateAllowedReadOnly
		}
	}

	p.g.metrics.RecordDecision(d.Action.String())
	logger.Debug("access decided",
		zap.String("decision", d.Action.String()),
		zap.String("state", p.state.String()),
	)
	return d, nil
}

func (p *PageLoad) audit(log *models.AuditLog) {
	p.g.auditor.Record(log.WithRequestInfo(p.info))
}

// Decorate runs the UI enforcement on doc: identity display for every
// allowed session, then, for read-only sessions, the deferred lockdown and
// banner. It performs the access check first when Check has not run. Pages
// that were not allowed with a session are left untouched.
//
// Cancelling ctx during the lockdown delay returns ctx.Err() and leaves the
// page unlocked; a later call retries the lockdown.
func (p *PageLoad) Decorate(ctx context.Context, doc *html.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, err := p.check(ctx)
	if err != nil {
		return err
	}
	if p.decorated {
		return nil
	}
	if p.state != StateAllowedAdmin && p.state != StateAllowedReadOnly {
		return nil
	}

	if _, err := p.g.enforcer.DecorateIdentity(doc, d.Session); err != nil {
		return fmt.Errorf("failed to decorate identity: %w", err)
	}
	if p.state == StateAllowedAdmin {
		p.decorated = true
		return nil
	}

	if err := wait(ctx, p.g.lockDelay); err != nil {
		return err
	}

	p.report = p.g.enforcer.Lockdown(doc)
	if _, err := p.g.enforcer.ShowBanner(doc); err != nil {
		return fmt.Errorf("failed to show read-only banner: %w", err)
	}
	p.state = StateLocked
	p.decorated = true

	p.g.metrics.RecordLockdown(p.report.Buttons, p.report.Fields)
	p.audit(models.NewAuditLog(models.AuditActionReadOnlyLockdown, p.page).
		WithSession(d.Session).
		WithDetails(map[string]int{"buttons": p.report.Buttons, "fields": p.report.Fields}))
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
