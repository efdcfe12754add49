package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/ugc-pageguard/auth"
	"github.com/upb/ugc-pageguard/config"
	"github.com/upb/ugc-pageguard/handlers"
	"github.com/upb/ugc-pageguard/internal/observability"
	"github.com/upb/ugc-pageguard/middleware"
	"github.com/upb/ugc-pageguard/repositories"
	"github.com/upb/ugc-pageguard/repositories/postgres"
	"github.com/upb/ugc-pageguard/services/access"
	"github.com/upb/ugc-pageguard/services/audit"
	"github.com/upb/ugc-pageguard/services/enforcer"
	"github.com/upb/ugc-pageguard/services/gate"
	"github.com/upb/ugc-pageguard/services/guard"
	"github.com/upb/ugc-pageguard/services/session"
	"go.uber.org/zap"
)

// PagesRoot is the URL path the guarded pages are served under
const PagesRoot = "/"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics // nil when metrics are disabled

	// Audit trail, nil unless enabled
	RepoFactory  *postgres.RepositoryFactory
	DB           *postgres.DB
	AuditLogs    repositories.AuditRepository
	AuditService *audit.AuditService

	// Page guard
	Resolver *access.Resolver
	Enforcer *enforcer.Enforcer
	Guard    *guard.Guard
	Gates    *gate.Builder

	// HTTP
	PageGuard         *middleware.PageGuard
	SessionMiddleware *middleware.SessionMiddleware
	SessionHandler    *handlers.SessionHandler
	HealthHandler     *handlers.HealthHandler
	AuthHandler       *auth.Handler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if cfg.Audit.Enabled {
		if err := deps.initAudit(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
		}
	}

	deps.initGuard(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("audit", cfg.Audit.Enabled),
		zap.Bool("metrics", cfg.Observability.MetricsEnabled))
	return deps, nil
}

// initAudit connects the audit database and starts the audit workers
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.AuditLogs = factory.NewRepositories().AuditLogs

	auditCfg := audit.DefaultConfig()
	auditCfg.BufferSize = cfg.Audit.BufferSize
	auditCfg.WorkerCount = cfg.Audit.WorkerCount
	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, auditCfg)
	if err := d.AuditService.Start(); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Logger.Info("audit trail enabled",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initGuard builds the resolver, enforcer, guard and gate builder
func (d *Dependencies) initGuard(cfg *config.Config) {
	d.Resolver = access.NewResolver(access.Pages{
		Login:      cfg.Pages.Login,
		Admin:      cfg.Pages.Admin,
		Restricted: cfg.Pages.Restricted,
		Default:    cfg.Pages.Default,
	}, d.Logger)

	d.Enforcer = enforcer.New(enforcer.Options{
		Contact:            cfg.Enforcement.Contact,
		SearchFieldMarkers: cfg.Enforcement.SearchFieldMarkers,
		SignOutPath:        cfg.Enforcement.SignOutPath,
	}, d.Logger)

	guardCfg := guard.Config{LockDelay: cfg.Enforcement.LockDelay}
	gateOpts := gate.Options{
		LoginPage: cfg.Pages.Login,
		Contact:   cfg.Enforcement.Contact,
	}
	// interfaces stay nil, not typed-nil, when a sink is disabled
	if d.Metrics != nil {
		guardCfg.Metrics = d.Metrics
		gateOpts.Metrics = d.Metrics
	}
	if d.AuditService != nil {
		guardCfg.Auditor = d.AuditService
		gateOpts.Auditor = d.AuditService
	}

	d.Guard = guard.New(d.Resolver, d.Enforcer, guardCfg, d.Logger)
	d.Gates = gate.NewBuilder(gateOpts, d.Logger)
}

// initHTTP builds middleware and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	cookie := session.CookieOptions{
		Name:   cfg.Session.CookieName,
		Path:   cfg.Session.Path,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Session.MaxAge,
	}

	d.PageGuard = middleware.NewPageGuard(d.Guard, cookie, d.Logger)
	d.SessionMiddleware = middleware.NewSessionMiddleware(cookie, d.Logger)
	d.SessionHandler = handlers.NewSessionHandler(d.Gates, PagesRoot, d.Logger)
	d.AuthHandler = auth.NewHandler(d.Gates, PagesRoot, cfg.Pages.Default, d.Logger)

	if d.DB != nil {
		d.HealthHandler = handlers.NewHealthHandler(d.DB, d.AuditService, d.Logger)
	} else {
		d.HealthHandler = handlers.NewHealthHandler(nil, nil, d.Logger)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued audit events before the database goes away
	if d.AuditService != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.AuditService = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
