package repositories

import (
	"context"

	"github.com/upb/ugc-pageguard/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// AuditRepository persists access audit events
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// InsertBatch inserts several entries atomically
	InsertBatch(ctx context.Context, logs []*models.AuditLog) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	AuditLogs AuditRepository
}
