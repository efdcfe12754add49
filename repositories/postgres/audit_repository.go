package postgres

import (
	"context"
	"fmt"

	"github.com/upb/ugc-pageguard/models"
	"github.com/upb/ugc-pageguard/repositories"
	"go.uber.org/zap"
)

const insertAuditLogQuery = `
		INSERT INTO pageguard_audit_logs (
			id, action, page, target, user_name, role,
			details, ip_address, user_agent, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	tm     repositories.TransactionManager
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		tm:     NewTransactionManager(db, logger),
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, insertAuditLogQuery,
		log.ID,
		log.Action,
		log.Page,
		log.Target,
		log.UserName,
		log.Role,
		log.Details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// InsertBatch inserts all entries in one transaction
func (r *AuditRepository) InsertBatch(ctx context.Context, logs []*models.AuditLog) error {
	switch len(logs) {
	case 0:
		return nil
	case 1:
		return r.Insert(ctx, logs[0])
	}

	return r.tm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		for _, log := range logs {
			if err := r.Insert(ctx, log); err != nil {
				return err
			}
		}
		return nil
	})
}
