package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whisprlabs/whispr/internal/models"
)

// AuditRepository defines the interface for audit log operations.
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)
	List(ctx context.Context, query models.AuditLogQuery) ([]*models.AuditLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

// Create inserts a new audit log entry.
func (r *auditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, event, user_id, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, query,
		log.ID,
		log.Event,
		log.UserID,
		log.IPAddress,
		log.UserAgent,
		log.Metadata,
	).Scan(&log.CreatedAt)
}

// GetByID retrieves an audit log by ID.
func (r *auditRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	query := `
		SELECT id, event, user_id, ip_address, user_agent, metadata, created_at
		FROM audit_logs WHERE id = $1`

	var log models.AuditLog
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&log.ID,
		&log.Event,
		&log.UserID,
		&log.IPAddress,
		&log.UserAgent,
		&log.Metadata,
		&log.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// List retrieves audit logs based on query parameters, newest first.
func (r *auditRepo) List(ctx context.Context, q models.AuditLogQuery) ([]*models.AuditLog, error) {
	baseQuery := `
		SELECT id, event, user_id, ip_address, user_agent, metadata, created_at
		FROM audit_logs
		WHERE 1=1`

	var args []any
	argIndex := 1

	if q.Event != nil {
		baseQuery += fmt.Sprintf(` AND event = $%d`, argIndex)
		args = append(args, *q.Event)
		argIndex++
	}

	if q.UserID != nil {
		baseQuery += fmt.Sprintf(` AND user_id = $%d`, argIndex)
		args = append(args, *q.UserID)
		argIndex++
	}

	if q.StartTime != nil {
		baseQuery += fmt.Sprintf(` AND created_at >= $%d`, argIndex)
		args = append(args, *q.StartTime)
		argIndex++
	}

	if q.EndTime != nil {
		baseQuery += fmt.Sprintf(` AND created_at <= $%d`, argIndex)
		args = append(args, *q.EndTime)
		argIndex++
	}

	baseQuery += ` ORDER BY created_at DESC`

	limit := q.Limit
	if limit == 0 || limit > 100 {
		limit = 100
	}
	baseQuery += fmt.Sprintf(` LIMIT $%d`, argIndex)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(
			&log.ID,
			&log.Event,
			&log.UserID,
			&log.IPAddress,
			&log.UserAgent,
			&log.Metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// DeleteBefore deletes audit logs older than the given time.
// Used for retention policy enforcement.
func (r *auditRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < $1`
	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Compile-time check to ensure auditRepo implements AuditRepository.
var _ AuditRepository = (*auditRepo)(nil)
