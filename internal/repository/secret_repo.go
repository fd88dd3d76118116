package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/pkg/ulid"
)

// SecretRepository defines the interface for secret data operations.
type SecretRepository interface {
	Create(ctx context.Context, secret *models.Secret) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Secret, error)
	// ListAll returns every user's secrets, newest first.
	ListAll(ctx context.Context, limit int) ([]*models.Secret, error)
}

type secretRepo struct {
	pool *pgxpool.Pool
}

// NewSecretRepository creates a new secret repository.
func NewSecretRepository(pool *pgxpool.Pool) SecretRepository {
	return &secretRepo{pool: pool}
}

// Create inserts a new secret. The ULID id is assigned here when absent.
func (r *secretRepo) Create(ctx context.Context, secret *models.Secret) error {
	query := `
		INSERT INTO secrets (id, user_id, body)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if secret.ID == "" {
		secret.ID = ulid.New()
	}

	return r.pool.QueryRow(ctx, query, secret.ID, secret.UserID, secret.Body).Scan(&secret.CreatedAt)
}

// ListByUser retrieves a user's secrets in submission order.
func (r *secretRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Secret, error) {
	query := `
		SELECT id, user_id, body, created_at
		FROM secrets WHERE user_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSecrets(rows)
}

// ListAll retrieves the most recent secrets across all users.
func (r *secretRepo) ListAll(ctx context.Context, limit int) ([]*models.Secret, error) {
	query := `
		SELECT id, user_id, body, created_at
		FROM secrets
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSecrets(rows)
}

func scanSecrets(rows pgx.Rows) ([]*models.Secret, error) {
	var secrets []*models.Secret
	for rows.Next() {
		var s models.Secret
		if err := rows.Scan(&s.ID, &s.UserID, &s.Body, &s.CreatedAt); err != nil {
			return nil, err
		}
		secrets = append(secrets, &s)
	}
	return secrets, rows.Err()
}
