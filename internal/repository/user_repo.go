// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whisprlabs/whispr/internal/models"
	apierrors "github.com/whisprlabs/whispr/internal/pkg/errors"
)

// OAuthIdentity carries the profile fields used when resolving a federated
// login to a local user.
type OAuthIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       *string
	AvatarURL  *string
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuth(ctx context.Context, provider, providerID string) (*models.User, error)
	// UpsertOAuth atomically finds or creates the user owning the given
	// (provider, providerID) identity. Concurrent calls for the same identity
	// resolve to the same row. Returns ErrEmailTaken when the identity is new
	// but the email already belongs to another account.
	UpsertOAuth(ctx context.Context, identity OAuthIdentity) (*models.User, error)
	// LinkOAuth attaches an OAuth identity to an existing local account.
	// Reports false when the account already carries an identity.
	LinkOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, password_hash, name, avatar_url, oauth_provider, oauth_provider_id, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.AvatarURL,
		&user.OAuthProvider,
		&user.OAuthProviderID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user into the database. Returns ErrEmailTaken when the
// email already has an account; the existing record is left untouched.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, avatar_url, oauth_provider, oauth_provider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.AvatarURL,
		user.OAuthProvider,
		user.OAuthProviderID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return apierrors.ErrEmailTaken
	}
	return err
}

// GetByID retrieves a user by its UUID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByOAuth retrieves a user by OAuth provider and subject identifier.
func (r *userRepo) GetByOAuth(ctx context.Context, provider, providerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE oauth_provider = $1 AND oauth_provider_id = $2`
	return scanUser(r.pool.QueryRow(ctx, query, provider, providerID))
}

// UpsertOAuth resolves an OAuth identity to a user in a single statement. The
// partial unique index on (oauth_provider, oauth_provider_id) makes this the
// race-free find-or-create required by concurrent callback requests. The ON
// CONFLICT target is the identity pair only, so a violation escaping here is
// the email index; it surfaces as ErrEmailTaken for the caller to resolve.
func (r *userRepo) UpsertOAuth(ctx context.Context, identity OAuthIdentity) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, name, avatar_url, oauth_provider, oauth_provider_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (oauth_provider, oauth_provider_id) WHERE oauth_provider IS NOT NULL
		DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = now()
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query,
		uuid.New(),
		identity.Email,
		identity.Name,
		identity.AvatarURL,
		identity.Provider,
		identity.ProviderID,
	))
	if isUniqueViolation(err) {
		return nil, apierrors.ErrEmailTaken
	}
	return user, err
}

// LinkOAuth attaches an OAuth identity to an existing account. The identity
// column update is guarded so a concurrent upsert for the same identity
// cannot produce a second owner; the caller must re-resolve when no row
// matched.
func (r *userRepo) LinkOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) (bool, error) {
	query := `
		UPDATE users SET oauth_provider = $2, oauth_provider_id = $3, updated_at = now()
		WHERE id = $1 AND oauth_provider IS NULL`

	tag, err := r.pool.Exec(ctx, query, userID, provider, providerID)
	if isUniqueViolation(err) {
		return false, apierrors.ErrEmailTaken.WithMessage("This provider identity is already linked to another account")
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Update persists mutable profile fields.
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET name = $2, avatar_url = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	return r.pool.QueryRow(ctx, query, user.ID, user.Name, user.AvatarURL).Scan(&user.UpdatedAt)
}

// UpdateLastLogin records a successful login.
func (r *userRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_login_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
