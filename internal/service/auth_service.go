// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/whisprlabs/whispr/internal/config"
	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/repository"
)

// bcryptCost mirrors the 10-round work factor the service has always used.
// Changing it only affects new hashes; existing material is never migrated.
const bcryptCost = 10

// RegisterRequest carries the registration form fields.
type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
	Name     string `validate:"max=100"`
}

// AuthService defines the email/password authentication interface.
type AuthService interface {
	// Register creates a new user with a hashed password.
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)

	// Login verifies credentials and returns the user and a new session ID.
	Login(ctx context.Context, email, password string) (*models.User, string, error)

	// ResolveSession returns the user owning a live session. Read-only.
	ResolveSession(ctx context.Context, sessionID string) (*models.User, error)

	// Logout destroys the server-side session. Idempotent.
	Logout(ctx context.Context, sessionID string) error
}

type authService struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	sessionExpiry time.Duration
	validate      *validator.Validate
}

// NewAuthService creates a new auth service.
func NewAuthService(
	cfg *config.AuthConfig,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		sessionExpiry: cfg.SessionExpiry,
		validate:      validator.New(),
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("registration", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashStr := string(hash)
	user := &models.User{
		Email:        req.Email,
		PasswordHash: &hashStr,
	}
	if req.Name != "" {
		user.Name = &req.Name
	}

	// The unique index on email makes the duplicate check and insert one
	// atomic operation; Create surfaces ErrEmailTaken on conflict.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.HasPassword() {
		// Burn a comparison anyway so an unknown email costs the same as a
		// wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, "", errors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, "", errors.ErrInvalidCredentials
	}

	sessionID, err := newSession(ctx, s.sessionRepo, user.ID, s.sessionExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	_ = s.userRepo.UpdateLastLogin(ctx, user.ID)

	return user, sessionID, nil
}

func (s *authService) ResolveSession(ctx context.Context, sessionID string) (*models.User, error) {
	if sessionID == "" {
		return nil, errors.ErrSessionInvalid
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, errors.ErrSessionInvalid
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		// Session outlived its user; treat as invalid.
		return nil, errors.ErrSessionInvalid
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// Compile-time check to ensure authService implements AuthService.
var _ AuthService = (*authService)(nil)
