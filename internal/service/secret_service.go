package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/repository"
)

// MaxSecretLength caps a single submission.
const MaxSecretLength = 500

// wallLimit bounds how many entries the shared wall shows.
const wallLimit = 200

// SecretService defines the secret submission interface.
type SecretService interface {
	// Submit appends one secret to the user's sequence.
	Submit(ctx context.Context, userID uuid.UUID, body string) (*models.Secret, error)

	// Wall returns the most recent secrets across all users, newest first.
	Wall(ctx context.Context) ([]*models.Secret, error)

	// ListByUser returns the user's own secrets in submission order.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Secret, error)
}

type secretService struct {
	secretRepo repository.SecretRepository
}

// NewSecretService creates a new secret service.
func NewSecretService(secretRepo repository.SecretRepository) SecretService {
	return &secretService{secretRepo: secretRepo}
}

func (s *secretService) Submit(ctx context.Context, userID uuid.UUID, body string) (*models.Secret, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.ErrSecretEmpty
	}
	if len(body) > MaxSecretLength {
		return nil, errors.ErrSecretTooLong
	}

	secret := &models.Secret{
		UserID: userID,
		Body:   body,
	}
	if err := s.secretRepo.Create(ctx, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (s *secretService) Wall(ctx context.Context) ([]*models.Secret, error) {
	return s.secretRepo.ListAll(ctx, wallLimit)
}

func (s *secretService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Secret, error) {
	return s.secretRepo.ListByUser(ctx, userID)
}

// Compile-time check to ensure secretService implements SecretService.
var _ SecretService = (*secretService)(nil)
