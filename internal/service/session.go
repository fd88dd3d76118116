package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/repository"
)

// defaultSessionExpiry applies when no expiry is configured.
const defaultSessionExpiry = 7 * 24 * time.Hour

// newSession creates and persists a server-side session for the user and
// returns its opaque token.
func newSession(ctx context.Context, repo repository.SessionRepository, userID uuid.UUID, expiry time.Duration) (string, error) {
	// Generate a cryptographically secure random session ID
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	sessionID := base64.URLEncoding.EncodeToString(b)

	if expiry == 0 {
		expiry = defaultSessionExpiry
	}

	now := time.Now()
	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}

	if err := repo.Create(ctx, session); err != nil {
		return "", err
	}

	return sessionID, nil
}
