package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/whisprlabs/whispr/internal/database"
	"github.com/whisprlabs/whispr/internal/models"
)

const sessionKeyPrefix = "whispr:session:"

// SessionRepository defines the interface for server-side session storage.
// Expiry is enforced by Redis TTL; no cleanup job is needed.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type sessionRepo struct {
	redis *database.Redis
}

// NewSessionRepository creates a new Redis-backed session repository.
func NewSessionRepository(redis *database.Redis) SessionRepository {
	return &sessionRepo{redis: redis}
}

// Create stores the session with a TTL matching its expiry.
func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	return r.redis.Set(ctx, sessionKeyPrefix+session.ID, data, ttl)
}

// Get retrieves a session by token. Returns (nil, nil) when the session does
// not exist or has expired; Get never mutates the record.
func (r *sessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.redis.Get(ctx, sessionKeyPrefix+id)
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	if session.Expired() {
		return nil, nil
	}
	return &session, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.redis.Delete(ctx, sessionKeyPrefix+id)
}
