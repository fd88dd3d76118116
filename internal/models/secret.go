package models

import (
	"time"

	"github.com/google/uuid"
)

// Secret is a single free-text submission by an authenticated user. The ID
// is a ULID, so lexicographic order is creation order.
type Secret struct {
	ID        string    `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
