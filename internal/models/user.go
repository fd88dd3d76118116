package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. A user authenticates either with an
// email/password pair (PasswordHash set) or through an OAuth provider
// (OAuthProvider/OAuthProviderID set). Both may be present after account
// linking, but never neither.
type User struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	PasswordHash    *string    `json:"-" db:"password_hash"`
	Name            *string    `json:"name,omitempty" db:"name"`
	AvatarURL       *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	OAuthProvider   *string    `json:"oauth_provider,omitempty" db:"oauth_provider"`
	OAuthProviderID *string    `json:"-" db:"oauth_provider_id"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session represents a server-side authenticated session. The opaque ID is
// the only thing the client holds; the record itself lives in Redis with a
// TTL matching ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
