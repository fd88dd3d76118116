package models

import (
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents the type of audit event.
type AuditEvent string

const (
	// Auth events
	AuditEventUserRegistered AuditEvent = "user.registered"
	AuditEventAuthLogin      AuditEvent = "auth.login"
	AuditEventAuthLogout     AuditEvent = "auth.logout"

	// Secret events
	AuditEventSecretSubmitted AuditEvent = "secret.submitted"
)

// AuditLog represents an audit log entry.
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Event     AuditEvent      `json:"event" db:"event"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	IPAddress *net.IP         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string         `json:"user_agent,omitempty" db:"user_agent"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AuditLogQuery represents query parameters for fetching audit logs.
type AuditLogQuery struct {
	Event     *AuditEvent
	UserID    *uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}
