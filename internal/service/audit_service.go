package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/repository"
)

// AuditService records and queries the audit trail of account and secret
// activity.
type AuditService interface {
	// Log records a single audit entry.
	Log(ctx context.Context, entry AuditEntry) error

	// Query returns audit entries matching the filter, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error)

	// GetByID loads a single audit entry, nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// Prune deletes entries older than the retention window and returns how
	// many rows were removed.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditEntry is the input for recording one audit event.
type AuditEntry struct {
	Event     models.AuditEvent
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditFilter narrows an audit query.
type AuditFilter struct {
	Event     *models.AuditEvent
	UserID    *uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new audit service.
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) Log(ctx context.Context, entry AuditEntry) error {
	log := &models.AuditLog{
		Event:  entry.Event,
		UserID: entry.UserID,
	}

	if entry.IPAddress != "" {
		if ip := net.ParseIP(entry.IPAddress); ip != nil {
			log.IPAddress = &ip
		}
	}
	if entry.UserAgent != "" {
		ua := entry.UserAgent
		log.UserAgent = &ua
	}
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		log.Metadata = data
	}

	return s.auditRepo.Create(ctx, log)
}

func (s *auditService) Query(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error) {
	return s.auditRepo.List(ctx, models.AuditLogQuery{
		Event:     filter.Event,
		UserID:    filter.UserID,
		StartTime: filter.StartTime,
		EndTime:   filter.EndTime,
		Limit:     filter.Limit,
	})
}

func (s *auditService) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	return s.auditRepo.GetByID(ctx, id)
}

func (s *auditService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.auditRepo.DeleteBefore(ctx, time.Now().Add(-retention))
}

// LogLogin records a login event with the credential method used.
func LogLogin(svc AuditService, ctx context.Context, userID uuid.UUID, method, ip, userAgent string) error {
	return svc.Log(ctx, AuditEntry{
		Event:     models.AuditEventAuthLogin,
		UserID:    &userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]any{"method": method},
	})
}

// LogLogout records a logout event.
func LogLogout(svc AuditService, ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	return svc.Log(ctx, AuditEntry{
		Event:     models.AuditEventAuthLogout,
		UserID:    &userID,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogRegistration records a registration event.
func LogRegistration(svc AuditService, ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	return svc.Log(ctx, AuditEntry{
		Event:     models.AuditEventUserRegistered,
		UserID:    &userID,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogSecretSubmitted records a secret submission without the secret body.
func LogSecretSubmitted(svc AuditService, ctx context.Context, userID uuid.UUID, secretID, ip, userAgent string) error {
	return svc.Log(ctx, AuditEntry{
		Event:     models.AuditEventSecretSubmitted,
		UserID:    &userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]any{"secret_id": secretID},
	})
}
