package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whisprlabs/whispr/internal/models"
	apierrors "github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/pkg/ulid"
)

type mockSecretRepo struct {
	mu      sync.Mutex
	secrets []*models.Secret
}

func (m *mockSecretRepo) Create(ctx context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if secret.ID == "" {
		secret.ID = ulid.New()
	}
	secret.CreatedAt = time.Now()
	m.secrets = append(m.secrets, secret)
	return nil
}

func (m *mockSecretRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Secret
	for _, s := range m.secrets {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSecretRepo) ListAll(ctx context.Context, limit int) ([]*models.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Secret, 0, len(m.secrets))
	// newest first
	for i := len(m.secrets) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.secrets[i])
	}
	return out, nil
}

func TestSubmitSecret(t *testing.T) {
	repo := &mockSecretRepo{}
	svc := NewSecretService(repo)
	ctx := context.Background()
	userID := uuid.New()

	secret, err := svc.Submit(ctx, userID, "  i sing in the shower  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret.Body != "i sing in the shower" {
		t.Errorf("expected trimmed body, got %q", secret.Body)
	}
	if secret.ID == "" {
		t.Error("expected a ULID id")
	}
	if secret.UserID != userID {
		t.Error("secret not attributed to submitting user")
	}
}

func TestSubmitSecretValidation(t *testing.T) {
	svc := NewSecretService(&mockSecretRepo{})
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", apierrors.ErrSecretEmpty},
		{"whitespace only", "   \n\t ", apierrors.ErrSecretEmpty},
		{"too long", strings.Repeat("x", MaxSecretLength+1), apierrors.ErrSecretTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(ctx, uuid.New(), tt.body); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWallShowsAllUsers(t *testing.T) {
	repo := &mockSecretRepo{}
	svc := NewSecretService(repo)
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	if _, err := svc.Submit(ctx, alice, "alice's secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Submit(ctx, bob, "bob's secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wall, err := svc.Wall(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wall) != 2 {
		t.Fatalf("expected 2 wall entries, got %d", len(wall))
	}
	// newest first
	if wall[0].Body != "bob's secret" {
		t.Errorf("expected newest entry first, got %q", wall[0].Body)
	}
}

func TestListByUserOrder(t *testing.T) {
	repo := &mockSecretRepo{}
	svc := NewSecretService(repo)
	ctx := context.Background()
	userID := uuid.New()

	for _, body := range []string{"first", "second", "third"} {
		if _, err := svc.Submit(ctx, userID, body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 secrets, got %d", len(list))
	}
	for i, want := range []string{"first", "second", "third"} {
		if list[i].Body != want {
			t.Errorf("position %d: got %q want %q", i, list[i].Body, want)
		}
	}
}
