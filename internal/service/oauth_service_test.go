package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whisprlabs/whispr/internal/config"
	"github.com/whisprlabs/whispr/internal/models"
	"github.com/whisprlabs/whispr/internal/repository"
)

func testOAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		OAuthGitHubID:     "github-id",
		OAuthGitHubSecret: "github-secret",
		OAuthGoogleID:     "google-id",
		OAuthGoogleSecret: "google-secret",
		OAuthCallbackURL:  "http://localhost:8080",
		SessionExpiry:     7 * 24 * time.Hour,
	}
}

func TestNewOAuthService(t *testing.T) {
	svc := NewOAuthService(testOAuthConfig(), newMockUserRepo(), newMockSessionRepo())

	providers := svc.GetSupportedProviders()
	if len(providers) != 2 {
		t.Errorf("expected 2 providers, got %d: %v", len(providers), providers)
	}
}

func TestNewOAuthService_PartialConfig(t *testing.T) {
	cfg := &config.AuthConfig{
		OAuthGitHubID:     "github-id",
		OAuthGitHubSecret: "github-secret",
		OAuthCallbackURL:  "http://localhost:8080",
	}
	svc := NewOAuthService(cfg, newMockUserRepo(), newMockSessionRepo())

	providers := svc.GetSupportedProviders()
	if len(providers) != 1 || providers[0] != "github" {
		t.Errorf("expected only github, got %v", providers)
	}
}

func TestGetAuthURL(t *testing.T) {
	svc := NewOAuthService(testOAuthConfig(), newMockUserRepo(), newMockSessionRepo())

	tests := []struct {
		name      string
		provider  string
		wantError bool
	}{
		{"GitHub valid", "github", false},
		{"Google valid", "google", false},
		{"Unknown provider", "facebook", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := svc.GetAuthURL(tt.provider, "test-state")

			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !strings.Contains(url, "state=test-state") {
				t.Errorf("auth URL missing state parameter: %s", url)
			}
		})
	}
}

func TestGetAuthURLCallbackPath(t *testing.T) {
	svc := NewOAuthService(testOAuthConfig(), newMockUserRepo(), newMockSessionRepo()).(*oauthService)

	for provider, cfg := range svc.configs {
		want := "http://localhost:8080/auth/" + provider + "/secrets"
		if cfg.RedirectURL != want {
			t.Errorf("%s redirect URL = %s, want %s", provider, cfg.RedirectURL, want)
		}
	}
}

func TestFetchGitHubUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": 12345,
				"login": "testuser",
				"email": "",
				"name": "Test User",
				"avatar_url": "https://avatars.githubusercontent.com/u/12345"
			}`))
		case "/user/emails":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"email": "other@example.com", "primary": false, "verified": true},
				{"email": "test@example.com", "primary": true, "verified": true}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := &oauthService{githubAPIBase: server.URL}

	info, err := svc.fetchGitHubUser(server.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.ID != "12345" {
		t.Errorf("expected subject id 12345, got %s", info.ID)
	}
	// Primary verified email wins even when the profile email is hidden
	if info.Email != "test@example.com" {
		t.Errorf("expected primary verified email, got %s", info.Email)
	}
	if info.Name != "Test User" {
		t.Errorf("unexpected name %s", info.Name)
	}
}

func TestFetchGoogleUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/v2/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "google-12345",
			"email": "test@gmail.com",
			"name": "Test User",
			"picture": "https://lh3.googleusercontent.com/photo.jpg"
		}`))
	}))
	defer server.Close()

	svc := &oauthService{googleAPIBase: server.URL}

	info, err := svc.fetchGoogleUser(server.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != "google-12345" {
		t.Errorf("expected subject id google-12345, got %s", info.ID)
	}
	if info.Email != "test@gmail.com" {
		t.Errorf("unexpected email %s", info.Email)
	}
}

func TestFindOrCreateUser_NewUser(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)
	ctx := context.Background()

	info := &OAuthUserInfo{
		ID:    "g-42",
		Email: "a@example.com",
		Name:  "Alice",
	}

	user, err := svc.findOrCreateUser(ctx, "google", info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.OAuthProvider == nil || *user.OAuthProvider != "google" {
		t.Error("expected google provider identity")
	}
	if user.OAuthProviderID == nil || *user.OAuthProviderID != "g-42" {
		t.Error("expected provider subject g-42")
	}
}

func TestFindOrCreateUser_Idempotent(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)
	ctx := context.Background()

	info := &OAuthUserInfo{ID: "g-42", Email: "a@example.com", Name: "Alice"}

	first, err := svc.findOrCreateUser(ctx, "google", info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.findOrCreateUser(ctx, "google", info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second callback created a new user: %s != %s", first.ID, second.ID)
	}
}

func TestFindOrCreateUser_Concurrent(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)
	ctx := context.Background()

	info := &OAuthUserInfo{ID: "g-42", Email: "a@example.com", Name: "Alice"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.findOrCreateUser(ctx, "google", info); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	users := 0
	for range userRepo.users {
		users++
	}
	if users != 1 {
		t.Errorf("concurrent callbacks must resolve to one user, got %d", users)
	}
}

func TestFindOrCreateUser_LinkByEmail(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)
	ctx := context.Background()

	// Existing password-based account
	hash := "$2a$10$localaccounthash"
	local := &models.User{Email: "a@example.com", PasswordHash: &hash}
	if err := userRepo.Create(ctx, local); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info := &OAuthUserInfo{ID: "gh-7", Email: "a@example.com", Name: "Alice"}

	user, err := svc.findOrCreateUser(ctx, "github", info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != local.ID {
		t.Errorf("expected linking to the existing account, got new user %s", user.ID)
	}
	if user.OAuthProvider == nil || *user.OAuthProvider != "github" {
		t.Error("expected github identity attached to the local account")
	}
	if !user.HasPassword() {
		t.Error("linking must not drop the password credential")
	}
}

func TestFindOrCreateUser_SecondProvider(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)
	ctx := context.Background()

	first, err := svc.findOrCreateUser(ctx, "github", &OAuthUserInfo{ID: "gh-7", Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same verified email from a different provider signs into the same
	// account without touching the stored identity.
	user, err := svc.findOrCreateUser(ctx, "google", &OAuthUserInfo{ID: "g-42", Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != first.ID {
		t.Errorf("expected the existing account, got new user %s", user.ID)
	}
	if user.OAuthProvider == nil || *user.OAuthProvider != "github" {
		t.Error("second provider must not overwrite the stored identity")
	}
	if user.OAuthProviderID == nil || *user.OAuthProviderID != "gh-7" {
		t.Error("second provider must not overwrite the stored subject")
	}
}

// racingUserRepo simulates losing the email race: the first GetByEmail
// misses, so the caller proceeds to insert and hits the unique index.
type racingUserRepo struct {
	*mockUserRepo
	missed bool
}

func (r *racingUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if !r.missed {
		r.missed = true
		return nil, nil
	}
	return r.mockUserRepo.GetByEmail(ctx, email)
}

func TestFindOrCreateUser_EmailRace(t *testing.T) {
	base := newMockUserRepo()
	ctx := context.Background()

	name := "Alice"
	winner, err := base.UpsertOAuth(ctx, repository.OAuthIdentity{
		Provider:   "github",
		ProviderID: "gh-7",
		Email:      "a@example.com",
		Name:       &name,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userRepo := &racingUserRepo{mockUserRepo: base}
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)

	user, err := svc.findOrCreateUser(ctx, "google", &OAuthUserInfo{ID: "g-42", Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("expected the race to resolve to the winner, got %v", err)
	}
	if user.ID != winner.ID {
		t.Errorf("expected the account that won the insert, got %s", user.ID)
	}
}

// linkRacingUserRepo reports an unlinked result once, as when another
// request claims the account between the lookup and the link.
type linkRacingUserRepo struct {
	*mockUserRepo
	lost bool
}

func (r *linkRacingUserRepo) LinkOAuth(ctx context.Context, userID uuid.UUID, provider, providerID string) (bool, error) {
	if !r.lost {
		r.lost = true
		return false, nil
	}
	return r.mockUserRepo.LinkOAuth(ctx, userID, provider, providerID)
}

func TestFindOrCreateUser_LinkRace(t *testing.T) {
	base := newMockUserRepo()
	ctx := context.Background()

	hash := "$2a$10$localaccounthash"
	local := &models.User{Email: "a@example.com", PasswordHash: &hash}
	if err := base.Create(ctx, local); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userRepo := &linkRacingUserRepo{mockUserRepo: base}
	svc := NewOAuthService(testOAuthConfig(), userRepo, newMockSessionRepo()).(*oauthService)

	// The link reports no rows; the caller must not claim success and must
	// still resolve the login.
	user, err := svc.findOrCreateUser(ctx, "github", &OAuthUserInfo{ID: "gh-7", Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != local.ID {
		t.Errorf("expected the existing account, got %s", user.ID)
	}
}

func TestFindOrCreateUser_NoSubject(t *testing.T) {
	svc := NewOAuthService(testOAuthConfig(), newMockUserRepo(), newMockSessionRepo()).(*oauthService)

	if _, err := svc.findOrCreateUser(context.Background(), "google", &OAuthUserInfo{Email: "a@example.com"}); err == nil {
		t.Error("expected error for missing subject identifier")
	}
}
