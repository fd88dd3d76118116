package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/whisprlabs/whispr/internal/config"
	"github.com/whisprlabs/whispr/internal/models"
	apierrors "github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/repository"
)

// OAuthUserInfo contains user information fetched from OAuth providers.
type OAuthUserInfo struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// OAuthService defines the federated authentication interface.
type OAuthService interface {
	// GetAuthURL returns the OAuth authorization URL for the given provider.
	GetAuthURL(provider, state string) (string, error)

	// HandleCallback processes the OAuth callback and returns the user and session ID.
	HandleCallback(ctx context.Context, provider, code string) (*models.User, string, error)

	// GetSupportedProviders returns a list of configured OAuth providers.
	GetSupportedProviders() []string
}

type oauthService struct {
	configs       map[string]*oauth2.Config
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	sessionExpiry time.Duration

	// Provider API base URLs, overridable in tests.
	githubAPIBase string
	googleAPIBase string
}

// NewOAuthService creates a new OAuth service with the given configuration.
func NewOAuthService(
	cfg *config.AuthConfig,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) OAuthService {
	callbackBaseURL := cfg.OAuthCallbackURL
	configs := make(map[string]*oauth2.Config)

	// Configure GitHub OAuth if credentials are provided
	if cfg.OAuthGitHubID != "" && cfg.OAuthGitHubSecret != "" {
		configs["github"] = &oauth2.Config{
			ClientID:     cfg.OAuthGitHubID,
			ClientSecret: cfg.OAuthGitHubSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  callbackBaseURL + "/auth/github/secrets",
			Scopes:       []string{"user:email"},
		}
	}

	// Configure Google OAuth if credentials are provided
	if cfg.OAuthGoogleID != "" && cfg.OAuthGoogleSecret != "" {
		configs["google"] = &oauth2.Config{
			ClientID:     cfg.OAuthGoogleID,
			ClientSecret: cfg.OAuthGoogleSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  callbackBaseURL + "/auth/google/secrets",
			Scopes:       []string{"email", "profile"},
		}
	}

	return &oauthService{
		configs:       configs,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		sessionExpiry: cfg.SessionExpiry,
		githubAPIBase: "https://api.github.com",
		googleAPIBase: "https://www.googleapis.com",
	}
}

func (s *oauthService) GetAuthURL(provider, state string) (string, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return "", fmt.Errorf("unknown or unconfigured provider: %s", provider)
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (s *oauthService) HandleCallback(ctx context.Context, provider, code string) (*models.User, string, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return nil, "", fmt.Errorf("unknown or unconfigured provider: %s", provider)
	}

	// Bound the provider round-trips so a stalled exchange cannot hold the
	// request open indefinitely.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// Exchange authorization code for access token
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("token exchange failed: %w", err)
	}

	// Fetch user info from the provider
	userInfo, err := s.fetchUserInfo(ctx, provider, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch user info: %w", err)
	}

	// Find or create user
	user, err := s.findOrCreateUser(ctx, provider, userInfo)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find or create user: %w", err)
	}

	// Create session only after the user is fully resolved; a failure above
	// leaves no partial state behind.
	sessionID, err := newSession(ctx, s.sessionRepo, user.ID, s.sessionExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	_ = s.userRepo.UpdateLastLogin(ctx, user.ID)

	return user, sessionID, nil
}

func (s *oauthService) GetSupportedProviders() []string {
	providers := make([]string, 0, len(s.configs))
	for provider := range s.configs {
		providers = append(providers, provider)
	}
	return providers
}

func (s *oauthService) fetchUserInfo(ctx context.Context, provider string, token *oauth2.Token) (*OAuthUserInfo, error) {
	// Create HTTP client with the OAuth token
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	switch provider {
	case "github":
		return s.fetchGitHubUser(client)
	case "google":
		return s.fetchGoogleUser(client)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func (s *oauthService) fetchGitHubUser(client *http.Client) (*OAuthUserInfo, error) {
	resp, err := client.Get(s.githubAPIBase + "/user")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var data struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub user response: %w", err)
	}

	// Fetch email if not public
	email := data.Email
	if email == "" {
		emails, err := s.fetchGitHubEmails(client)
		if err == nil && len(emails) > 0 {
			email = emails[0]
		}
	}

	name := data.Name
	if name == "" {
		name = data.Login
	}

	return &OAuthUserInfo{
		ID:        fmt.Sprintf("%d", data.ID),
		Email:     email,
		Name:      name,
		AvatarURL: data.AvatarURL,
	}, nil
}

func (s *oauthService) fetchGitHubEmails(client *http.Client) ([]string, error) {
	resp, err := client.Get(s.githubAPIBase + "/user/emails")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub emails API returned status %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, err
	}

	// Prioritize primary verified emails
	var result []string
	for _, e := range emails {
		if e.Verified && e.Primary {
			result = append([]string{e.Email}, result...)
		} else if e.Verified {
			result = append(result, e.Email)
		}
	}
	return result, nil
}

func (s *oauthService) fetchGoogleUser(client *http.Client) (*OAuthUserInfo, error) {
	resp, err := client.Get(s.googleAPIBase + "/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API returned status %d", resp.StatusCode)
	}

	var data struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode Google user response: %w", err)
	}

	return &OAuthUserInfo{
		ID:        data.ID,
		Email:     data.Email,
		Name:      data.Name,
		AvatarURL: data.Picture,
	}, nil
}

func (s *oauthService) findOrCreateUser(ctx context.Context, provider string, info *OAuthUserInfo) (*models.User, error) {
	if info.ID == "" {
		return nil, fmt.Errorf("provider returned no subject identifier")
	}

	// Account linking: an existing local account with the provider's verified
	// email adopts this identity instead of spawning a second user.
	if info.Email != "" {
		existing, err := s.userRepo.GetByEmail(ctx, info.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			switch {
			case existing.OAuthProvider == nil:
				linked, err := s.userRepo.LinkOAuth(ctx, existing.ID, provider, info.ID)
				if err != nil {
					return nil, err
				}
				if linked {
					existing.OAuthProvider = &provider
					existing.OAuthProviderID = &info.ID
					return existing, nil
				}
				// Lost a race with another link or upsert; resolve below.
			case *existing.OAuthProvider != provider || *existing.OAuthProviderID != info.ID:
				// The account is already federated through another identity.
				// The provider vouched for this email, so it signs into the
				// same account; overwriting the stored identity would orphan
				// the first provider.
				return existing, nil
			}
		}
	}

	// Single-statement find-or-create keyed on (provider, subject id).
	// Concurrent callbacks for the same identity resolve to one row.
	identity := repository.OAuthIdentity{
		Provider:   provider,
		ProviderID: info.ID,
		Email:      info.Email,
	}
	if info.Name != "" {
		identity.Name = &info.Name
	}
	if info.AvatarURL != "" {
		identity.AvatarURL = &info.AvatarURL
	}

	user, err := s.userRepo.UpsertOAuth(ctx, identity)
	if err != nil {
		// A concurrent first login with the same email can beat this insert to
		// the email index; the winner owns the account.
		if errors.Is(err, apierrors.ErrEmailTaken) && info.Email != "" {
			if existing, lookupErr := s.userRepo.GetByEmail(ctx, info.Email); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return user, nil
}

// Compile-time check to ensure oauthService implements OAuthService.
var _ OAuthService = (*oauthService)(nil)
