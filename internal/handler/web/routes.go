// Package web provides the HTTP handlers for the Whispr web application.
package web

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/whisprlabs/whispr/internal/database"
	"github.com/whisprlabs/whispr/internal/middleware"
	"github.com/whisprlabs/whispr/internal/models"
	apierrors "github.com/whisprlabs/whispr/internal/pkg/errors"
	"github.com/whisprlabs/whispr/internal/service"
	"github.com/whisprlabs/whispr/templates/pages"
)

// Context keys for request context values.
type contextKey string

const (
	// ContextKeyUser is the context key for the authenticated user.
	ContextKeyUser contextKey = "user"
	// ContextKeySessionID is the context key for the session ID.
	ContextKeySessionID contextKey = "session_id"
)

// Session cookie names.
const (
	SessionCookieName = "whispr_session"
	OAuthStateCookie  = "whispr_oauth_state"
)

// WebHandler handles HTTP requests for the web application.
type WebHandler struct {
	authService   service.AuthService
	oauthService  service.OAuthService
	secretService service.SecretService
	auditService  service.AuditService
	sessionStore  sessions.Store
	rateLimiter   *database.Redis
	logger        *slog.Logger
}

// NewWebHandler creates a new WebHandler instance.
func NewWebHandler(
	authService service.AuthService,
	oauthService service.OAuthService,
	secretService service.SecretService,
	auditService service.AuditService,
	sessionStore sessions.Store,
	rateLimiter *database.Redis,
	logger *slog.Logger,
) *WebHandler {
	return &WebHandler{
		authService:   authService,
		oauthService:  oauthService,
		secretService: secretService,
		auditService:  auditService,
		sessionStore:  sessionStore,
		rateLimiter:   rateLimiter,
		logger:        logger,
	}
}

// Routes returns the chi router with all web routes configured.
func (h *WebHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public routes (no auth required)
	r.Group(func(r chi.Router) {
		r.Get("/", h.LandingPage)

		r.Group(func(r chi.Router) {
			if h.rateLimiter != nil {
				r.Use(middleware.RateLimit(h.rateLimiter, middleware.AuthRateLimitConfig()))
			}
			r.Get("/login", h.LoginPage)
			r.Post("/login", h.Login)
			r.Get("/register", h.RegisterPage)
			r.Post("/register", h.Register)
		})

		// OAuth: redirect out, then the provider calls back on
		// /auth/{provider}/secrets.
		r.Get("/auth/{provider}", h.OAuthStart)
		r.Get("/auth/{provider}/secrets", h.OAuthCallback)
	})

	// Protected routes (auth required)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/logout", h.Logout)
		r.Get("/secrets", h.Secrets)
		r.Get("/submit", h.SubmitPage)
		r.Post("/submit", h.Submit)
	})

	return r
}

// ============================================
// Middleware
// ============================================

// RequireAuth ensures the request carries a live session and loads the user
// into the request context. Anything else redirects to /login.
func (h *WebHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.sessionStore.Get(r, SessionCookieName)
		if err != nil {
			h.redirectToLogin(w, r)
			return
		}

		sessionID, ok := session.Values["session_id"].(string)
		if !ok || sessionID == "" {
			h.redirectToLogin(w, r)
			return
		}

		user, err := h.authService.ResolveSession(r.Context(), sessionID)
		if err != nil {
			// Cookie references a dead server-side session, clear it
			session.Options.MaxAge = -1
			session.Save(r, w)
			h.redirectToLogin(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser, user)
		ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *WebHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// loggedIn reports whether the request carries a cookie that resolves to a
// live session.
func (h *WebHandler) loggedIn(r *http.Request) bool {
	session, err := h.sessionStore.Get(r, SessionCookieName)
	if err != nil {
		return false
	}
	sessionID, ok := session.Values["session_id"].(string)
	if !ok || sessionID == "" {
		return false
	}
	_, err = h.authService.ResolveSession(r.Context(), sessionID)
	return err == nil
}

// ============================================
// Public Page Handlers
// ============================================

// LandingPage renders the public landing page.
func (h *WebHandler) LandingPage(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	templ.Handler(pages.Landing()).ServeHTTP(w, r)
}

// LoginPage renders the login page.
func (h *WebHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	templ.Handler(pages.LoginPage(r.URL.Query().Get("error"), h.oauthService.GetSupportedProviders())).ServeHTTP(w, r)
}

// Login handles the login form submission.
func (h *WebHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+form+data", http.StatusFound)
		return
	}

	email := r.FormValue("username")
	password := r.FormValue("password")

	if email == "" || password == "" {
		http.Redirect(w, r, "/login?error=Email+and+password+are+required", http.StatusFound)
		return
	}

	user, sessionID, err := h.authService.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, apierrors.ErrInvalidCredentials) {
			http.Redirect(w, r, "/login?error=Invalid+email+or+password", http.StatusFound)
			return
		}
		// A storage or session failure is not the user's fault; never dress it
		// up as a credential rejection.
		h.logger.Error("login failed", slog.String("error", err.Error()))
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, r, user.ID, sessionID)
	middleware.RecordLogin("password")
	h.auditLogin(r, user.ID, "password")

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// RegisterPage renders the registration page.
func (h *WebHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	templ.Handler(pages.RegisterPage(r.URL.Query().Get("error"))).ServeHTTP(w, r)
}

// Register handles the registration form submission.
func (h *WebHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register?error=Invalid+form+data", http.StatusFound)
		return
	}

	email := r.FormValue("username")
	password := r.FormValue("password")

	if email == "" || password == "" {
		http.Redirect(w, r, "/register?error=Email+and+password+are+required", http.StatusFound)
		return
	}

	user, err := h.authService.Register(r.Context(), service.RegisterRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		h.logger.Debug("registration rejected", slog.String("error", err.Error()))
		http.Redirect(w, r, "/register?error="+url.QueryEscape(registrationErrorMessage(err)), http.StatusFound)
		return
	}

	// Log the user in after registration
	_, sessionID, err := h.authService.Login(r.Context(), email, password)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	h.setSessionCookie(w, r, user.ID, sessionID)
	middleware.RecordRegistration()
	if h.auditService != nil {
		if err := service.LogRegistration(h.auditService, r.Context(), user.ID, clientIP(r), r.UserAgent()); err != nil {
			h.logger.Debug("audit write failed", slog.String("error", err.Error()))
		}
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// ============================================
// OAuth Handlers
// ============================================

// OAuthStart initiates OAuth flow for the given provider.
func (h *WebHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// Generate state for CSRF protection
	state, err := generateSecureState()
	if err != nil {
		http.Redirect(w, r, "/login?error=Failed+to+initialize+OAuth", http.StatusFound)
		return
	}

	// Store state in a short-lived cookie for verification on callback
	session, _ := h.sessionStore.Get(r, OAuthStateCookie)
	session.Values["state"] = state
	session.Options.MaxAge = 300 // 5 minutes
	if err := session.Save(r, w); err != nil {
		http.Redirect(w, r, "/login?error=Failed+to+initialize+OAuth", http.StatusFound)
		return
	}

	authURL, err := h.oauthService.GetAuthURL(provider, state)
	if err != nil {
		http.Redirect(w, r, "/login?error=OAuth+provider+not+configured", http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback handles the OAuth callback from the provider. Any failure
// redirects to /login without leaving partial user or session state behind.
func (h *WebHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	// Handle OAuth error from provider
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Redirect(w, r, "/login?error=OAuth+authentication+failed", http.StatusFound)
		return
	}

	if code == "" {
		http.Redirect(w, r, "/login?error=Missing+authorization+code", http.StatusFound)
		return
	}

	// Verify state
	session, _ := h.sessionStore.Get(r, OAuthStateCookie)
	savedState, ok := session.Values["state"].(string)
	if !ok || savedState != state {
		http.Redirect(w, r, "/login?error=Invalid+OAuth+state", http.StatusFound)
		return
	}

	// Clear OAuth state cookie
	session.Options.MaxAge = -1
	session.Save(r, w)

	user, sessionID, err := h.oauthService.HandleCallback(r.Context(), provider, code)
	if err != nil {
		h.logger.Warn("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/login?error=OAuth+authentication+failed", http.StatusFound)
		return
	}

	h.setSessionCookie(w, r, user.ID, sessionID)
	middleware.RecordLogin(provider)
	h.auditLogin(r, user.ID, provider)

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// ============================================
// Protected Page Handlers
// ============================================

// Logout destroys the server-side session, clears the cookie, and returns to
// the landing page.
func (h *WebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := r.Context().Value(ContextKeySessionID).(string); ok {
		_ = h.authService.Logout(r.Context(), sessionID)
	}
	if user, ok := GetUserFromContext(r.Context()); ok && h.auditService != nil {
		if err := service.LogLogout(h.auditService, r.Context(), user.ID, clientIP(r), r.UserAgent()); err != nil {
			h.logger.Debug("audit write failed", slog.String("error", err.Error()))
		}
	}

	session, _ := h.sessionStore.Get(r, SessionCookieName)
	session.Options.MaxAge = -1
	session.Save(r, w)

	http.Redirect(w, r, "/", http.StatusFound)
}

// Secrets renders the shared secrets wall plus the current user's own
// submissions.
func (h *WebHandler) Secrets(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		h.redirectToLogin(w, r)
		return
	}

	wall, err := h.secretService.Wall(r.Context())
	if err != nil {
		h.logger.Error("failed to load secrets wall", slog.String("error", err.Error()))
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	own, err := h.secretService.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to load user secrets", slog.String("error", err.Error()))
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	templ.Handler(pages.SecretsPage(wall, own)).ServeHTTP(w, r)
}

// SubmitPage renders the secret submission form.
func (h *WebHandler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	templ.Handler(pages.SubmitPage(r.URL.Query().Get("error"))).ServeHTTP(w, r)
}

// Submit appends one secret to the user's sequence and redirects back to the
// wall.
func (h *WebHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		h.redirectToLogin(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit?error=Invalid+form+data", http.StatusFound)
		return
	}

	secret, err := h.secretService.Submit(r.Context(), user.ID, r.FormValue("secret"))
	if err != nil {
		http.Redirect(w, r, "/submit?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return
	}
	middleware.RecordSecretSubmitted()
	if h.auditService != nil {
		if err := service.LogSecretSubmitted(h.auditService, r.Context(), user.ID, secret.ID, clientIP(r), r.UserAgent()); err != nil {
			h.logger.Debug("audit write failed", slog.String("error", err.Error()))
		}
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// ============================================
// Helper Methods
// ============================================

func (h *WebHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, userID uuid.UUID, sessionID string) {
	session, _ := h.sessionStore.Get(r, SessionCookieName)
	session.Values["user_id"] = userID.String()
	session.Values["session_id"] = sessionID
	session.Options.MaxAge = 7 * 24 * 60 * 60 // 7 days
	session.Options.HttpOnly = true
	session.Options.Secure = r.TLS != nil
	session.Options.SameSite = http.SameSiteLaxMode
	session.Save(r, w)
}

// auditLogin records a successful login; failures only surface in debug logs.
func (h *WebHandler) auditLogin(r *http.Request, userID uuid.UUID, method string) {
	if h.auditService == nil {
		return
	}
	if err := service.LogLogin(h.auditService, r.Context(), userID, method, clientIP(r), r.UserAgent()); err != nil {
		h.logger.Debug("audit write failed", slog.String("error", err.Error()))
	}
}

// clientIP returns the remote address without the port. RealIP middleware has
// already resolved proxy headers upstream.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// registrationErrorMessage maps a registration failure to user-facing text;
// anything that is not a known domain error stays generic.
func registrationErrorMessage(err error) string {
	if apierrors.IsAPIError(err) {
		return err.Error()
	}
	return "Registration failed"
}

// generateSecureState generates a cryptographically secure random state for OAuth CSRF protection.
func generateSecureState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GetUserFromContext returns the user from context.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*models.User)
	return user, ok
}
