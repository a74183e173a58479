package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/ratelimit"
)

// SessionCookieName is the name of the session cookie
const SessionCookieName = "media_catalog_session"

type contextKey string

const userContextKey contextKey = "user"

// LoginRequest carries account credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the response from authentication endpoints
type AuthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"` // Seconds until session expires
}

// userFrom returns the authenticated principal stored by AuthMiddleware.
func userFrom(r *http.Request) *database.User {
	user, _ := r.Context().Value(userContextKey).(*database.User)
	return user
}

// Login authenticates a username/password pair and opens a session.
// Attempts are rate limited per client address.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientIP := middleware.ClientIP(r)
	if !h.guard.CheckRateLimit(ratelimit.ActionLogin, clientIP) {
		writeJSONError(w, "Too many login attempts, try again later", http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.ValidateCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidCredentials) {
			logging.Error("credential check failed: %v", err)
		}
		logging.Warn("Failed login attempt for %q from %s", req.Username, clientIP)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		writeJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	token, err := h.db.CreateSession(ctx, user.ID)
	if err != nil {
		logging.Error("Failed to create session: %v", err)
		writeJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(database.SessionDuration),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	logging.Info("User %s logged in", user.Username)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresIn: int(database.SessionDuration.Seconds()),
	})
}

// Logout ends the current session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort session cleanup - don't fail logout if this errors
		if err := h.db.DeleteSession(ctx, cookie.Value); err != nil {
			logging.Error("failed to delete session during logout: %v", err)
		}
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// CheckAuth verifies the current session
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.db.ValidateSession(ctx, cookie.Value)
	if err != nil {
		clearSessionCookie(w)
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresIn: int(database.SessionDuration.Seconds()),
	})
}

// openPaths may be reached without a session.
var openPaths = map[string]bool{
	"/api/auth/login": true,
	"/health":         true,
	"/healthz":        true,
	"/livez":          true,
	"/readyz":         true,
	"/metrics":        true,
	"/version":        true,
}

// AuthMiddleware resolves the session into a principal and applies the
// per-user API rate limit.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := h.db.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			if !h.guard.CheckRateLimit(ratelimit.ActionAPI, user.ID) {
				writeJSONError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole wraps a handler with a role check. Admins pass every check.
func (h *Handlers) requireRole(role string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r)
		if user == nil {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if user.Role != role && user.Role != database.RoleAdmin {
			writeJSONError(w, "Forbidden", http.StatusForbidden)
			return
		}
		handler(w, r)
	}
}

// RequireAdmin restricts a handler to admin accounts.
func (h *Handlers) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return h.requireRole(database.RoleAdmin, handler)
}

// RequireReviewer restricts a handler to reviewers. Admins pass too.
func (h *Handlers) RequireReviewer(handler http.HandlerFunc) http.HandlerFunc {
	return h.requireRole(database.RoleReviewer, handler)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
