package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/auth"
)

// AuthHandlers handles authentication endpoints.
type AuthHandlers struct {
	svc *auth.Service
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(svc *auth.Service) *AuthHandlers {
	return &AuthHandlers{svc: svc}
}

// Service returns the underlying auth service.
func (h *AuthHandlers) Service() *auth.Service {
	return h.svc
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var input auth.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	user, tokens, err := h.svc.Register(r.Context(), input)
	switch {
	case errors.Is(err, auth.ErrRegistrationClosed):
		Forbidden(w, "Registration is closed")
		return
	case errors.Is(err, auth.ErrUserAlreadyExists):
		Error(w, http.StatusConflict, "EMAIL_TAKEN", "An account with this email already exists")
		return
	case errors.Is(err, auth.ErrPasswordTooShort):
		BadRequest(w, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to register user")
		InternalError(w, "Failed to register user")
		return
	}

	JSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var input auth.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	user, tokens, err := h.svc.Login(r.Context(), input)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to log in user")
		InternalError(w, "Failed to log in")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

// Refresh handles POST /api/auth/refresh. The presented refresh token is
// single-use; a new pair is issued on success.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var input auth.RefreshInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	tokens, err := h.svc.Refresh(r.Context(), input.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		Error(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired")
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to refresh session")
		InternalError(w, "Failed to refresh session")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// Logout handles POST /api/auth/logout. Logging out an unknown token is a
// no-op success.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var input auth.RefreshInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if err := h.svc.Logout(r.Context(), input.RefreshToken); err != nil {
		log.Error().Err(err).Msg("Failed to log out")
		InternalError(w, "Failed to log out")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me handles GET /api/auth/me. Requires a valid access token.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		NotFound(w, "User not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load user")
		InternalError(w, "Failed to load user")
		return
	}

	JSON(w, http.StatusOK, user)
}
