package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	users      *services.UserService
	sessions   *services.SessionService
	production bool
}

func NewAuthHandler(users *services.UserService, sessions *services.SessionService, production bool) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, production: production}
}

// AuthRouter registers the session-holder routes under /auth.
func AuthRouter(r chi.Router, handler *AuthHandler, auth *Auth) {
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(auth.Require).Get("/me", handler.Me)
	r.With(auth.Require).Get("/sessions", handler.Sessions)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// Register creates a password account, issues a session and sets the
// session cookie.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			writeFieldError(w, http.StatusBadRequest, validation.Field, validation.Message)
			return
		}
		if conflict, ok := store.AsConflict(err); ok {
			writeFieldError(w, http.StatusConflict, conflict.Field, conflict.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.respondWithSession(w, r, user, http.StatusOK)
}

// Login verifies credentials and issues a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	h.respondWithSession(w, r, user, http.StatusOK)
}

// Logout clears the session cookie. Session records are an audit trail and
// stay behind; the token itself simply ages out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, h.production)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Sessions lists the caller's recent session audit records.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.sessions.ListByUser(r.Context(), principal.UserID, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, user types.User, status int) {
	userAgent, ip := requestMeta(r)
	issued, err := h.sessions.Issue(r.Context(), user, services.RequestMeta{
		UserAgent: userAgent,
		IPAddress: ip,
	})
	if err != nil {
		log.Printf("auth: session issue failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setSessionCookie(w, issued.Token, issued.ExpiresAt, h.production)
	writeJSON(w, status, AuthResponse{User: user, Token: issued.Token})
}
