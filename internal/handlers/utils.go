package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/emberhold/apiserver/types"
)

// SessionCookieName is the cookie the session token travels in.
const SessionCookieName = "session"

type contextKey string

const contextPrincipalKey contextKey = "principal"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeFieldError(w http.ResponseWriter, status int, field, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Field: field})
}

// principalFromContext returns the authenticated principal placed by the
// auth middleware.
func principalFromContext(ctx context.Context) (types.Principal, bool) {
	principal, ok := ctx.Value(contextPrincipalKey).(types.Principal)
	return principal, ok
}

// PrincipalFromContext is the exported accessor feature routes use.
func PrincipalFromContext(ctx context.Context) (types.Principal, bool) {
	return principalFromContext(ctx)
}

func withPrincipal(ctx context.Context, principal types.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, principal)
}

// extractToken pulls the session token from the cookie first, then from an
// Authorization bearer header.
func extractToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, nil
		}
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing session token")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	value := strings.TrimSpace(parts[1])
	if value == "" {
		return "", errors.New("invalid authorization header")
	}
	return value, nil
}

func setSessionCookie(w http.ResponseWriter, tokenValue string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tokenValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(expiresAt) / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// requestMeta gathers the best-effort client context for the session audit
// record. RealIP middleware has already rewritten RemoteAddr.
func requestMeta(r *http.Request) (userAgent, ipAddress string) {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return r.UserAgent(), ip
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
