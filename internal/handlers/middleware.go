package handlers

import (
	"errors"
	"net/http"

	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/internal/token"
	"github.com/emberhold/apiserver/types"
)

// Auth verifies session tokens and attaches the principal to the request
// context. Feature routes consume only these middlewares; none of them
// parse tokens themselves.
type Auth struct {
	signer     *token.Signer
	users      *services.UserService
	production bool
}

func NewAuth(signer *token.Signer, users *services.UserService, production bool) *Auth {
	return &Auth{signer: signer, users: users, production: production}
}

// Require enforces authentication authoritatively: the signed claims are
// verified, then the current user row is re-fetched so role changes or
// account removal since issuance take effect. Required before any
// privileged mutation.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := a.signer.Parse(raw)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		user, err := a.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "account no longer exists")
				return
			}
			// Outside production a storage outage degrades to trusting
			// the signed claims, which keeps demo deployments usable.
			if a.production {
				writeError(w, http.StatusInternalServerError, "failed to load account")
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principalFromClaims(claims))))
			return
		}

		principal := types.Principal{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
			Faction:  user.Faction,
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// Optional attaches a principal from the signed claims when a valid token is
// present and lets the request through either way. Low-stakes reads only.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractToken(r)
		if err == nil {
			if claims, err := a.signer.Parse(raw); err == nil {
				r = r.WithContext(withPrincipal(r.Context(), principalFromClaims(claims)))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole layers a role check on top of Require. Both directions fail
// closed: an unknown actual role never passes, an unknown required role is
// never satisfiable.
func (a *Auth) RequireRole(required types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := principalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !types.HasRole(principal.Role, required) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireModerator gates moderator-and-above routes.
func (a *Auth) RequireModerator(next http.Handler) http.Handler {
	return a.RequireRole(types.RoleModerator)(next)
}

// RequireAdmin gates admin-and-above routes.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireRole(types.RoleAdmin)(next)
}

func principalFromClaims(claims token.Claims) types.Principal {
	return types.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}
}
