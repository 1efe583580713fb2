package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
)

// resendMessage is returned for every resend request, whether or not the
// address maps to an account, so responses cannot be used for enumeration.
const resendMessage = "If an account exists for that address, a verification email has been sent."

// VerifyHandler runs the email verification endpoints.
type VerifyHandler struct {
	verifications *services.VerificationService
	siteURL       string
}

func NewVerifyHandler(verifications *services.VerificationService, siteURL string) *VerifyHandler {
	return &VerifyHandler{verifications: verifications, siteURL: siteURL}
}

// VerifyRouter registers the verification routes under /auth.
func VerifyRouter(r chi.Router, handler *VerifyHandler) {
	r.Get("/verify", handler.Consume)
	r.Post("/verify", handler.Resend)
}

// Consume redeems a verification token and redirects to the site's verify
// page with a success or error marker.
func (h *VerifyHandler) Consume(w http.ResponseWriter, r *http.Request) {
	_, err := h.verifications.Consume(r.Context(), r.URL.Query().Get("token"))
	switch {
	case err == nil:
		http.Redirect(w, r, h.siteURL+"/verify?success=true", http.StatusFound)
	case errors.Is(err, services.ErrMalformedToken), errors.Is(err, store.ErrNotFound):
		http.Redirect(w, r, h.siteURL+"/verify?error=invalid_token", http.StatusFound)
	default:
		log.Printf("verify: consume failed: %v", err)
		http.Redirect(w, r, h.siteURL+"/verify?error=verify_failed", http.StatusFound)
	}
}

type ResendRequest struct {
	Email string `json:"email"`
}

// Resend issues a fresh token when appropriate and answers with the same
// generic message in every case.
func (h *VerifyHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.verifications.Resend(r.Context(), req.Email); err != nil {
		// Still the generic answer; the failure is for the logs only.
		log.Printf("verify: resend failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": resendMessage})
}
