package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const verifySiteURL = "https://emberhold.gg"

type captureMailer struct {
	lastURL string
	sent    int
}

func (m *captureMailer) SendVerification(ctx context.Context, email, username, verifyURL string) error {
	m.sent++
	m.lastURL = verifyURL
	return nil
}

func newVerifyFixture(t *testing.T) (*chi.Mux, *store.MemoryUserRepository, *captureMailer, *services.VerificationService) {
	t.Helper()
	repo := store.NewMemoryUserRepository()
	mailer := &captureMailer{}
	service := services.NewVerificationService(repo, mailer, verifySiteURL)
	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		VerifyRouter(r, NewVerifyHandler(service, verifySiteURL))
	})
	return router, repo, mailer, service
}

func issuedToken(t *testing.T, mailer *captureMailer) string {
	t.Helper()
	idx := strings.Index(mailer.lastURL, "token=")
	if idx < 0 {
		t.Fatalf("mailed URL carries no token: %q", mailer.lastURL)
	}
	return mailer.lastURL[idx+len("token="):]
}

func TestVerifyConsumeRedirects(t *testing.T) {
	router, repo, mailer, service := newVerifyFixture(t)
	ctx := context.Background()

	user, err := repo.Create(ctx, types.User{Username: "hero", Email: "hero@example.com", Role: types.RolePlayer})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := service.Issue(ctx, user); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifyToken := issuedToken(t, mailer)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/auth/verify?token=" + verifyToken)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != verifySiteURL+"/verify?success=true" {
		t.Fatalf("location = %q", loc)
	}

	// The same token redeems only once.
	rec = get("/auth/verify?token=" + verifyToken)
	if loc := rec.Header().Get("Location"); loc != verifySiteURL+"/verify?error=invalid_token" {
		t.Fatalf("replay location = %q", loc)
	}

	// A malformed token gets the same redirect as an unknown one.
	rec = get("/auth/verify?token=%27%20OR%201=1")
	if loc := rec.Header().Get("Location"); loc != verifySiteURL+"/verify?error=invalid_token" {
		t.Fatalf("malformed location = %q", loc)
	}
}

func TestVerifyResendIsEnumerationSafe(t *testing.T) {
	router, repo, mailer, _ := newVerifyFixture(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, types.User{Username: "hero", Email: "hero@example.com", Role: types.RolePlayer}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/verify", bytes.NewReader([]byte(body))))
		return rec
	}

	known := post(`{"email":"hero@example.com"}`)
	unknown := post(`{"email":"ghost@example.com"}`)
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d/%d, want 200/200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatal("resend responses must not reveal whether the address exists")
	}
	if mailer.sent != 1 {
		t.Fatalf("mails sent = %d, want 1", mailer.sent)
	}
}
