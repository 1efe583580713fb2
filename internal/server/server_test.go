package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emberhold/apiserver/config"
)

func demoConfig() config.Config {
	cfg := config.Config{}
	cfg.Env = "dev"
	cfg.Database.Disabled = true
	cfg.Auth.SiteURL = "http://localhost:3000"
	return cfg
}

func TestNewServesDemoMode(t *testing.T) {
	srv, err := New(context.Background(), demoConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Shutdown()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	// Registration runs end to end against the in-memory repositories.
	body := strings.NewReader(`{"username":"hero","email":"hero@example.com","password":"secret1"}`)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestNewRefusesBadProductionConfig(t *testing.T) {
	base := demoConfig()
	base.Env = "production"

	cases := map[string]func(*config.Config){
		"memory store": func(cfg *config.Config) {
			cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
		},
		"weak secret": func(cfg *config.Config) {
			cfg.Database.Disabled = false
			cfg.Auth.JWTSecret = "short"
		},
	}

	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, err := New(context.Background(), cfg); err == nil {
			t.Errorf("%s: New accepted a config it must refuse", name)
		}
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := demoConfig()
	cfg.MQ.Backend = "kafka"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("unknown mq backend must be refused")
	}

	cfg = demoConfig()
	cfg.Storage.Backend = "s3"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("unknown storage backend must be refused")
	}
}
