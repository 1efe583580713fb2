package services

import (
	"context"
	"errors"
	"testing"

	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterCreatesUser(t *testing.T) {
	svc := NewUserService(store.NewMemoryUserRepository())

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "Hero",
		Email:    "Hero@Example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected user id to be set")
	}
	if user.Email != "hero@example.com" {
		t.Fatalf("email = %q, want lower-cased", user.Email)
	}
	if user.Role != types.RolePlayer {
		t.Fatalf("role = %q, want player", user.Role)
	}
	if !user.EmailVerified {
		t.Fatal("password accounts are trusted immediately")
	}
	if user.Coins != StartingCoins {
		t.Fatalf("coins = %d, want %d", user.Coins, StartingCoins)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("password hash does not verify: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(store.NewMemoryUserRepository())

	cases := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@b.com", Password: "secret1"}, "username"},
		{"bad email", RegisterInput{Username: "abc", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", RegisterInput{Username: "abc", Email: "a@b.com", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.input)
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("field = %q, want %q", validation.Field, tc.field)
			}
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "Hero", Email: "Hero@Example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first register: %v", err)
	}

	// Username collision, case-insensitive.
	_, err := svc.Register(ctx, RegisterInput{Username: "hero", Email: "x@y.com", Password: "secret1"})
	conflict, ok := store.AsConflict(err)
	if !ok || conflict.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}

	// Email collision, case-insensitive.
	_, err = svc.Register(ctx, RegisterInput{Username: "other", Email: "hero@example.com", Password: "secret1"})
	conflict, ok = store.AsConflict(err)
	if !ok || conflict.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	// When both collide the email conflict wins.
	_, err = svc.Register(ctx, RegisterInput{Username: "HERO", Email: "HERO@EXAMPLE.COM", Password: "secret1"})
	conflict, ok = store.AsConflict(err)
	if !ok || conflict.Field != "email" {
		t.Fatalf("expected email conflict to take precedence, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := NewUserService(store.NewMemoryUserRepository())
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Username: "Hero", Email: "hero@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// By email, any casing.
	user, err := svc.Login(ctx, "HERO@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login by email: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatal("login resolved to a different user")
	}
	if user.LastLogin == nil {
		t.Fatal("expected last login to be touched")
	}

	// By username.
	if _, err := svc.Login(ctx, "hero", "secret1"); err != nil {
		t.Fatalf("Login by username: %v", err)
	}

	for _, tc := range []struct{ login, password string }{
		{"hero", "wrong"},
		{"nobody", "secret1"},
		{"", ""},
	} {
		if _, err := svc.Login(ctx, tc.login, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q): expected ErrInvalidCredentials, got %v", tc.login, err)
		}
	}
}

func TestLoginRejectsProviderOnlyAccount(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	discordID := "D1"
	if _, err := repo.Create(ctx, types.User{
		Username:  "linked",
		Email:     "linked@example.com",
		DiscordID: &discordID,
		Role:      types.RolePlayer,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Login(ctx, "linked@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
