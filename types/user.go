package types

import "time"

// User represents an account in the system. Accounts are created either by
// password registration or by an identity-provider callback, and a single
// account may carry links to several providers.
type User struct {
	// ID is the opaque, immutable identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the unique login name. Uniqueness is case-insensitive.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, lower-cased on write.
	// Uniqueness is case-insensitive.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password. It is
	// empty for accounts bootstrapped from an identity provider and is
	// never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// DiscordID is the linked Discord account id, if any. Unique when set.
	DiscordID *string `json:"discord_id,omitempty" db:"discord_id"`

	// SteamID is the linked Steam account id, if any. Unique when set.
	SteamID *string `json:"steam_id,omitempty" db:"steam_id"`

	// Role is the user's authorization level (see role.go).
	Role Role `json:"role" db:"role"`

	// Faction is an optional community tag. It is carried on the principal
	// for feature routes but is otherwise opaque to the auth subsystem.
	Faction *string `json:"faction,omitempty" db:"faction"`

	// EmailVerified reports whether the email address has been confirmed.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// VerifyToken is the pending email verification token, if any.
	// VerifyToken and VerifyExpires are always set and cleared together.
	VerifyToken *string `json:"-" db:"verify_token"`

	// VerifyExpires is the expiry of VerifyToken.
	VerifyExpires *time.Time `json:"-" db:"verify_expires"`

	// AvatarURL points at the user's avatar image.
	AvatarURL string `json:"avatar_url" db:"avatar_url"`

	// Coins is the soft-currency balance granted on registration and spent
	// by the shop and casino features.
	Coins int64 `json:"coins" db:"coins"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
