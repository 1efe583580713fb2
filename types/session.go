package types

import "time"

// Session is the audit record written for every issued token. The verifier
// trusts the signed token itself; session rows exist so operators can see
// where and when an account logged in.
type Session struct {
	// ID is the opaque identifier of the session record.
	ID string `json:"id" db:"id"`

	// UserID references the user the session was issued to.
	UserID string `json:"user_id" db:"user_id"`

	// Token is the issued signed credential, stored verbatim.
	Token string `json:"-" db:"token"`

	// UserAgent is the client's User-Agent header, best effort.
	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`

	// IPAddress is the client's remote address, best effort.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// ExpiresAt is when the token embedded in this session expires.
	// It is always strictly after CreatedAt.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is when the session was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated identity handed to feature routes after
// token verification. Feature code never parses tokens itself.
type Principal struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Role     Role    `json:"role"`
	Faction  *string `json:"faction,omitempty"`
}
