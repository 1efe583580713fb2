package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError is returned when a write collides with one of the unique
// natural keys (email, username, discord id, steam id). The unique indexes
// are the correctness mechanism under concurrent writers; callers losing a
// creation race are expected to re-read by the natural key and continue.
type ConflictError struct {
	// Field names the colliding attribute: "email", "username",
	// "discord_id" or "steam_id".
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// AsConflict unwraps err into a ConflictError if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// uniqueViolation codes from the postgres driver.
const pqUniqueViolation = "23505"

var constraintFields = map[string]string{
	"users_email_lower_idx":    "email",
	"users_username_lower_idx": "username",
	"users_discord_id_key":     "discord_id",
	"users_steam_id_key":       "steam_id",
}

// mapPQError translates a postgres unique violation into a ConflictError.
// Other errors pass through unchanged.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return err
	}
	field, ok := constraintFields[pqErr.Constraint]
	if !ok {
		field = "record"
	}
	return &ConflictError{Field: field}
}
