package services

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for any login failure. It is a single
// value so handlers cannot leak whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Opaque error codes surfaced to the browser as a redirect query parameter
// after a failed provider callback. Nothing else about the failure leaves
// the server.
const (
	CodeProviderDenied   = "provider_denied"
	CodeExchangeFailed   = "exchange_failed"
	CodeProfileFailed    = "profile_failed"
	CodeInvalidAssertion = "invalid_assertion"
	CodeLinkFailed       = "link_failed"
)

// LinkError carries the opaque redirect code for a failed identity link plus
// the internal cause, which never reaches the client.
type LinkError struct {
	Code string
	Err  error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("link failed (%s)", e.Code)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// LinkCode extracts the redirect code from err, falling back to the generic
// link_failed code.
func LinkCode(err error) string {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Code
	}
	return CodeLinkFailed
}
