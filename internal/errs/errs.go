// Package errs is the structured error taxonomy surfaced to API callers.
// Privacy-relevant denials are never downgraded into partial successes, and
// unknown-versus-disabled apps share one opaque code so failures do not leak
// whether a resource exists.
package errs

import (
	"errors"
	"net/http"
)

type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Status      int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Description
}

func InvalidClient() *Error {
	return &Error{
		Code:        "invalid_client",
		Description: "unknown client or client not eligible for token exchange",
		Status:      http.StatusUnauthorized,
	}
}

func AccessDenied(desc string) *Error {
	return &Error{Code: "access_denied", Description: desc, Status: http.StatusForbidden}
}

func InsufficientScope() *Error {
	return &Error{
		Code:        "insufficient_scope",
		Description: "no grantable capabilities remain after validation",
		Status:      http.StatusForbidden,
	}
}

func InvalidSubjectToken() *Error {
	return &Error{
		Code:        "invalid_subject_token",
		Description: "subject token is invalid or expired",
		Status:      http.StatusUnauthorized,
	}
}

func InsufficientCredits() *Error {
	return &Error{
		Code:        "insufficient_credits",
		Description: "credit balance does not cover this request",
		Status:      http.StatusPaymentRequired,
	}
}

func DuplicateShadowAccount() *Error {
	return &Error{
		Code:        "duplicate_shadow_account",
		Description: "a non-migrated shadow account already exists for this email",
		Status:      http.StatusConflict,
	}
}

func NotAuthenticated() *Error {
	return &Error{
		Code:        "not_authenticated",
		Description: "missing identity for a user-scoped operation",
		Status:      http.StatusUnauthorized,
	}
}

func InvalidRequest(desc string) *Error {
	return &Error{Code: "invalid_request", Description: desc, Status: http.StatusBadRequest}
}

// PrivacyViolation is the 403 returned when a scoped token is replayed
// against a different end user. The message is deliberately distinct from
// generic auth failures so integrators can spot the bug.
func PrivacyViolation() *Error {
	return &Error{
		Code:        "privacy_violation",
		Description: "token subject does not match end_user_id; scoped tokens cannot cross user partitions",
		Status:      http.StatusForbidden,
	}
}

// As extracts a structured *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
