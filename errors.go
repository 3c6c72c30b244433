package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside HTTP status codes.
const (
	TextCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	TextCodeAccountActivation    = "ACCOUNT_ACTIVATION_FAILED"
	TextCodeAccountRecovery      = "ACCOUNT_RECOVERY_FAILED"
	TextCodeInvalidInput         = "INVALID_INPUT"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeTokenRevoked         = "TOKEN_REVOKED"
	TextCodeTokenAlreadyRevoked  = "TOKEN_ALREADY_REVOKED"
	TextCodeDatabaseFailure      = "DATABASE_FAILURE"
)

// ErrAuthenticationFailed is deliberately undifferentiated: unknown email,
// wrong password, and inactive accounts all surface this same error so callers
// cannot enumerate accounts.
var ErrAuthenticationFailed = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountActivation covers every invalid activation attempt alike:
// unknown account, soft-deleted account, missing company, code mismatch.
var ErrAccountActivation = goerrors.New("account activation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeAccountActivation).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountRecovery covers every invalid recovery attempt alike:
// unknown account, expired code, code mismatch.
var ErrAccountRecovery = goerrors.New("account recovery failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeAccountRecovery).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a token fails its expiry check.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tampered, unsigned, or structurally
// invalid tokens. Always fail closed.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned when a structurally valid token has an entry in
// the revocation ledger.
var ErrTokenRevoked = goerrors.New("authentication token revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString guards hash helpers against empty input.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// WrapDatabaseError hides driver level failures behind a generic persistence
// error; the in-flight transaction is rolled back by the caller.
func WrapDatabaseError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeDatabaseFailure).
		WithCode(goerrors.CodeInternal)
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCode
	}
	return false
}

// IsAuthenticationError checks for the undifferentiated login failure.
func IsAuthenticationError(err error) bool {
	return HasTextCode(err, TextCodeAuthenticationFailed)
}

// IsActivationError checks for the undifferentiated activation failure.
func IsActivationError(err error) bool {
	return HasTextCode(err, TextCodeAccountActivation)
}

// IsRecoveryError checks for the undifferentiated recovery failure.
func IsRecoveryError(err error) bool {
	return HasTextCode(err, TextCodeAccountRecovery)
}

// IsSanitizationError checks for malformed input failures.
func IsSanitizationError(err error) bool {
	return HasTextCode(err, TextCodeInvalidInput)
}

// IsDatabaseError checks for wrapped persistence failures.
func IsDatabaseError(err error) bool {
	return HasTextCode(err, TextCodeDatabaseFailure)
}

// IsTokenExpiredError checks for expired token failures.
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError checks for malformed token failures.
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeTokenMalformed)
}

// IsAlreadyRevokedError checks for a duplicate revocation insert. Two
// concurrent renewals of the same token race on the ledger; the loser sees
// this error and proceeds as if its own insert had won.
func IsAlreadyRevokedError(err error) bool {
	return HasTextCode(err, TextCodeTokenAlreadyRevoked)
}
