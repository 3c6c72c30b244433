package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// Input bounds. The password ceiling tracks bcrypt's practical input limit.
const (
	EmailMinLength    = 6
	EmailMaxLength    = 320
	PasswordMinLength = 8
	PasswordMaxLength = 64
)

var cvrPattern = regexp.MustCompile(`^\d{8}$`)

// SanitizeEmail trims and validates a raw email address. Callers never see a
// partially sanitized value: on any violation the empty string is returned
// together with the validation error.
func SanitizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)

	err := validation.Validate(email,
		validation.Required,
		validation.Length(EmailMinLength, EmailMaxLength),
		is.Email,
	)
	if err != nil {
		return "", sanitizationError(err, "invalid email address")
	}

	return email, nil
}

// NormalizeEmail returns the canonical upper-cased form used to store and
// query email addresses, making comparison case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToUpper(strings.TrimSpace(email))
}

// SanitizePassword trims and validates a raw password. Only length is
// enforced; there is no character-class restriction.
func SanitizePassword(raw string) (string, error) {
	password := strings.TrimSpace(raw)

	err := validation.Validate(password,
		validation.Required,
		validation.Length(PasswordMinLength, PasswordMaxLength),
	)
	if err != nil {
		return "", sanitizationError(err, "invalid password")
	}

	return password, nil
}

// SanitizePhone validates an optional phone number and normalizes it to E.164.
// The empty string passes through: phone is not a required attribute.
func SanitizePhone(raw, region string) (string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", sanitizationError(err, "invalid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", sanitizationError(nil, "invalid phone number")
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// SanitizeCompanyName trims and validates a company name.
func SanitizeCompanyName(raw string) (string, error) {
	name := strings.TrimSpace(raw)

	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
	)
	if err != nil {
		return "", sanitizationError(err, "invalid company name")
	}

	return name, nil
}

// SanitizeCVR validates a company registration number (8 digits).
func SanitizeCVR(raw string) (string, error) {
	cvr := strings.TrimSpace(raw)

	err := validation.Validate(cvr,
		validation.Required,
		validation.Match(cvrPattern),
	)
	if err != nil {
		return "", sanitizationError(err, "invalid company registration number")
	}

	return cvr, nil
}

func sanitizationError(err error, message string) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)
}
