package secrets

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "accessops/pkg/domain-errors"
)

// MinPasswordLength is enforced at registration time.
const MinPasswordLength = 8

// Hash creates a bcrypt hash of the provided secret.
// Use this to securely store passwords for later verification; plaintext is
// never persisted or compared directly.
func Hash(secret string) (string, error) {
	if len(secret) < MinPasswordLength {
		return "", dErrors.New(dErrors.CodeValidation, "password is too short")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
	return nil
}
