package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"estate/internal/core"
)

const minPasswordLength = 8

// HashPassword returns a bcrypt hash, rejecting short passwords.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", core.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
