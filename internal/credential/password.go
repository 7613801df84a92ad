package credential

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted.
	MinPasswordLength = 6

	// MaxPasswordBytes is the bcrypt input limit; bcrypt counts bytes, not characters.
	MaxPasswordBytes = 72

	// HashCost is the bcrypt work factor.
	HashCost = bcrypt.DefaultCost
)

var (
	ErrWeakPassword    = errors.New("password does not meet strength requirements")
	ErrPasswordTooLong = fmt.Errorf("password too long for bcrypt (max %d bytes); please use a shorter password", MaxPasswordBytes)
)

// ValidatePassword applies the strength policy (at least MinPasswordLength
// characters with one letter and one digit) and the bcrypt length limit.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}

	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
