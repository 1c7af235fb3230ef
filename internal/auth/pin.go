package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPin = errors.New("pin must be 4 to 8 digits")

// HashPin validates and hashes an operator PIN for storage.
func HashPin(pin string) (string, error) {
	if !validPin(pin) {
		return "", ErrWeakPin
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPin reports whether pin matches the stored bcrypt hash.
func VerifyPin(pin, hash string) bool {
	if pin == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

func validPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
