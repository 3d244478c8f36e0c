package auth

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// UserCredentials maps NFC-normalized usernames to bcrypt hashes.
type UserCredentials map[string]string

// dummyHash is compared against when the username is unknown so that
// unknown users cost the same bcrypt work as wrong passwords.
var dummyHash = mustHash("\x00invalid")

func mustHash(pw string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		panic("bcrypt: " + err.Error())
	}

	return h
}

// NormalizeUsername trims surrounding space and applies Unicode NFC so a
// name typed with combining marks matches its precomposed form.
func NormalizeUsername(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsBcryptHash reports whether s parses as a bcrypt hash.
func IsBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Authenticate checks username and password against the configured
// hashes and returns the subject to log in. A wrong password and an
// unknown user both return ErrInvalidCredentials.
func (u UserCredentials) Authenticate(username, password string) (string, error) {
	name := NormalizeUsername(username)

	hash, ok := u[name]
	if !ok || name == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", apperrors.ErrInvalidCredentials
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return "", apperrors.ErrInvalidCredentials
	}

	if err != nil {
		return "", fmt.Errorf("checking password for %q: %w", name, err)
	}

	return name, nil
}
