package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password length policy, in runes.
const (
	MinPasswordLength = 4
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
	ErrPasswordTooLong  = errors.New("password is too long")
)

// ValidatePassword checks the length policy.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword returns a bcrypt hash of password. The password is digested
// first so inputs longer than bcrypt's 72 byte limit stay distinct.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Unsalted SHA-256
// hex digests from older accounts are accepted too; see NeedsRehash.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	if isLegacyHash(hash) {
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(hash)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}

// NeedsRehash reports whether hash should be replaced with a fresh
// HashPassword result after a successful login.
func NeedsRehash(hash string) bool {
	return isLegacyHash(hash)
}

func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func isLegacyHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
