package core

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier compares a submitted password with a stored one-way hash.
type CredentialVerifier interface {
	Verify(plaintext, storedHash string) bool
}

// BcryptVerifier checks bcrypt hashes. bcrypt compares digests in constant time.
type BcryptVerifier struct{}

// Verify fails closed: a malformed hash, an empty hash or a panic inside the
// hash library all yield false.
func (BcryptVerifier) Verify(plaintext, storedHash string) (ok bool) {
	if storedHash == "" {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}

// HashPassword returns a salted bcrypt hash. cost outside bcrypt's range falls back to the default.
func HashPassword(plaintext string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is compared against when the e-mail is unknown so both
// rejection paths do the same bcrypt work.
var dummyHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}
	return string(h)
}()
