package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks the single shared admin credential
type Verifier interface {
	Verify(candidate string) bool
}

// NewVerifier prefers a bcrypt hash over a plain secret. With neither configured
// every candidate is rejected.
func NewVerifier(secret, bcryptHash string) (Verifier, error) {
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		return &hashVerifier{hash: []byte(bcryptHash)}, nil
	}
	if secret == "" {
		return denyAll{}, nil
	}
	return &secretVerifier{digest: sha256.Sum256([]byte(secret))}, nil
}

type secretVerifier struct {
	digest [sha256.Size]byte
}

// Verify compares fixed-size digests so timing does not depend on the secret's length
func (v *secretVerifier) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	d := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(d[:], v.digest[:]) == 1
}

type hashVerifier struct {
	hash []byte
}

func (v *hashVerifier) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(candidate)) == nil
}

type denyAll struct{}

func (denyAll) Verify(string) bool { return false }
