package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// NewSessionToken returns a fresh opaque bearer token: 32 bytes of
// crypto/rand entropy, base64url without padding.
func NewSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DigestToken maps a raw token to its storage digest. Only the digest
// ever reaches the ledger, the cache or the revocation authority; the
// raw token exists in the client cookie and nowhere else.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
