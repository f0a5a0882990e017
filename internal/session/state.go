// Package session ties the browser cookie, the server-side session store
// and the token lifecycle together.
package session

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// GenerateState produces the one-time anti-forgery value that binds an
// authorization redirect to the session that initiated it. 16 bytes from a
// CSPRNG gives 128 bits of entropy.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionID returns a fresh opaque session identifier. IDs are random
// UUIDs and are never reused: a destroyed session's id stays invalid
// because nothing in the store answers to it anymore.
func NewSessionID() string {
	return uuid.NewString()
}
