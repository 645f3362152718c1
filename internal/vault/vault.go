// ABOUTME: Credential vault: salted password hashing and random token strings
// ABOUTME: Pure functions with no store state; the stored hash format is "<hex-salt>:<hex-digest>"

package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// saltBytes is the random salt length. 16 bytes, hex-encoded in the stored
// hash.
const saltBytes = 16

// tokenBytes is the entropy of generated token strings.
const tokenBytes = 32

// HashPassword hashes a password with a fresh random salt and returns the
// stored form "<hex-salt>:<hex-digest>". The digest is SHA-256 of
// password followed by salt. No two calls reuse a salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	digest := sha256.Sum256([]byte(password + saltHex))
	return saltHex + ":" + hex.EncodeToString(digest[:]), nil
}

// VerifyPassword reports whether password matches the stored hash. Malformed
// stored hashes verify as false rather than erroring.
func VerifyPassword(password, stored string) bool {
	saltHex, digestHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) != sha256.Size {
		return false
	}
	got := sha256.Sum256([]byte(password + saltHex))
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

// NewToken returns a cryptographically random, URL-safe token string with
// 32 bytes of entropy. Callers must treat the value as opaque.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
