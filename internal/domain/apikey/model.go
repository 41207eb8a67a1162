// Package apikey manages the per-user keys that authenticate the invoice
// generation API.
//
// Plaintext keys are shown once at creation. Only their SHA-256 hash and a
// short display prefix are stored.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"invoicegen/internal/core/id"
)

const (
	// Prefix marks every issued key.
	Prefix = "pk_"
	// randomBytes is the entropy of a key; hex-encoded it yields 48 characters.
	randomBytes = 24
	// displayLen is how much of the plaintext is kept for display.
	displayLen = len(Prefix) + 8
)

// ErrInvalidKey is returned for unknown, revoked or malformed keys.
var ErrInvalidKey = errors.New("invalid api key")

// Key is a stored API key.
type Key struct {
	ID         id.ID      `db:"id" json:"id"`
	UserID     id.ID      `db:"user_id" json:"userId"`
	Name       string     `db:"name" json:"name"`
	KeyHash    string     `db:"key_hash" json:"-"`
	KeyPrefix  string     `db:"key_prefix" json:"keyPrefix"`
	IsActive   bool       `db:"is_active" json:"isActive"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Issued is a freshly created key together with its plaintext.
type Issued struct {
	*Key
	Plaintext string `json:"key"`
}

// Generate returns a new random plaintext key.
func Generate() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(buf), nil
}

// Hash returns the lookup hash of a plaintext key.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether s looks like an issued key.
func WellFormed(s string) bool {
	if !strings.HasPrefix(s, Prefix) || len(s) != len(Prefix)+2*randomBytes {
		return false
	}
	_, err := hex.DecodeString(s[len(Prefix):])
	return err == nil
}

func displayPrefix(plaintext string) string {
	if len(plaintext) <= displayLen {
		return plaintext
	}
	return plaintext[:displayLen]
}
