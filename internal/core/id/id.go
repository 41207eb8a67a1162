// Package id generates identifiers for persisted records.
// Records use UUIDv7 so that primary keys sort by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type of every stored record.
type ID = uuid.UUID

// New returns a UUIDv7, falling back to a random UUID if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error. Tests only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil reports whether v is the zero UUID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
