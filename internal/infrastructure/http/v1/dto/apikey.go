package dto

import (
	"time"

	"invoicegen/internal/domain/apikey"
)

// CreateAPIKeyRequest names a new key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// VerifyAPIKeyRequest carries the key to check.
type VerifyAPIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// VerifyAPIKeyResponse reports whether the key is active.
type VerifyAPIKeyResponse struct {
	Valid bool `json:"valid"`
}

// APIKeyResponse never carries the plaintext, only the display prefix.
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// FromAPIKey creates response from domain key.
func FromAPIKey(k *apikey.Key) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID.String(),
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		IsActive:   k.IsActive,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// IssuedAPIKeyResponse is returned once, at creation.
type IssuedAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// FromIssued creates response for a freshly created key.
func FromIssued(k *apikey.Issued) IssuedAPIKeyResponse {
	return IssuedAPIKeyResponse{
		APIKeyResponse: FromAPIKey(k.Key),
		Key:            k.Plaintext,
	}
}
