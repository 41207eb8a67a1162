// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain"
)

// --- Pagination ---

// PaginationRequest contains dashboard pagination parameters.
type PaginationRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// ToFilter converts to the domain filter, applying defaults.
func (p PaginationRequest) ToFilter() domain.ListFilter {
	return domain.ListFilter{Page: p.Page, Limit: p.PageSize}.Normalize()
}

// PaginationResponse contains pagination metadata.
type PaginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginationResponse builds metadata for a list result.
func NewPaginationResponse[T any](res domain.ListResult[T]) PaginationResponse {
	return PaginationResponse{
		Page:       res.Page,
		PageSize:   res.Limit,
		TotalItems: res.Total,
		TotalPages: res.TotalPages(),
	}
}

// GenericListResponse wraps list results with pagination.
type GenericListResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Message Response ---

// MessageResponse for operations without data.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Error Response ---

// ErrorResponse documents the error body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
