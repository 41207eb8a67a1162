package invoice

import (
	"context"

	"invoicegen/internal/core/id"
	"invoicegen/internal/domain"
)

// Repository persists invoices.
type Repository interface {
	// Create inserts inv. Returns ErrNumberTaken when the number is already stored.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID returns the invoice of owner with its PDF.
	GetByID(ctx context.Context, ownerID, invoiceID id.ID) (*Invoice, error)

	// List returns the owner's invoices, newest first, without PDFs.
	List(ctx context.Context, ownerID id.ID, filter ListFilter) (domain.ListResult[*Invoice], error)
}

// ListFilter filters invoice lists.
type ListFilter struct {
	domain.ListFilter
	Status Status
}
