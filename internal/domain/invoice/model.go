// Package invoice implements invoice generation: request validation, number
// allocation, rendering and persistence of the generated document.
package invoice

import (
	"errors"
	"time"

	"invoicegen/internal/core/id"
	"invoicegen/internal/core/types"
)

// Status of a stored invoice.
type Status string

const (
	StatusGenerated Status = "GENERATED"
)

// DefaultCurrency is the only currency invoices are issued in.
const DefaultCurrency = "USD"

// ErrNumberTaken is returned by Repository.Create when another invoice
// already holds the number.
var ErrNumberTaken = errors.New("invoice number already taken")

// Party is the bill-to recipient.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// LineItem is one billable entry.
type LineItem struct {
	Name      string      `json:"name"`
	UnitPrice types.Money `json:"unitPrice"`
	Units     int64       `json:"units"`
}

// Total returns unitPrice × units.
func (li LineItem) Total() types.Money {
	return types.LineTotal(li.UnitPrice, li.Units)
}

// Total sums line totals in input order.
func Total(items []LineItem) types.Money {
	sum := types.Zero()
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Draft is a validated generation request. Dates are calendar dates at UTC midnight.
type Draft struct {
	BillTo        Party
	Items         []LineItem
	InvoiceNumber string // base identifier proposed by the caller
	InvoiceDate   time.Time
	DueDate       time.Time
	Total         types.Money
}

// Document is everything the renderer needs to lay out an invoice.
type Document struct {
	Number      string
	BillTo      Party
	Items       []LineItem
	InvoiceDate time.Time
	DueDate     time.Time
	Total       types.Money
}

// Document binds the draft to an allocated number.
func (d *Draft) Document(number string) *Document {
	return &Document{
		Number:      number,
		BillTo:      d.BillTo,
		Items:       d.Items,
		InvoiceDate: d.InvoiceDate,
		DueDate:     d.DueDate,
		Total:       d.Total,
	}
}

// Invoice is a persisted invoice record.
type Invoice struct {
	ID              id.ID       `json:"id"`
	OwnerID         id.ID       `json:"ownerId"`
	APIKeyID        *id.ID      `json:"apiKeyId,omitempty"`
	Number          string      `json:"invoiceNumber"`
	CustomerName    string      `json:"customerName"`
	CustomerAddress string      `json:"customerAddress"`
	Amount          types.Money `json:"amount"`
	Currency        string      `json:"currency"`
	Status          Status      `json:"status"`
	IssueDate       time.Time   `json:"invoiceDate"`
	DueDate         time.Time   `json:"dueDate"`
	Items           []LineItem  `json:"items"`
	PDFSize         int         `json:"pdfSize"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`

	// PDF holds the rendered document. Not loaded by list queries.
	PDF []byte `json:"-"`
}

// NewInvoice builds the record for a rendered document.
func NewInvoice(ownerID id.ID, apiKeyID *id.ID, doc *Document, pdf []byte, now time.Time) *Invoice {
	return &Invoice{
		ID:              id.New(),
		OwnerID:         ownerID,
		APIKeyID:        apiKeyID,
		Number:          doc.Number,
		CustomerName:    doc.BillTo.Name,
		CustomerAddress: doc.BillTo.Address,
		Amount:          doc.Total,
		Currency:        DefaultCurrency,
		Status:          StatusGenerated,
		IssueDate:       doc.InvoiceDate,
		DueDate:         doc.DueDate,
		Items:           doc.Items,
		PDF:             pdf,
		PDFSize:         len(pdf),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Result is returned to the caller of Generate.
type Result struct {
	Invoice   *Invoice
	Number    string
	Total     types.Money
	PDF       []byte
	PDFBase64 string
}
