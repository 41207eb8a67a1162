package dto

import (
	"time"

	"invoicegen/internal/core/types"
	"invoicegen/internal/domain"
	"invoicegen/internal/domain/invoice"
)

// GenerateInvoiceResponse is the body of a successful generation.
type GenerateInvoiceResponse struct {
	Message       string `json:"message"`
	Status        int    `json:"status"`
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	Total         string `json:"total"`
	PDF           string `json:"pdf"`
}

// FromResult builds the generation response.
func FromResult(res *invoice.Result, status int) GenerateInvoiceResponse {
	return GenerateInvoiceResponse{
		Message:       "Invoice generated successfully",
		Status:        status,
		InvoiceID:     res.Invoice.ID.String(),
		InvoiceNumber: res.Number,
		Total:         types.FormatAmount(res.Total),
		PDF:           res.PDFBase64,
	}
}

// InvoiceSummary is one row of the API-key listing.
type InvoiceSummary struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	CustomerName  string    `json:"customerName"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LimitPagination is the envelope of the API-key listing.
type LimitPagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// InvoiceListResponse is the API-key listing body.
type InvoiceListResponse struct {
	Invoices   []InvoiceSummary `json:"invoices"`
	Pagination LimitPagination  `json:"pagination"`
}

// FromInvoiceList builds the API-key listing body.
func FromInvoiceList(res domain.ListResult[*invoice.Invoice]) InvoiceListResponse {
	items := make([]InvoiceSummary, len(res.Items))
	for i, inv := range res.Items {
		items[i] = InvoiceSummary{
			ID:            inv.ID.String(),
			InvoiceNumber: inv.Number,
			CustomerName:  inv.CustomerName,
			Amount:        types.FormatAmount(inv.Amount),
			Status:        string(inv.Status),
			CreatedAt:     inv.CreatedAt,
		}
	}
	return InvoiceListResponse{
		Invoices: items,
		Pagination: LimitPagination{
			Page:       res.Page,
			Limit:      res.Limit,
			Total:      res.Total,
			TotalPages: res.TotalPages(),
		},
	}
}

// DashboardListQuery are the dashboard listing parameters.
type DashboardListQuery struct {
	PaginationRequest
	Status string `form:"status"`
}

// InvoiceResponse is the dashboard view of an invoice, without the PDF.
type InvoiceResponse struct {
	ID              string             `json:"id"`
	InvoiceNumber   string             `json:"invoiceNumber"`
	CustomerName    string             `json:"customerName"`
	CustomerAddress string             `json:"customerAddress"`
	Amount          string             `json:"amount"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	InvoiceDate     string             `json:"invoiceDate"`
	DueDate         string             `json:"dueDate"`
	Items           []invoice.LineItem `json:"items,omitempty"`
	PDFSize         int                `json:"pdfSize"`
	APIKeyID        string             `json:"apiKeyId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// FromInvoice creates the dashboard view.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID.String(),
		InvoiceNumber:   inv.Number,
		CustomerName:    inv.CustomerName,
		CustomerAddress: inv.CustomerAddress,
		Amount:          types.FormatAmount(inv.Amount),
		Currency:        inv.Currency,
		Status:          string(inv.Status),
		InvoiceDate:     inv.IssueDate.Format(time.DateOnly),
		DueDate:         inv.DueDate.Format(time.DateOnly),
		Items:           inv.Items,
		PDFSize:         inv.PDFSize,
		CreatedAt:       inv.CreatedAt,
	}
	if inv.APIKeyID != nil {
		resp.APIKeyID = inv.APIKeyID.String()
	}
	return resp
}
