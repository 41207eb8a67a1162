package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain"
	"invoicegen/internal/domain/invoice"
	"invoicegen/internal/infrastructure/export"
	"invoicegen/internal/infrastructure/http/v1/dto"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB
	maxExportRows       = 10000
)

// InvoiceService is the part of invoice.Service the handlers use.
type InvoiceService interface {
	Generate(ctx context.Context, ownerID id.ID, apiKeyID *id.ID, draft *invoice.Draft) (*invoice.Result, error)
	Get(ctx context.Context, ownerID, invoiceID id.ID) (*invoice.Invoice, error)
	List(ctx context.Context, ownerID id.ID, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error)
	ListAll(ctx context.Context, ownerID id.ID, status invoice.Status, limit int) ([]*invoice.Invoice, error)
}

// InvoiceHandler serves invoice generation and the dashboard views.
type InvoiceHandler struct {
	*BaseHandler
	service InvoiceService
	now     func() time.Time
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: base,
		service:     service,
		now:         time.Now,
	}
}

// Generate handles POST /generate-invoice
func (h *InvoiceHandler) Generate(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	if !strings.Contains(strings.ToLower(c.GetHeader("Content-Type")), "application/json") {
		h.Error(c, apperror.NewUnsupportedMediaType("application/json"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := apperror.NewInvalidInput("Request body too large")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			h.Error(c, appErr.WithDetail("max_bytes", maxRequestBodyBytes))
			return
		}
		h.Error(c, apperror.NewInvalidInput("Failed to read request body").WithCause(err))
		return
	}

	draft, err := invoice.ParseRequest(body)
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Generate(c.Request.Context(), ownerID, h.CurrentAPIKeyID(c), draft)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromResult(res, http.StatusOK))
}

// ListForKey handles GET /generate-invoice
func (h *InvoiceHandler) ListForKey(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	filter := invoice.ListFilter{
		ListFilter: domain.ListFilter{
			Page:  h.ParseIntQuery(c, "page", 1),
			Limit: h.ParseIntQuery(c, "limit", domain.DefaultPageSize),
		},
		Status: invoice.Status(strings.ToUpper(c.Query("status"))),
	}

	res, err := h.service.List(c.Request.Context(), ownerID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromInvoiceList(res))
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var q dto.DashboardListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	res, err := h.service.List(c.Request.Context(), ownerID, invoice.ListFilter{
		ListFilter: q.ToFilter(),
		Status:     invoice.Status(strings.ToUpper(q.Status)),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.InvoiceResponse, len(res.Items))
	for i, inv := range res.Items {
		items[i] = dto.FromInvoice(inv)
	}
	c.JSON(http.StatusOK, dto.GenericListResponse[dto.InvoiceResponse]{
		Data:       items,
		Pagination: dto.NewPaginationResponse(res),
	})
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.FromInvoice(inv))
}

// PDF handles GET /invoices/:id/pdf
func (h *InvoiceHandler) PDF(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", inv.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", inv.PDF)
}

// Export handles GET /invoices/export
func (h *InvoiceHandler) Export(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	status := invoice.Status(strings.ToUpper(c.Query("status")))
	invoices, err := h.service.ListAll(c.Request.Context(), ownerID, status, maxExportRows)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(h.now())))
	c.Header("Content-Type", export.ContentTypeXLSX)
	c.Status(http.StatusOK)
	if err := export.WriteXLSX(c.Writer, invoices); err != nil {
		// Headers are gone; the client sees a truncated download.
		_ = c.Error(apperror.NewInternal(err))
	}
}

func (h *InvoiceHandler) load(c *gin.Context) (*invoice.Invoice, bool) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return nil, false
	}
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return nil, false
	}

	inv, err := h.service.Get(c.Request.Context(), ownerID, invoiceID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return inv, true
}

// RegisterGenerationRoutes registers the API-key authenticated routes.
func (h *InvoiceHandler) RegisterGenerationRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Generate)
	rg.GET("", h.ListForKey)
}

// RegisterDashboardRoutes registers the JWT authenticated routes.
func (h *InvoiceHandler) RegisterDashboardRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/export", h.Export)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/pdf", h.PDF)
}
