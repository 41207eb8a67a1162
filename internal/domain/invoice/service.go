package invoice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/core/numerator"
	"invoicegen/internal/core/tx"
	"invoicegen/internal/domain"
	"invoicegen/pkg/logger"
)

// Renderer turns a document into PDF bytes. Implementations must be pure.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// Instrumentation receives pipeline measurements.
type Instrumentation interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveAllocation(attempts int)
	NumberConflict()
	InvoiceGenerated(pdfBytes int)
}

type nopInstrumentation struct{}

func (nopInstrumentation) ObserveStage(string, time.Duration, error) {}
func (nopInstrumentation) ObserveAllocation(int)                    {}
func (nopInstrumentation) NumberConflict()                          {}
func (nopInstrumentation) InvoiceGenerated(int)                     {}

// Service generates and serves invoices.
type Service struct {
	repo      Repository
	allocator *numerator.Allocator
	renderer  Renderer
	txManager tx.Manager
	metrics   Instrumentation
	hooks     *domain.HookRegistry[*Invoice]
	now       func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithInstrumentation sets the metrics sink.
func WithInstrumentation(m Instrumentation) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a new invoice service.
func NewService(repo Repository, allocator *numerator.Allocator, renderer Renderer, txManager tx.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		allocator: allocator,
		renderer:  renderer,
		txManager: txManager,
		metrics:   nopInstrumentation{},
		hooks:     domain.NewHookRegistry[*Invoice](),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hooks returns the hook registry. After-create hooks run once the invoice
// is committed; their errors are logged and never fail generation.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// Generate allocates a unique number for draft, renders the PDF and stores
// the invoice for owner. Either everything succeeds or nothing is returned.
//
// The probe loop alone cannot stop two requests from picking the same
// number, so the unique index on invoice_number is the arbiter: losing the
// insert race resumes allocation at the next suffix.
func (s *Service) Generate(ctx context.Context, ownerID id.ID, apiKeyID *id.ID, draft *Draft) (*Result, error) {
	from := 1
	for {
		start := time.Now()
		number, n, err := s.allocator.AllocateFrom(ctx, draft.InvoiceNumber, from)
		s.metrics.ObserveStage(apperror.StageAllocation, time.Since(start), err)
		if err != nil {
			return nil, withStage(err, apperror.StageAllocation)
		}

		doc := draft.Document(number)

		start = time.Now()
		pdf, err := s.renderer.Render(doc)
		s.metrics.ObserveStage(apperror.StageRendering, time.Since(start), err)
		if err != nil {
			return nil, withStage(err, apperror.StageRendering)
		}

		inv := NewInvoice(ownerID, apiKeyID, doc, pdf, s.now())

		start = time.Now()
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.repo.Create(ctx, inv)
		})
		if errors.Is(err, ErrNumberTaken) {
			s.metrics.NumberConflict()
			logger.Info(ctx, "invoice number taken concurrently, retrying",
				"base", draft.InvoiceNumber,
				"number", number)
			from = n + 1
			continue
		}
		s.metrics.ObserveStage(apperror.StagePersistence, time.Since(start), err)
		if err != nil {
			return nil, withStage(err, apperror.StagePersistence)
		}

		s.metrics.ObserveAllocation(n)
		s.metrics.InvoiceGenerated(len(pdf))

		for _, hookErr := range s.hooks.RunAll(ctx, domain.AfterCreate, inv) {
			logger.Warn(ctx, "after-create hook failed", "invoice_id", inv.ID, "error", hookErr)
		}

		logger.Info(ctx, "invoice generated",
			"invoice_id", inv.ID,
			"number", number,
			"base", draft.InvoiceNumber,
			"total", draft.Total.StringFixed(2),
			"pdf_bytes", len(pdf))

		return &Result{
			Invoice:   inv,
			Number:    number,
			Total:     draft.Total,
			PDF:       pdf,
			PDFBase64: base64.StdEncoding.EncodeToString(pdf),
		}, nil
	}
}

// Get returns an invoice of owner including its PDF.
func (s *Service) Get(ctx context.Context, ownerID, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns a page of owner's invoices, newest first.
func (s *Service) List(ctx context.Context, ownerID id.ID, filter ListFilter) (domain.ListResult[*Invoice], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, ownerID, filter)
}

// ListAll returns up to limit invoices of owner for export, newest first.
func (s *Service) ListAll(ctx context.Context, ownerID id.ID, status Status, limit int) ([]*Invoice, error) {
	var out []*Invoice
	for page := 1; len(out) < limit; page++ {
		res, err := s.repo.List(ctx, ownerID, ListFilter{
			ListFilter: domain.ListFilter{Page: page, Limit: domain.MaxPageSize},
			Status:     status,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) < domain.MaxPageSize {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// withStage labels err with the pipeline stage. Errors that are not
// AppErrors become internal errors.
func withStage(err error, stage string) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = apperror.NewInternal(fmt.Errorf("%s: %w", stage, err))
	}
	return appErr.WithStage(stage)
}
