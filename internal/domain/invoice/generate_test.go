package invoice_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/internal/core/id"
	"invoicegen/internal/core/numerator"
	"invoicegen/internal/domain"
	"invoicegen/internal/domain/invoice"
	"invoicegen/internal/infrastructure/render"
)

type numberStore struct {
	mu      sync.Mutex
	numbers map[string]bool
}

func (s *numberStore) Exists(ctx context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numbers[number], nil
}

func (s *numberStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numbers[inv.Number] {
		return invoice.ErrNumberTaken
	}
	s.numbers[inv.Number] = true
	return nil
}

func (s *numberStore) GetByID(ctx context.Context, ownerID, invoiceID id.ID) (*invoice.Invoice, error) {
	return nil, nil
}

func (s *numberStore) List(ctx context.Context, ownerID id.ID, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	return domain.ListResult[*invoice.Invoice]{}, nil
}

type noTx struct{}

func (noTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const acmeRequest = `{
  "billTo": {"name": "Acme", "address": "1 Main St"},
  "items": [
    {"name": "Widget", "unitPrice": 200.00, "units": 1},
    {"name": "Gadget", "unitPrice": 200.00, "units": 3}
  ],
  "invoiceNumber": "213223444",
  "invoiceDate": "2024-03-01",
  "dueDate": "2024-03-31"
}`

func newPipeline(taken ...string) *invoice.Service {
	store := &numberStore{numbers: map[string]bool{}}
	for _, n := range taken {
		store.numbers[n] = true
	}
	allocator := numerator.NewAllocator(store, numerator.Options{})
	return invoice.NewService(store, allocator, render.New(), noTx{})
}

func TestGenerate_EndToEnd(t *testing.T) {
	draft, err := invoice.ParseRequest([]byte(acmeRequest))
	require.NoError(t, err)

	res, err := newPipeline().Generate(context.Background(), id.New(), nil, draft)
	require.NoError(t, err)

	assert.Equal(t, "213223444", res.Number)
	assert.Equal(t, "800.00", res.Total.StringFixed(2))
	assert.True(t, bytes.HasPrefix(res.PDF, []byte("%PDF")))

	decoded, err := base64.StdEncoding.DecodeString(res.PDFBase64)
	require.NoError(t, err)
	assert.Equal(t, res.PDF, decoded)
}

func TestGenerate_EndToEndNumberAlreadyUsed(t *testing.T) {
	draft, err := invoice.ParseRequest([]byte(acmeRequest))
	require.NoError(t, err)

	res, err := newPipeline("213223444").Generate(context.Background(), id.New(), nil, draft)
	require.NoError(t, err)
	assert.Equal(t, "213223444-2", res.Number)
}

func TestGenerate_SameInputSamePDF(t *testing.T) {
	draft, err := invoice.ParseRequest([]byte(acmeRequest))
	require.NoError(t, err)

	a, err := newPipeline().Generate(context.Background(), id.New(), nil, draft)
	require.NoError(t, err)
	b, err := newPipeline().Generate(context.Background(), id.New(), nil, draft)
	require.NoError(t, err)

	assert.Equal(t, a.Number, b.Number)
	assert.Equal(t, a.PDF, b.PDF)
}
