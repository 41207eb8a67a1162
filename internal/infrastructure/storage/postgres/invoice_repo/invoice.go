// Package invoice_repo provides the PostgreSQL implementation of the invoice repository.
// PDFs are stored zstd-compressed next to the invoice row.
package invoice_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/core/types"
	"invoicegen/internal/domain"
	"invoicegen/internal/domain/invoice"
	"invoicegen/internal/infrastructure/storage/postgres"
)

const (
	tableName = "invoices"
	// numberConstraint is the unique index arbitrating concurrent allocations.
	numberConstraint = "invoices_invoice_number_key"
)

// Record mirrors the invoices table without the document.
type Record struct {
	ID              id.ID           `db:"id"`
	OwnerID         id.ID           `db:"owner_id"`
	APIKeyID        *id.ID          `db:"api_key_id"`
	Number          string          `db:"invoice_number"`
	CustomerName    string          `db:"customer_name"`
	CustomerAddress string          `db:"customer_address"`
	Amount          types.Money     `db:"amount"`
	Currency        string          `db:"currency"`
	Status          string          `db:"status"`
	IssueDate       time.Time       `db:"issue_date"`
	DueDate         time.Time       `db:"due_date"`
	Items           json.RawMessage `db:"items"`
	PDFSize         int             `db:"pdf_size"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// RecordWithPDF carries the stored document.
type RecordWithPDF struct {
	Record
	PDF            []byte                   `db:"pdf"`
	PDFCompression postgres.CompressionAlgo `db:"pdf_compression"`
}

var (
	listColumns = postgres.ExtractDBColumns[Record]()
	fullColumns = postgres.ExtractDBColumns[RecordWithPDF]()
)

// Repo implements invoice.Repository.
type Repo struct {
	txManager *postgres.TxManager
	codec     *postgres.Codec
}

var _ invoice.Repository = (*Repo)(nil)

// NewRepo creates an invoice repository.
func NewRepo(txManager *postgres.TxManager, codec *postgres.Codec) *Repo {
	return &Repo{txManager: txManager, codec: codec}
}

// Builder returns a new squirrel builder.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts inv. A clash on the invoice number yields invoice.ErrNumberTaken.
func (r *Repo) Create(ctx context.Context, inv *invoice.Invoice) error {
	data, err := r.toRecord(inv)
	if err != nil {
		return err
	}

	sql, args, err := r.Builder().Insert(tableName).SetMap(postgres.StructToMap(data)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		switch {
		case postgres.IsUniqueViolation(err, numberConstraint):
			return invoice.ErrNumberTaken
		case postgres.IsConnectionError(err):
			return apperror.NewStoreUnavailable(err)
		}
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}

// GetByID returns the invoice of owner including its PDF.
func (r *Repo) GetByID(ctx context.Context, ownerID, invoiceID id.ID) (*invoice.Invoice, error) {
	sql, args, err := r.Builder().
		Select(fullColumns...).
		From(tableName).
		Where(squirrel.Eq{"id": invoiceID, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var data RecordWithPDF
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &data, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, r.wrap("get by id", err)
	}

	inv, err := fromRecord(&data.Record)
	if err != nil {
		return nil, err
	}
	inv.PDF, err = r.codec.Decompress(data.PDF, data.PDFCompression)
	if err != nil {
		return nil, fmt.Errorf("decode pdf of %s: %w", inv.Number, err)
	}
	return inv, nil
}

// List returns a page of owner's invoices, newest first, without PDFs.
func (r *Repo) List(ctx context.Context, ownerID id.ID, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	result := domain.ListResult[*invoice.Invoice]{Page: filter.Page, Limit: filter.Limit}
	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := r.countQuery(ownerID, filter).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, sql, args...).Scan(&result.Total); err != nil {
		return result, r.wrap("count", err)
	}

	sql, args, err = r.listQuery(ownerID, filter).ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}

	var rows []Record
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, r.wrap("list", err)
	}

	result.Items = make([]*invoice.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := fromRecord(&rows[i])
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, inv)
	}
	return result, nil
}

func (r *Repo) where(ownerID id.ID, filter invoice.ListFilter) squirrel.Eq {
	where := squirrel.Eq{"owner_id": ownerID}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	return where
}

func (r *Repo) countQuery(ownerID id.ID, filter invoice.ListFilter) squirrel.SelectBuilder {
	return r.Builder().Select("COUNT(*)").From(tableName).Where(r.where(ownerID, filter))
}

func (r *Repo) listQuery(ownerID id.ID, filter invoice.ListFilter) squirrel.SelectBuilder {
	return r.Builder().
		Select(listColumns...).
		From(tableName).
		Where(r.where(ownerID, filter)).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset()))
}

func (r *Repo) wrap(op string, err error) error {
	if postgres.IsConnectionError(err) {
		return apperror.NewStoreUnavailable(err)
	}
	return fmt.Errorf("%s %s: %w", op, tableName, err)
}

func (r *Repo) toRecord(inv *invoice.Invoice) (*RecordWithPDF, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return &RecordWithPDF{
		Record: Record{
			ID:              inv.ID,
			OwnerID:         inv.OwnerID,
			APIKeyID:        inv.APIKeyID,
			Number:          inv.Number,
			CustomerName:    inv.CustomerName,
			CustomerAddress: inv.CustomerAddress,
			Amount:          inv.Amount,
			Currency:        inv.Currency,
			Status:          string(inv.Status),
			IssueDate:       inv.IssueDate,
			DueDate:         inv.DueDate,
			Items:           items,
			PDFSize:         len(inv.PDF),
			CreatedAt:       inv.CreatedAt,
			UpdatedAt:       inv.UpdatedAt,
		},
		PDF:            r.codec.Compress(inv.PDF),
		PDFCompression: postgres.CompressionZstd,
	}, nil
}

func fromRecord(data *Record) (*invoice.Invoice, error) {
	var items []invoice.LineItem
	if len(data.Items) > 0 {
		if err := json.Unmarshal(data.Items, &items); err != nil {
			return nil, fmt.Errorf("decode items of %s: %w", data.Number, err)
		}
	}
	return &invoice.Invoice{
		ID:              data.ID,
		OwnerID:         data.OwnerID,
		APIKeyID:        data.APIKeyID,
		Number:          data.Number,
		CustomerName:    data.CustomerName,
		CustomerAddress: data.CustomerAddress,
		Amount:          data.Amount,
		Currency:        data.Currency,
		Status:          invoice.Status(data.Status),
		IssueDate:       data.IssueDate.UTC(),
		DueDate:         data.DueDate.UTC(),
		Items:           items,
		PDFSize:         data.PDFSize,
		CreatedAt:       data.CreatedAt,
		UpdatedAt:       data.UpdatedAt,
	}, nil
}
