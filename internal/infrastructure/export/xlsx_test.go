package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoicegen/internal/core/id"
	"invoicegen/internal/core/types"
	"invoicegen/internal/domain/invoice"
)

func TestWriteXLSX(t *testing.T) {
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	invoices := []*invoice.Invoice{
		{
			ID:              id.New(),
			Number:          "213223444-2",
			CustomerName:    "Acme Corp",
			CustomerAddress: "1 Main St",
			Amount:          types.MustMoney("800.00"),
			Currency:        invoice.DefaultCurrency,
			Status:          invoice.StatusGenerated,
			IssueDate:       issued,
			DueDate:         issued.AddDate(0, 0, 30),
			Items:           make([]invoice.LineItem, 2),
			CreatedAt:       time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, invoices))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{
		"213223444-2", "Acme Corp", "1 Main St", "2024-03-01", "2024-03-31",
		"2", "800", "USD", "GENERATED", "2024-03-01T10:30:00Z",
	}, rows[1])
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, headers, rows[0])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "invoices-20240301-103000.xlsx", Filename(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)))
}
