package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/internal/core/types"
	"invoicegen/internal/domain/invoice"
)

func sampleDocument(items int) *invoice.Document {
	lines := make([]invoice.LineItem, items)
	for i := range lines {
		lines[i] = invoice.LineItem{
			Name:      fmt.Sprintf("Item %d", i+1),
			UnitPrice: types.MustMoney("200.00"),
			Units:     int64(i%3 + 1),
		}
	}
	return &invoice.Document{
		Number:      "213223444",
		BillTo:      invoice.Party{Name: "Acme", Address: "1 Main St"},
		Items:       lines,
		InvoiceDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Total:       invoice.Total(lines),
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	out, err := New().Render(sampleDocument(2))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestRender_IsDeterministic(t *testing.T) {
	r := New()
	doc := sampleDocument(5)

	first, err := r.Render(doc)
	require.NoError(t, err)
	second, err := r.Render(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_DifferentNumbersDiffer(t *testing.T) {
	r := New()
	a := sampleDocument(2)
	b := sampleDocument(2)
	b.Number = "213223444-2"

	outA, err := r.Render(a)
	require.NoError(t, err)
	outB, err := r.Render(b)
	require.NoError(t, err)

	assert.NotEqual(t, outA, outB)
}

func TestRender_Content(t *testing.T) {
	doc := &invoice.Document{
		Number: "213223444",
		BillTo: invoice.Party{Name: "Acme", Address: "1 Main St"},
		Items: []invoice.LineItem{
			{Name: "Widget", UnitPrice: types.MustMoney("200.00"), Units: 1},
			{Name: "Gadget", UnitPrice: types.MustMoney("200.00"), Units: 3},
		},
		InvoiceDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	doc.Total = invoice.Total(doc.Items)

	out, err := New(WithoutCompression()).Render(doc)
	require.NoError(t, err)

	for _, want := range []string{
		"INVOICE",
		"Bill To:",
		"Acme",
		"1 Main St",
		"Invoice Number: 213223444",
		"Invoice Date: March 1, 2024",
		"Due Date: March 31, 2024",
		"Widget",
		"Gadget",
		"$600.00",
		"Total:",
		"$800.00",
		"Thank you for your business!",
		"Page 1 of 1",
	} {
		assert.True(t, bytes.Contains(out, []byte("("+want+")")), "missing %q", want)
	}
}

func TestRender_PaginatesLongTables(t *testing.T) {
	out, err := New(WithoutCompression()).Render(sampleDocument(80))
	require.NoError(t, err)

	assert.False(t, bytes.Contains(out, []byte("(Page 1 of 1)")))
	assert.True(t, bytes.Contains(out, []byte("(Page 2 of ")))
	// the column titles are repeated on each page
	assert.Greater(t, bytes.Count(out, []byte("(Unit Price)")), 1)
	assert.True(t, bytes.Contains(out, []byte("(Item 80)")))

	prev := -1
	for n := 1; n <= 80; n++ {
		at := bytes.Index(out, []byte(fmt.Sprintf("(Item %d)", n)))
		require.NotEqual(t, -1, at, "Item %d missing", n)
		assert.Greater(t, at, prev, "Item %d out of order", n)
		prev = at
	}
}

// textLine matches a single-line cell in an uncompressed content stream.
var textLine = regexp.MustCompile(`BT ([0-9.]+) (-?[0-9.]+) Td \(([^)]*)\)Tj`)

// baselines returns the baseline height in points of every text cell whose
// content starts with prefix, in stream order.
func baselines(t *testing.T, out []byte, prefix string) map[string]float64 {
	t.Helper()
	got := make(map[string]float64)
	for _, m := range textLine.FindAllSubmatch(out, -1) {
		text := string(m[3])
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		y, err := strconv.ParseFloat(string(m[2]), 64)
		require.NoError(t, err)
		got[text] = y
	}
	return got
}

func TestRender_LongAddressContinuesOnNextPage(t *testing.T) {
	doc := sampleDocument(2)
	lines := make([]string, 120)
	for i := range lines {
		lines[i] = fmt.Sprintf("Line %d", i+1)
	}
	doc.BillTo.Address = strings.Join(lines, "\n")

	out, err := New(WithoutCompression()).Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, []byte("(Page 3 of ")))

	footerPt := footerSpace * 72 / 25.4
	got := baselines(t, out, "Line ")
	require.Len(t, got, 120)
	for text, y := range got {
		assert.Greater(t, y, footerPt, "%s drawn into the footer area", text)
	}

	prev := -1
	for _, line := range lines {
		at := bytes.Index(out, []byte("("+line+")"))
		assert.Greater(t, at, prev, "%s out of order", line)
		prev = at
	}
	// the invoice details stay on the first page
	assert.Less(t, bytes.Index(out, []byte("(Invoice Number: 213223444)")), bytes.Index(out, []byte("(Page 1 of ")))
}

func TestRender_HeaderMovesWithFirstRow(t *testing.T) {
	// 37 address lines end the details block so that the column header would
	// fit at the bottom of page 1 but the first row would not.
	doc := sampleDocument(2)
	lines := make([]string, 37)
	for i := range lines {
		lines[i] = fmt.Sprintf("Line %d", i+1)
	}
	doc.BillTo.Address = strings.Join(lines, "\n")

	out, err := New(WithoutCompression()).Render(doc)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(out, []byte("(Page 2 of 2)")))
	assert.Equal(t, 1, bytes.Count(out, []byte("(Unit Price)")))
	assert.Greater(t, bytes.Index(out, []byte("(Unit Price)")), bytes.Index(out, []byte("(Page 1 of ")))
	assert.Less(t, bytes.Index(out, []byte("(Unit Price)")), bytes.Index(out, []byte("(Item 1)")))
}

func TestRender_CapsTallItemNames(t *testing.T) {
	doc := sampleDocument(1)
	parts := make([]string, 100)
	for i := range parts {
		parts[i] = fmt.Sprintf("Part %d", i+1)
	}
	doc.Items[0].Name = strings.Join(parts, "\n")

	out, err := New(WithoutCompression()).Render(doc)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(out, []byte(fmt.Sprintf("(Part %d...)", maxNameLines))))
	assert.False(t, bytes.Contains(out, []byte(fmt.Sprintf("(Part %d)", maxNameLines+1))))

	footerPt := footerSpace * 72 / 25.4
	for text, y := range baselines(t, out, "Part ") {
		assert.Greater(t, y, footerPt, "%s drawn into the footer area", text)
	}
}

func TestRender_WrapsLongItemNames(t *testing.T) {
	doc := sampleDocument(1)
	doc.Items[0].Name = "Consulting services covering architecture review, " +
		"code audit and deployment support for the spring release"

	out, err := New(WithoutCompression()).Render(doc)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(out, []byte("("+doc.Items[0].Name+")")))
	assert.True(t, bytes.Contains(out, []byte("(Consulting services")))
}

func TestRender_ConcurrentUse(t *testing.T) {
	r := New()
	doc := sampleDocument(10)
	want, err := r.Render(doc)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Render(doc)
			if err == nil {
				results[i] = out
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
