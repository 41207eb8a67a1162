// Package render lays out invoices as PDF documents with gofpdf.
//
// Output is byte-for-byte reproducible for identical input: the document
// creation date is taken from the invoice date, catalog entries are sorted
// and no random identifiers are embedded.
package render

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"invoicegen/internal/core/types"
	"invoicegen/internal/domain/invoice"
)

type rgb struct{ r, g, b int }

// Palette.
var (
	colorPrimary   = rgb{52, 152, 219}
	colorSecondary = rgb{44, 62, 80}
	colorLightGray = rgb{236, 240, 241}
	colorPage      = rgb{250, 250, 250}
	colorAltRow    = rgb{240, 245, 250}
	colorGrid      = rgb{189, 195, 199}
	colorWhite     = rgb{255, 255, 255}
	colorBlack     = rgb{0, 0, 0}
	colorMuted     = rgb{127, 140, 141}
)

// Page geometry in millimetres (A4 portrait).
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginX      = 15.0
	bannerHeight = 40.0
	bodyTop      = 50.0
	footerSpace  = 20.0 // reserved above the bottom edge for the page number

	detailsRightX   = 140.0
	addressWidth    = 80.0
	detailLineH     = 6.0
	rowMinHeight    = 10.0
	itemLineH       = 5.0
	cellPadding     = 2.0
	closingNoteGap  = 15.0
	headerRowHeight = 10.0
)

// Column widths: Item takes what the fixed columns leave.
var (
	colUnitPrice = 40.0
	colQuantity  = 30.0
	colTotal     = 40.0
	tableWidth   = pageWidth - 2*marginX
	colItem      = tableWidth - colUnitPrice - colQuantity - colTotal
)

const dateDisplayLayout = "January 2, 2006"

// Renderer implements invoice.Renderer. It is stateless and safe for concurrent use.
type Renderer struct {
	creator  string
	compress bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithoutCompression leaves page streams uncompressed, which keeps the text
// searchable in the raw bytes.
func WithoutCompression() Option {
	return func(r *Renderer) { r.compress = false }
}

var _ invoice.Renderer = (*Renderer)(nil)

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{creator: "invoicegen", compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the PDF for doc.
func (r *Renderer) Render(doc *invoice.Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	stamp := doc.InvoiceDate
	if stamp.IsZero() {
		stamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	pdf.SetCreationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(r.compress)
	pdf.SetTitle(tr("Invoice "+doc.Number), false)
	pdf.SetCreator(r.creator, false)

	pdf.SetMargins(marginX, bodyTop, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("{nb}")

	pdf.SetHeaderFunc(func() { drawBanner(pdf) })
	pdf.SetFooterFunc(func() { drawPageFooter(pdf) })

	l := &layout{pdf: pdf, tr: tr}

	pdf.AddPage()
	y := l.details(doc, bodyTop)
	y = l.table(doc, y+10)
	l.closingNote(y + closingNoteGap)

	if pdf.Err() {
		return nil, fmt.Errorf("render invoice %s: %w", doc.Number, pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write invoice %s: %w", doc.Number, err)
	}
	return buf.Bytes(), nil
}

type layout struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func setFill(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setText(pdf *gofpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDraw(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }

// drawBanner paints the page background and the title band. Runs on every page.
func drawBanner(pdf *gofpdf.Fpdf) {
	setFill(pdf, colorPage)
	pdf.Rect(0, 0, pageWidth, pageHeight, "F")

	setFill(pdf, colorPrimary)
	pdf.Rect(0, 0, pageWidth, bannerHeight, "F")

	pdf.SetFont("Helvetica", "B", 28)
	setText(pdf, colorWhite)
	pdf.SetXY(0, 12)
	pdf.CellFormat(pageWidth, 16, "INVOICE", "", 0, "CM", false, 0, "")
}

func drawPageFooter(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "", 8)
	setText(pdf, colorMuted)
	pdf.SetXY(marginX, pageHeight-12)
	label := "Page " + strconv.Itoa(pdf.PageNo()) + " of {nb}"
	pdf.CellFormat(tableWidth, 5, label, "", 0, "C", false, 0, "")
}

// details draws the bill-to and invoice details columns and returns the y
// below the taller of the two. The invoice details stay on the first page;
// a long recipient block continues on the following pages.
func (l *layout) details(doc *invoice.Document, top float64) float64 {
	pdf := l.pdf
	page := pdf.PageNo()

	// Right: invoice details.
	rightWidth := pageWidth - marginX - detailsRightX
	pdf.SetFont("Helvetica", "B", 12)
	setText(pdf, colorSecondary)
	pdf.SetXY(detailsRightX, top)
	pdf.CellFormat(rightWidth, detailLineH+1, "Invoice Details", "", 0, "L", false, 0, "")

	rightY := top + detailLineH + 2
	pdf.SetFont("Helvetica", "", 10)
	setText(pdf, colorBlack)
	rows := []string{
		"Invoice Number: " + doc.Number,
		"Invoice Date: " + formatDate(doc.InvoiceDate),
		"Due Date: " + formatDate(doc.DueDate),
	}
	for _, row := range rows {
		for _, line := range pdf.SplitLines([]byte(l.tr(row)), rightWidth) {
			pdf.SetXY(detailsRightX, rightY)
			pdf.CellFormat(rightWidth, detailLineH-1, string(line), "", 0, "L", false, 0, "")
			rightY += detailLineH - 1
		}
	}

	// Left: recipient.
	pdf.SetFont("Helvetica", "B", 12)
	setText(pdf, colorSecondary)
	pdf.SetXY(marginX, top)
	pdf.CellFormat(addressWidth, detailLineH+1, "Bill To:", "", 0, "L", false, 0, "")

	leftY := top + detailLineH + 2
	pdf.SetFont("Helvetica", "B", 11)
	setText(pdf, colorBlack)
	leftY = l.column(marginX, leftY, addressWidth, detailLineH, pdf.SplitLines([]byte(l.tr(doc.BillTo.Name)), addressWidth))

	pdf.SetFont("Helvetica", "", 10)
	leftY = l.column(marginX, leftY, addressWidth, detailLineH-1, pdf.SplitLines([]byte(l.tr(doc.BillTo.Address)), addressWidth))

	if pdf.PageNo() != page || leftY > rightY {
		return leftY
	}
	return rightY
}

// column draws lines one below the other starting at y and moves to a new
// page when the next line would cross bottomLimit. Returns the y below the
// last line. AddPage restores the current font and colours after the banner.
func (l *layout) column(x, y, w, h float64, lines [][]byte) float64 {
	pdf := l.pdf
	for _, line := range lines {
		if y+h > bottomLimit {
			pdf.AddPage()
			y = bodyTop
		}
		pdf.SetXY(x, y)
		pdf.CellFormat(w, h, string(line), "", 0, "L", false, 0, "")
		y += h
	}
	return y
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Item", colItem, "L"},
	{"Unit Price", colUnitPrice, "R"},
	{"Quantity", colQuantity, "C"},
	{"Total", colTotal, "R"},
}

// bottomLimit is the lowest y content may reach on a page.
const bottomLimit = pageHeight - footerSpace

// maxNameLines is the most item name lines a row may carry so that the row
// fits below the column header of an empty page.
var maxNameLines = int(math.Floor((bottomLimit - bodyTop - headerRowHeight - 2*cellPadding) / itemLineH))

// tableHeader draws the column titles at y.
func (l *layout) tableHeader(y float64) float64 {
	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 12)
	setFill(pdf, colorPrimary)
	setDraw(pdf, colorGrid)
	setText(pdf, colorWhite)
	pdf.SetLineWidth(0.1)

	x := marginX
	for _, col := range columns {
		pdf.SetXY(x, y)
		pdf.CellFormat(col.width, headerRowHeight, col.title, "1", 0, "CM", true, 0, "")
		x += col.width
	}
	return y + headerRowHeight
}

// table draws the items grid and the totals row, continuing on new pages
// when rows do not fit. Rows keep their input order and the header is
// repeated on every page the grid continues on. Returns the y below the
// totals row.
func (l *layout) table(doc *invoice.Document, top float64) float64 {
	pdf := l.pdf

	pdf.SetFont("Helvetica", "", 10)
	names := make([][][]byte, len(doc.Items))
	for i, item := range doc.Items {
		names[i] = l.nameLines(item.Name)
	}

	// The header never sits alone at the bottom of a page.
	firstRowH := rowMinHeight
	if len(names) > 0 {
		firstRowH = rowHeight(names[0])
	}
	if top+headerRowHeight+firstRowH > bottomLimit {
		pdf.AddPage()
		top = bodyTop
	}
	y := l.tableHeader(top)

	for i, item := range doc.Items {
		rowH := rowHeight(names[i])
		if y+rowH > bottomLimit {
			pdf.AddPage()
			y = l.tableHeader(bodyTop)
		}

		fill := colorWhite
		if i%2 == 1 {
			fill = colorAltRow
		}
		cells := []string{
			"",
			types.FormatUSD(item.UnitPrice),
			strconv.FormatInt(item.Units, 10),
			types.FormatUSD(item.Total()),
		}
		pdf.SetFont("Helvetica", "", 10)
		l.row(y, rowH, fill, names[i], cells)
		y += rowH
	}

	// Totals row.
	if y+rowMinHeight > bottomLimit {
		pdf.AddPage()
		y = l.tableHeader(bodyTop)
	}
	pdf.SetFont("Helvetica", "B", 11)
	setFill(pdf, colorLightGray)
	setDraw(pdf, colorGrid)
	setText(pdf, colorBlack)
	labelWidth := colItem + colUnitPrice + colQuantity
	pdf.SetXY(marginX, y)
	pdf.CellFormat(labelWidth, rowMinHeight, "Total:", "1", 0, "RM", true, 0, "")
	pdf.CellFormat(colTotal, rowMinHeight, types.FormatUSD(doc.Total), "1", 0, "RM", true, 0, "")

	return y + rowMinHeight
}

// nameLines wraps an item name to the Item column. Names taller than a page
// are cut at maxNameLines with an ellipsis on the last kept line.
func (l *layout) nameLines(name string) [][]byte {
	lines := l.pdf.SplitLines([]byte(l.tr(name)), colItem-2*cellPadding)
	if len(lines) == 0 {
		return [][]byte{{}}
	}
	if len(lines) > maxNameLines {
		lines = lines[:maxNameLines]
		last := append([]byte(nil), lines[maxNameLines-1]...)
		lines[maxNameLines-1] = append(last, "..."...)
	}
	return lines
}

func rowHeight(lines [][]byte) float64 {
	h := float64(len(lines))*itemLineH + 2*cellPadding
	if h < rowMinHeight {
		return rowMinHeight
	}
	return h
}

// row draws one body row: a filled, bordered rectangle per column, the
// wrapped item name and the single-line numeric cells.
func (l *layout) row(y, h float64, fill rgb, nameLines [][]byte, cells []string) {
	pdf := l.pdf
	setFill(pdf, fill)
	setDraw(pdf, colorGrid)
	setText(pdf, colorSecondary)

	x := marginX
	for i, col := range columns {
		pdf.Rect(x, y, col.width, h, "FD")
		if i == 0 {
			ty := y + cellPadding
			for _, line := range nameLines {
				pdf.SetXY(x+cellPadding, ty)
				pdf.CellFormat(col.width-2*cellPadding, itemLineH, string(line), "", 0, "L", false, 0, "")
				ty += itemLineH
			}
		} else {
			pdf.SetXY(x+cellPadding, y)
			pdf.CellFormat(col.width-2*cellPadding, h, cells[i], "", 0, col.align+"M", false, 0, "")
		}
		x += col.width
	}
}

func (l *layout) closingNote(y float64) {
	pdf := l.pdf
	if y+8 > bottomLimit {
		pdf.AddPage()
		y = bodyTop
	}
	pdf.SetFont("Helvetica", "I", 10)
	setText(pdf, colorSecondary)
	pdf.SetXY(marginX, y)
	pdf.CellFormat(tableWidth, 8, "Thank you for your business!", "", 0, "C", false, 0, "")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateDisplayLayout)
}
