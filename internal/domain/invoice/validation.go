package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"invoicegen/internal/core/apperror"
)

// requestSchema describes the generation request body.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["billTo", "items", "invoiceNumber", "invoiceDate", "dueDate"],
  "properties": {
    "billTo": {
      "type": "object",
      "required": ["name", "address"],
      "properties": {
        "name":    {"type": "string", "pattern": "\\S", "maxLength": 200},
        "address": {"type": "string", "pattern": "\\S", "maxLength": 1000}
      }
    },
    "items": {
      "type": "array",
      "minItems": 1,
      "maxItems": 500,
      "items": {
        "type": "object",
        "required": ["name", "unitPrice", "units"],
        "properties": {
          "name":      {"type": "string", "pattern": "\\S", "maxLength": 500},
          "unitPrice": {"type": "number", "minimum": 0, "maximum": 1000000000},
          "units":     {"type": "integer", "minimum": 0, "maximum": 1000000}
        }
      }
    },
    "invoiceNumber": {"type": "string", "pattern": "\\S", "maxLength": 100},
    "invoiceDate":   {"type": "string", "pattern": "\\S"},
    "dueDate":       {"type": "string", "pattern": "\\S"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(requestSchema)

// maxAmount is the largest total the invoices.amount NUMERIC(20,2) column holds.
var maxAmount = decimal.RequireFromString("999999999999999999.99")

// dateLayouts are the accepted calendar date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// wireRequest is the decoded body. Units are decoded as decimals because
// JSON Schema accepts 3.0 as an integer.
type wireRequest struct {
	BillTo        Party      `json:"billTo"`
	Items         []wireItem `json:"items"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   string     `json:"invoiceDate"`
	DueDate       string     `json:"dueDate"`
}

type wireItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Units     decimal.Decimal `json:"units"`
}

// ParseRequest validates a raw JSON body and returns the draft.
// All problems are reported together in a single validation error.
func ParseRequest(body []byte) (*Draft, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperror.NewInvalidInput("Request body is empty")
	}
	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, apperror.NewInvalidInput("Invalid JSON in request body").WithDetail("error", err.Error())
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, apperror.NewInvalidInput("Invalid JSON in request body").WithCause(err)
	}

	var fieldErrs []FieldError
	for _, e := range result.Errors() {
		fieldErrs = append(fieldErrs, FieldError{Field: schemaErrorField(e), Message: e.Description()})
	}

	// Dates are checked even when the schema failed elsewhere so that the
	// caller sees every problem at once.
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(body, &raw) // non-objects are reported by the schema
	dates := make(map[string]time.Time, 2)
	for _, field := range []string{"invoiceDate", "dueDate"} {
		var s string
		if json.Unmarshal(raw[field], &s) != nil || strings.TrimSpace(s) == "" {
			continue // reported by the schema
		}
		d, ok := ParseDate(s)
		if !ok {
			fieldErrs = append(fieldErrs, FieldError{Field: field, Message: fmt.Sprintf("%q is not a valid date", s)})
			continue
		}
		dates[field] = d
	}

	if len(fieldErrs) > 0 {
		sort.SliceStable(fieldErrs, func(i, j int) bool { return fieldErrs[i].Field < fieldErrs[j].Field })
		return nil, apperror.NewValidation("Invalid invoice data").WithDetail("errors", fieldErrs)
	}

	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperror.NewInvalidInput("Invalid JSON in request body").WithCause(err)
	}

	items := make([]LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = LineItem{
			Name:      strings.TrimSpace(it.Name),
			UnitPrice: it.UnitPrice,
			Units:     it.Units.IntPart(),
		}
	}

	total := Total(items)
	if errs := checkAmount(total); len(errs) > 0 {
		return nil, apperror.NewValidation("Invalid invoice data").WithDetail("errors", errs)
	}

	return &Draft{
		BillTo: Party{
			Name:    strings.TrimSpace(req.BillTo.Name),
			Address: strings.TrimSpace(req.BillTo.Address),
		},
		Items:         items,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:   dates["invoiceDate"],
		DueDate:       dates["dueDate"],
		Total:         total,
	}, nil
}

// checkAmount rejects totals the amount column cannot hold.
func checkAmount(total decimal.Decimal) []FieldError {
	if total.Round(2).GreaterThan(maxAmount) {
		return []FieldError{{Field: "items", Message: fmt.Sprintf("invoice total must not exceed %s", maxAmount.StringFixed(2))}}
	}
	return nil
}

// ParseDate parses s as a calendar date in one of the accepted layouts.
// The result is midnight UTC of the date as written.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// schemaErrorField builds a dotted path for a schema error. Errors about
// missing properties point at the property, not its parent.
func schemaErrorField(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == "(root)" {
		field = ""
	}
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			if field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	if field == "" {
		return "body"
	}
	return field
}
