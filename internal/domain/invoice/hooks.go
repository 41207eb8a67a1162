package invoice

import (
	"context"

	"invoicegen/internal/domain"
	"invoicegen/internal/domain/audit"
)

// AuditHook records every generated invoice in the audit trail.
func AuditHook(log audit.Logger) domain.Hook[*Invoice] {
	return func(ctx context.Context, inv *Invoice) error {
		changes := map[string]any{
			"invoiceNumber": inv.Number,
			"amount":        inv.Amount.StringFixed(2),
			"currency":      inv.Currency,
			"pdfSize":       inv.PDFSize,
		}
		if inv.APIKeyID != nil {
			changes["apiKeyId"] = inv.APIKeyID.String()
		}
		return log.Record(ctx, audit.Entry{
			EntityType: "invoice",
			EntityID:   inv.ID.String(),
			Action:     audit.ActionInvoiceGenerated,
			UserID:     inv.OwnerID.String(),
			Changes:    changes,
			CreatedAt:  inv.CreatedAt,
		})
	}
}
