// Package audit defines the audit trail contract used by domain services.
// Entries are written after the business transaction commits and failures
// never fail the operation being audited.
package audit

import (
	"context"
	"time"
)

// Action is the audited operation.
type Action string

const (
	ActionInvoiceGenerated Action = "invoice.generated"
	ActionAPIKeyCreated    Action = "api_key.created"
	ActionAPIKeyRevoked    Action = "api_key.revoked"
	ActionUserRegistered   Action = "user.registered"
)

// Entry is a single audit record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     Action
	UserID     string
	Changes    map[string]any
	CreatedAt  time.Time
}

// Logger persists audit entries.
type Logger interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

// Record implements Logger.
func (Nop) Record(context.Context, Entry) error { return nil }

// Recorder collects entries in memory. Useful in tests.
type Recorder struct {
	Entries []Entry
	Err     error
}

// Record implements Logger.
func (r *Recorder) Record(_ context.Context, e Entry) error {
	if r.Err != nil {
		return r.Err
	}
	r.Entries = append(r.Entries, e)
	return nil
}
