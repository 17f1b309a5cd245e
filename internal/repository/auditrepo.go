package repository

import (
	"context"

	"github.com/jdvries/sampletrack/internal/model"
)

// AuditFilter narrows an audit trail query. Zero values match everything.
type AuditFilter struct {
	// Action matches the action tag exactly.
	Action string
	// UsernameContains matches a case-insensitive substring of the username.
	UsernameContains string
	// Limit caps the number of returned rows; the caller clamps it.
	Limit int
}

// AuditRepository provides append and read access to the audit trail.
// There is intentionally no update or delete.
type AuditRepository interface {
	// Insert appends one record.
	Insert(ctx context.Context, r *model.AuditRecord) error
	// List returns records matching the filter, newest first.
	List(ctx context.Context, f AuditFilter) ([]model.AuditRecord, error)
}
