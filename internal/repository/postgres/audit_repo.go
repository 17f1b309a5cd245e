package postgres

import (
	"context"

	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/repository"
)

// AuditRepo implements AuditRepository using PostgreSQL.
// The table is append-only: this type exposes no update or delete.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit trail repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert appends one audit record. The id is assigned by the sequence.
func (r *AuditRepo) Insert(ctx context.Context, rec *model.AuditRecord) error {
	const q = `
INSERT INTO audit_log (account_id, username, action, detail, ip, user_agent, success, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.AccountID, rec.Username, rec.Action, rec.Detail,
		rec.IP, rec.UserAgent, rec.Success, rec.CreatedAt)
	return err
}

// List returns records matching the filter, newest first.
func (r *AuditRepo) List(ctx context.Context, f repository.AuditFilter) ([]model.AuditRecord, error) {
	const q = `
SELECT id, account_id, username, action, detail, ip, user_agent, success, created_at
FROM audit_log
WHERE ($1 = '' OR action = $1)
  AND ($2 = '' OR username ILIKE '%' || $2 || '%')
ORDER BY id DESC
LIMIT $3`
	rows, err := r.db.Pool.Query(ctx, q, f.Action, f.UsernameContains, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Username, &rec.Action, &rec.Detail,
			&rec.IP, &rec.UserAgent, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
