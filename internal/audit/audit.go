// Package audit appends and queries the append-only security audit trail.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/repository"
)

// Action tags for every security-relevant event.
const (
	ActionLoginSuccess         = "LOGIN_SUCCESS"
	ActionLoginFailure         = "LOGIN_FAILURE"
	ActionLogout               = "LOGOUT"
	ActionPasswordBootstrapped = "PASSWORD_BOOTSTRAPPED"
	ActionPasswordResetByAdmin = "PASSWORD_RESET_BY_ADMIN"
	ActionUserCreated          = "USER_CREATED"
	ActionUserUpdated          = "USER_UPDATED"
	ActionUserDeleted          = "USER_DELETED"
)

// MaxQueryLimit caps the number of rows any single query may return.
const MaxQueryLimit = 500

// DefaultQueryLimit applies when the caller requests no limit.
const DefaultQueryLimit = 100

// Entry is one event to append. AccountID may be nil for attempts against
// unknown usernames; Detail is marshalled to JSON for forensics.
type Entry struct {
	AccountID *uuid.UUID
	Username  string
	Action    string
	Detail    map[string]any
	IP        string
	UserAgent string
	Success   bool
}

// Filter narrows a query; see repository.AuditFilter.
type Filter struct {
	Action           string
	UsernameContains string
	Limit            int
}

// Writer appends audit records and serves capped, newest-first queries.
//
// Append is deliberately best-effort: an audit write must never break the
// authentication decision it describes, so storage failures are logged locally
// and swallowed. This is the one place in the core where an error is not
// propagated.
type Writer struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewWriter constructs a Writer persisting to repo and logging failures to log.
func NewWriter(repo repository.AuditRepository, log *zap.Logger) *Writer {
	return &Writer{repo: repo, log: log}
}

// Append writes one audit record. Failures are logged and not returned.
func (w *Writer) Append(ctx context.Context, e Entry) {
	rec := &model.AuditRecord{
		Username:  e.Username,
		Action:    e.Action,
		IP:        orUnknown(e.IP),
		UserAgent: orUnknown(e.UserAgent),
		Success:   e.Success,
		CreatedAt: time.Now().UTC(),
	}
	if e.AccountID != nil {
		rec.AccountID = uuid.NullUUID{UUID: *e.AccountID, Valid: true}
	}
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			w.log.Error("audit: marshal detail", zap.String("action", e.Action), zap.Error(err))
		} else {
			rec.Detail = string(b)
		}
	}
	if err := w.repo.Insert(ctx, rec); err != nil {
		w.log.Error("audit: append failed",
			zap.String("action", e.Action),
			zap.String("username", e.Username),
			zap.Error(err),
		)
	}
}

// Query returns matching records, newest first. The limit is defaulted to
// DefaultQueryLimit and clamped to MaxQueryLimit regardless of the request.
func (w *Writer) Query(ctx context.Context, f Filter) ([]model.AuditRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	return w.repo.List(ctx, repository.AuditFilter{
		Action:           f.Action,
		UsernameContains: f.UsernameContains,
		Limit:            limit,
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
