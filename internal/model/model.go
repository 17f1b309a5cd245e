// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Account is a portal user as stored in the credential store.
// PwdHash and SaltAuth are both empty while the account is bootstrap-pending.
type Account struct {
	ID            uuid.UUID // PK
	Username      string    // unique, case-sensitive lookup
	PwdHash       []byte    // Argon2id(password, SaltAuth); empty = no password set
	SaltAuth      []byte    // per-account auth salt
	Role          Role
	MustBootstrap bool // must set a password before ordinary access
	CreatedAt     time.Time
}

// Identity is the authenticated principal carried by a session token.
type Identity struct {
	AccountID     uuid.UUID
	Username      string
	Role          Role
	MustBootstrap bool
}

// AuditRecord is one immutable entry of the audit trail.
// Records are only ever appended; no exposed operation updates or deletes them.
type AuditRecord struct {
	ID        int64         // monotonically assigned ordering key
	AccountID uuid.NullUUID // absent for attempts against unknown usernames
	Username  string        // claimed/acting username, present even on failure
	Action    string
	Detail    string // opaque JSON payload, forensics only
	IP        string
	UserAgent string
	Success   bool
	CreatedAt time.Time
}
