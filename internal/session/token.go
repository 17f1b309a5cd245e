// Package session issues and validates self-contained session tokens.
//
// A token is a signed HS256 capsule carrying the Identity fields; possession
// of a valid, unexpired token is the session. There is no server-side session
// table and no revocation list: logout is advisory until expiry.
package session

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
)

// MinKeyLen is the minimum signing key length accepted at construction.
// There is deliberately no fallback key: a missing secret fails closed.
const MinKeyLen = 32

type claims struct {
	jwt.RegisteredClaims
	Username  string     `json:"name"`
	Role      model.Role `json:"role"`
	Bootstrap bool       `json:"boot"`
}

// Manager signs and parses session tokens with a single HS256 key.
type Manager struct {
	key []byte
	ttl time.Duration
}

// NewManager constructs a Manager. The key must be at least MinKeyLen bytes.
func NewManager(key []byte, ttl time.Duration) (*Manager, error) {
	if len(key) < MinKeyLen {
		return nil, errors.New("session: signing key shorter than 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("session: non-positive token lifetime")
	}
	return &Manager{key: key, ttl: ttl}, nil
}

// Issue creates a signed token for the account. bootstrap marks a session that
// may only set the initial password and log out.
func (m *Manager) Issue(acc model.Account, bootstrap bool) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username:  acc.Username,
		Role:      acc.Role,
		Bootstrap: bootstrap,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(m.key)
	return signed, exp, err
}

// Parse validates the token signature and expiry and recovers the Identity.
// Any malformed, forged or expired token yields errs.ErrUnauthenticated.
func (m *Manager) Parse(token string) (model.Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	})
	if err != nil || !tok.Valid {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	id, err := uuid.FromString(c.Subject)
	if err != nil {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	return model.Identity{
		AccountID:     id,
		Username:      c.Username,
		Role:          c.Role,
		MustBootstrap: c.Bootstrap,
	}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }
