package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, username, pwd_hash, salt_auth, role, must_bootstrap)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Username, a.PwdHash, a.SaltAuth, string(a.Role), a.MustBootstrap)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `
SELECT id, username, pwd_hash, salt_auth, role, must_bootstrap, created_at
FROM accounts WHERE id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects an account by exact username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `
SELECT id, username, pwd_hash, salt_auth, role, must_bootstrap, created_at
FROM accounts WHERE username=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, username))
}

// List returns all accounts, newest first.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const q = `
SELECT id, username, pwd_hash, salt_auth, role, must_bootstrap, created_at
FROM accounts ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		var role string
		if err := rows.Scan(&a.ID, &a.Username, &a.PwdHash, &a.SaltAuth, &role, &a.MustBootstrap, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = model.Role(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateProfile changes username and role.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, username string, role model.Role) error {
	const q = `UPDATE accounts SET username=$2, role=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, username, string(role))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetCredential stores a new hash and salt and clears the bootstrap flag.
func (r *AccountRepo) SetCredential(ctx context.Context, id uuid.UUID, hash, salt []byte) error {
	const q = `
UPDATE accounts SET pwd_hash=$2, salt_auth=$3, must_bootstrap=false WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ClearCredential removes the hash and salt and sets the bootstrap flag.
func (r *AccountRepo) ClearCredential(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE accounts SET pwd_hash=NULL, salt_auth=NULL, must_bootstrap=true WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the account row.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM accounts WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// scanOne maps a missing row to ErrNotFound and keeps every other failure
// distinct, so callers can tell "no such account" from an outage.
func (r *AccountRepo) scanOne(row interface{ Scan(dest ...any) error }) (*model.Account, error) {
	var a model.Account
	var role string
	if err := row.Scan(&a.ID, &a.Username, &a.PwdHash, &a.SaltAuth, &role, &a.MustBootstrap, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}
