// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/jdvries/sampletrack/internal/model"
)

// AccountRepository provides access to the credential store.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByUsername loads an account by exact username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// List returns all accounts, newest first.
	List(ctx context.Context) ([]model.Account, error)
	// UpdateProfile changes username and role.
	UpdateProfile(ctx context.Context, id uuid.UUID, username string, role model.Role) error
	// SetCredential stores a new hash and salt and clears the bootstrap flag.
	SetCredential(ctx context.Context, id uuid.UUID, hash, salt []byte) error
	// ClearCredential removes the hash and salt and sets the bootstrap flag,
	// invalidating any previously set password.
	ClearCredential(ctx context.Context, id uuid.UUID) error
	// Delete removes the account.
	Delete(ctx context.Context, id uuid.UUID) error
}
