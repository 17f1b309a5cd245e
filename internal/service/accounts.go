package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/jdvries/sampletrack/internal/audit"
	pkgcrypto "github.com/jdvries/sampletrack/internal/crypto"
	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/repository"
)

// Service-level sentinels for account administration.
var (
	// ErrInvalidInput indicates a missing username or unknown role.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSelfDelete indicates an admin trying to delete their own account.
	ErrSelfDelete = errors.New("cannot delete own account")
)

// AccountUpdate carries optional changes for Update. Empty fields are kept.
type AccountUpdate struct {
	Username    string
	Role        model.Role
	NewPassword string
}

// AccountService defines the privileged account mutations. Callers are
// expected to have passed the admin authorization gate; every mutation writes
// one audit record naming the actor and the target.
type AccountService interface {
	List(ctx context.Context) ([]model.Account, error)
	Create(ctx context.Context, actor model.Identity, username string, role model.Role, clientAddr, clientAgent string) (*model.Account, error)
	Update(ctx context.Context, actor model.Identity, id uuid.UUID, upd AccountUpdate, clientAddr, clientAgent string) (*model.Account, error)
	Delete(ctx context.Context, actor model.Identity, id uuid.UUID, clientAddr, clientAgent string) error
	ForceResetPassword(ctx context.Context, actor model.Identity, id uuid.UUID, clientAddr, clientAgent string) error
}

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	trail    AuditTrail
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(accounts repository.AccountRepository, trail AuditTrail) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, trail: trail}
}

// List returns all accounts, newest first.
func (s *AccountServiceImpl) List(ctx context.Context) ([]model.Account, error) {
	out, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", errs.ErrUnavailable, err)
	}
	return out, nil
}

// Create provisions an account with no credential; the first login collapses
// to the bootstrap flow where the user sets their own password.
func (s *AccountServiceImpl) Create(ctx context.Context, actor model.Identity, username string, role model.Role, clientAddr, clientAgent string) (*model.Account, error) {
	if username == "" || !role.Valid() {
		return nil, ErrInvalidInput
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	acc := &model.Account{
		ID:            id,
		Username:      username,
		Role:          role,
		MustBootstrap: true,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, fmt.Errorf("%w: create account: %v", errs.ErrUnavailable, err)
	}
	s.trail.Append(ctx, audit.Entry{
		AccountID: &actor.AccountID,
		Username:  actor.Username,
		Action:    audit.ActionUserCreated,
		Detail:    map[string]any{"targetId": acc.ID.String(), "targetUsername": acc.Username, "role": string(role)},
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return acc, nil
}

// Update renames an account, changes its role, or sets a password directly.
func (s *AccountServiceImpl) Update(ctx context.Context, actor model.Identity, id uuid.UUID, upd AccountUpdate, clientAddr, clientAgent string) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%w: account lookup: %v", errs.ErrUnavailable, err)
	}

	changed := map[string]any{"targetId": acc.ID.String(), "targetUsername": acc.Username}
	if upd.Username != "" && upd.Username != acc.Username {
		acc.Username = upd.Username
		changed["username"] = upd.Username
	}
	if upd.Role != "" {
		if !upd.Role.Valid() {
			return nil, ErrInvalidInput
		}
		acc.Role = upd.Role
		changed["role"] = string(upd.Role)
	}
	// Validate and derive the new credential before any write, so a weak
	// password cannot leave a half-applied rename or role change behind.
	var hash, salt []byte
	if upd.NewPassword != "" {
		if len(upd.NewPassword) < MinSecretLen {
			return nil, errs.ErrWeakSecret
		}
		salt, err = pkgcrypto.RandBytes(pkgcrypto.SaltLen)
		if err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		hash = pkgcrypto.HashPassword([]byte(upd.NewPassword), salt)
	}

	if err := s.accounts.UpdateProfile(ctx, acc.ID, acc.Username, acc.Role); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) || errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update account: %v", errs.ErrUnavailable, err)
	}

	if upd.NewPassword != "" {
		if err := s.accounts.SetCredential(ctx, acc.ID, hash, salt); err != nil {
			return nil, fmt.Errorf("%w: store credential: %v", errs.ErrUnavailable, err)
		}
		acc.MustBootstrap = false
		changed["passwordChanged"] = true
	}

	s.trail.Append(ctx, audit.Entry{
		AccountID: &actor.AccountID,
		Username:  actor.Username,
		Action:    audit.ActionUserUpdated,
		Detail:    changed,
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return acc, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *AccountServiceImpl) Delete(ctx context.Context, actor model.Identity, id uuid.UUID, clientAddr, clientAgent string) error {
	if actor.AccountID == id {
		return ErrSelfDelete
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: account lookup: %v", errs.ErrUnavailable, err)
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: delete account: %v", errs.ErrUnavailable, err)
	}
	s.trail.Append(ctx, audit.Entry{
		AccountID: &actor.AccountID,
		Username:  actor.Username,
		Action:    audit.ActionUserDeleted,
		Detail:    map[string]any{"targetId": id.String(), "targetUsername": acc.Username},
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return nil
}

// ForceResetPassword clears the target's credential and flags bootstrap, so
// the target's next login collapses to the bootstrap flow regardless of any
// previously valid password.
func (s *AccountServiceImpl) ForceResetPassword(ctx context.Context, actor model.Identity, id uuid.UUID, clientAddr, clientAgent string) error {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: account lookup: %v", errs.ErrUnavailable, err)
	}
	if err := s.accounts.ClearCredential(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: clear credential: %v", errs.ErrUnavailable, err)
	}
	s.trail.Append(ctx, audit.Entry{
		AccountID: &actor.AccountID,
		Username:  actor.Username,
		Action:    audit.ActionPasswordResetByAdmin,
		Detail:    map[string]any{"targetId": id.String(), "targetUsername": acc.Username},
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return nil
}
