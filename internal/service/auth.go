// Package service contains application services for authentication and
// account administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdvries/sampletrack/internal/audit"
	pkgcrypto "github.com/jdvries/sampletrack/internal/crypto"
	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/limiter"
	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/repository"
)

// MinSecretLen is the minimum accepted password length.
const MinSecretLen = 6

// AuditTrail is the audit writer as consumed by the services.
type AuditTrail interface {
	Append(ctx context.Context, e audit.Entry)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(acc model.Account, bootstrap bool) (token string, expiresAt time.Time, err error)
}

// LoginResult is the successful outcome of Login or SetBootstrapPassword.
// Bootstrap marks a session that may only set the initial password and log out.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   model.Account
	Bootstrap bool
}

// AuthService defines the credential-verification state machine.
type AuthService interface {
	// Login runs one authentication attempt: rate-limit check, account
	// lookup, bootstrap check, secret verification, in that order.
	Login(ctx context.Context, username, secret, clientAddr, clientAgent string) (*LoginResult, error)
	// SetBootstrapPassword sets the initial password of a bootstrap session
	// and returns a fresh full token.
	SetBootstrapPassword(ctx context.Context, ident model.Identity, newSecret, clientAddr, clientAgent string) (*LoginResult, error)
	// Logout records the logout; token discard is up to the client.
	Logout(ctx context.Context, ident model.Identity, clientAddr, clientAgent string)
}

type AuthServiceImpl struct {
	accounts repository.AccountRepository
	lim      limiter.Limiter
	trail    AuditTrail
	tokens   TokenIssuer
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, lim limiter.Limiter, trail AuditTrail, tokens TokenIssuer) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, lim: lim, trail: trail, tokens: tokens}
}

// Login authenticates one attempt, rate limited by client address.
//
// The client-facing error is identical for unknown usernames and wrong
// passwords; only the audit detail distinguishes them. Every terminal branch
// writes exactly one audit record before returning, except when the
// credential store itself is unavailable.
func (s *AuthServiceImpl) Login(ctx context.Context, username, secret, clientAddr, clientAgent string) (*LoginResult, error) {
	res := s.lim.Check(clientAddr)
	if !res.Allowed {
		// The blocked attempt is real signal worth keeping; no lookup happens.
		s.trail.Append(ctx, audit.Entry{
			Username:  username,
			Action:    audit.ActionLoginFailure,
			Detail:    map[string]any{"reason": "rate limit exceeded"},
			IP:        clientAddr,
			UserAgent: clientAgent,
		})
		return nil, &errs.RateLimitError{ResetAt: res.ResetAt}
	}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.trail.Append(ctx, audit.Entry{
				Username:  username,
				Action:    audit.ActionLoginFailure,
				Detail:    map[string]any{"reason": "user not found"},
				IP:        clientAddr,
				UserAgent: clientAgent,
			})
			return nil, errs.ErrInvalidCredentials
		}
		// An infrastructure fault must never look like a security decision.
		return nil, fmt.Errorf("%w: account lookup: %v", errs.ErrUnavailable, err)
	}

	if acc.MustBootstrap {
		// First-login flow: a bootstrap-pending account enters a restricted
		// bootstrap session without any secret comparison (even a stale hash
		// is ignored). Anyone who knows a pending username can claim this
		// session; that matches the provisioning workflow and is why the
		// token it yields can only set a password or log out.
		tok, exp, err := s.tokens.Issue(*acc, true)
		if err != nil {
			return nil, fmt.Errorf("issue bootstrap token: %w", err)
		}
		s.trail.Append(ctx, audit.Entry{
			AccountID: &acc.ID,
			Username:  acc.Username,
			Action:    audit.ActionLoginSuccess,
			Detail:    map[string]any{"bootstrap": true},
			IP:        clientAddr,
			UserAgent: clientAgent,
			Success:   true,
		})
		return &LoginResult{Token: tok, ExpiresAt: exp, Account: *acc, Bootstrap: true}, nil
	}

	if !pkgcrypto.VerifyPassword([]byte(secret), acc.SaltAuth, acc.PwdHash) {
		s.trail.Append(ctx, audit.Entry{
			AccountID: &acc.ID,
			Username:  acc.Username,
			Action:    audit.ActionLoginFailure,
			Detail:    map[string]any{"reason": "invalid password"},
			IP:        clientAddr,
			UserAgent: clientAgent,
		})
		return nil, errs.ErrInvalidCredentials
	}

	// Verified: the client earned a clean slate.
	s.lim.Reset(clientAddr)

	tok, exp, err := s.tokens.Issue(*acc, false)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.trail.Append(ctx, audit.Entry{
		AccountID: &acc.ID,
		Username:  acc.Username,
		Action:    audit.ActionLoginSuccess,
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return &LoginResult{Token: tok, ExpiresAt: exp, Account: *acc}, nil
}

// SetBootstrapPassword stores the initial password for a bootstrap session.
// The account is re-read so a stale bootstrap token, replayed after the
// password was already set, is rejected instead of overwriting the credential.
func (s *AuthServiceImpl) SetBootstrapPassword(ctx context.Context, ident model.Identity, newSecret, clientAddr, clientAgent string) (*LoginResult, error) {
	if !ident.MustBootstrap {
		return nil, errs.ErrForbidden
	}
	if len(newSecret) < MinSecretLen {
		return nil, errs.ErrWeakSecret
	}

	acc, err := s.accounts.GetByID(ctx, ident.AccountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: account lookup: %v", errs.ErrUnavailable, err)
	}
	if !acc.MustBootstrap {
		// The flag was cleared since the token was minted: stale session.
		return nil, errs.ErrUnauthenticated
	}

	salt, err := pkgcrypto.RandBytes(pkgcrypto.SaltLen)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	hash := pkgcrypto.HashPassword([]byte(newSecret), salt)
	if err := s.accounts.SetCredential(ctx, acc.ID, hash, salt); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: store credential: %v", errs.ErrUnavailable, err)
	}

	acc.PwdHash = hash
	acc.SaltAuth = salt
	acc.MustBootstrap = false

	// The old bootstrap token is now stale; the caller must adopt this one.
	tok, exp, err := s.tokens.Issue(*acc, false)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.trail.Append(ctx, audit.Entry{
		AccountID: &acc.ID,
		Username:  acc.Username,
		Action:    audit.ActionPasswordBootstrapped,
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
	return &LoginResult{Token: tok, ExpiresAt: exp, Account: *acc}, nil
}

// Logout records the logout event. There is no server-side revocation list, so
// this is advisory until the token expires.
func (s *AuthServiceImpl) Logout(ctx context.Context, ident model.Identity, clientAddr, clientAgent string) {
	s.trail.Append(ctx, audit.Entry{
		AccountID: &ident.AccountID,
		Username:  ident.Username,
		Action:    audit.ActionLogout,
		IP:        clientAddr,
		UserAgent: clientAgent,
		Success:   true,
	})
}
