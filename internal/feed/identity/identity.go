// Package identity manages registration, credentials, and sessions.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/storage"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
	"github.com/aurasocial/aura/internal/platform/timeouts"
)

var (
	// ErrEmptyCredential indicates a blank password.
	ErrEmptyCredential = apperrors.New(apperrors.CodeAccountEmptyCredential, "credential is required")
	// ErrConflict indicates the canonical username is already taken.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "username is already taken")
	// ErrBadCredentials indicates an unknown username or wrong credential.
	ErrBadCredentials = apperrors.New(apperrors.CodeNotLoggedIn, "invalid username or credential")
	// ErrSuspended indicates the account is deactivated.
	ErrSuspended = apperrors.New(apperrors.CodeForbidden, "account is suspended")
	// ErrNoSession indicates a missing or expired session token.
	ErrNoSession = apperrors.New(apperrors.CodeNotLoggedIn, "no active session")
)

// Service issues accounts and opaque session tokens. Credential hashes
// never leave the storage layer.
type Service struct {
	store storage.Store
	clock func() time.Time
	newID func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides the account id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates an identity service over the given store.
func NewService(store storage.Store, opts ...Option) *Service {
	service := &Service{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Credential  string
	Role        account.Role
}

// Register creates an account and logs it in immediately, returning the
// account and a fresh session token. Usernames are unique
// case-insensitively.
func (s *Service) Register(ctx context.Context, input RegisterInput) (account.Account, string, error) {
	if strings.TrimSpace(input.Credential) == "" {
		return account.Account{}, "", ErrEmptyCredential
	}
	if strings.TrimSpace(input.Email) == "" {
		return account.Account{}, "", apperrors.New(apperrors.CodeInvalidInput, "email is required")
	}

	acct, err := account.New(account.CreateInput{
		Username:    input.Username,
		Email:       input.Email,
		DisplayName: input.DisplayName,
		Role:        input.Role,
	}, s.clock, s.newID)
	if err != nil {
		return account.Account{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Credential), bcrypt.DefaultCost)
	if err != nil {
		return account.Account{}, "", fmt.Errorf("hash credential: %w", err)
	}

	if err := s.store.PutAccount(ctx, acct); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return account.Account{}, "", ErrConflict
		}
		return account.Account{}, "", fmt.Errorf("put account: %w", err)
	}
	// A failed registration must not leave a half-created account
	// behind, so the later steps compensate by removing it.
	if err := s.store.PutCredential(ctx, acct.ID, string(hash)); err != nil {
		_ = s.store.DeleteAccount(ctx, acct.ID)
		return account.Account{}, "", fmt.Errorf("put credential: %w", err)
	}

	token, err := s.issueSession(ctx, acct.ID)
	if err != nil {
		_ = s.store.DeleteAccount(ctx, acct.ID)
		return account.Account{}, "", err
	}
	return acct, token, nil
}

// ProfileUpdate carries optional profile field changes. Nil fields keep
// their current value.
type ProfileUpdate struct {
	DisplayName *string
	Avatar      *string
	Bio         *string
}

// UpdateProfile changes the display name, avatar, or bio of one
// account. Display name and avatar may not be set blank; bio may.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, update ProfileUpdate) (account.Account, error) {
	current, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, apperrors.New(apperrors.CodeNotFound, "account not found")
		}
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}

	displayName := current.DisplayName
	avatar := current.Avatar
	bio := current.Bio
	if update.DisplayName != nil {
		trimmed := strings.TrimSpace(*update.DisplayName)
		if trimmed == "" {
			return account.Account{}, apperrors.New(apperrors.CodeInvalidInput, "display name may not be blank")
		}
		displayName = trimmed
	}
	if update.Avatar != nil {
		trimmed := strings.TrimSpace(*update.Avatar)
		if trimmed == "" {
			return account.Account{}, apperrors.New(apperrors.CodeInvalidInput, "avatar may not be blank")
		}
		avatar = trimmed
	}
	if update.Bio != nil {
		bio = strings.TrimSpace(*update.Bio)
	}

	updated, err := s.store.UpdateProfile(ctx, accountID, displayName, avatar, bio)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, apperrors.New(apperrors.CodeNotFound, "account not found")
		}
		return account.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// Authenticate verifies a credential and issues a session token.
// Suspended accounts are rejected even with a correct credential.
func (s *Service) Authenticate(ctx context.Context, username, credential string) (account.Account, string, error) {
	canonical, err := account.Canonicalize(username)
	if err != nil {
		return account.Account{}, "", ErrBadCredentials
	}

	acct, err := s.store.GetAccountByUsername(ctx, canonical)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, "", ErrBadCredentials
		}
		return account.Account{}, "", fmt.Errorf("get account: %w", err)
	}

	hash, err := s.store.GetCredential(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, "", ErrBadCredentials
		}
		return account.Account{}, "", fmt.Errorf("get credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return account.Account{}, "", ErrBadCredentials
	}

	if !acct.Active {
		return account.Account{}, "", ErrSuspended
	}

	token, err := s.issueSession(ctx, acct.ID)
	if err != nil {
		return account.Account{}, "", err
	}
	return acct, token, nil
}

// Resolve returns the account behind a live session token. Suspension
// does not revoke already-issued sessions; callers gate suspended
// accounts per operation.
func (s *Service) Resolve(ctx context.Context, token string) (account.Account, error) {
	if token == "" {
		return account.Account{}, ErrNoSession
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, ErrNoSession
		}
		return account.Account{}, fmt.Errorf("get session: %w", err)
	}
	if !s.clock().Before(session.ExpiresAt) {
		return account.Account{}, ErrNoSession
	}

	acct, err := s.store.GetAccount(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, ErrNoSession
		}
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// Logout deletes a session. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, accountID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	now := s.clock().UTC()
	session := storage.Session{
		Token:     token,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(timeouts.Session),
	}
	if err := s.store.PutSession(ctx, session); err != nil {
		return "", fmt.Errorf("put session: %w", err)
	}
	return token, nil
}

func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
