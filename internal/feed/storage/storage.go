// Package storage defines persistence contracts for feed service state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// Session stores one issued session token.
type Session struct {
	Token     string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AccountStore persists member account records.
//
// Usernames are stored in canonical form; GetAccountByUsername and
// ToggleAccountActive expect their argument already canonicalized.
// ToggleAccountActive must flip the flag atomically so concurrent
// toggles never lose a flip. UpdateProfile writes only the profile
// fields, leaving role and active untouched.
type AccountStore interface {
	PutAccount(ctx context.Context, acct account.Account) error
	GetAccount(ctx context.Context, accountID string) (account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) error
	UpdateProfile(ctx context.Context, accountID, displayName, avatar, bio string) (account.Account, error)
	ToggleAccountActive(ctx context.Context, username string) (account.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
	ListAccounts(ctx context.Context) ([]account.Account, error)
}

// PostStore persists posts and their reaction counters.
//
// ListPosts returns posts in insertion order. IncrementReaction and
// TogglePostApproval must apply their read-modify-write atomically per
// post so concurrent calls never lose an update; IncrementReaction must
// return the full counter map after the increment.
type PostStore interface {
	PutPost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, postID string) (post.Post, error)
	TogglePostApproval(ctx context.Context, postID string) (post.Post, error)
	DeletePost(ctx context.Context, postID string) error
	ListPosts(ctx context.Context) ([]post.Post, error)
	IncrementReaction(ctx context.Context, postID string, kind string) (map[string]int64, error)
}

// SessionStore persists issued session tokens.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// CredentialStore persists credential hashes separately from profile data.
// Hashes never travel with account records.
type CredentialStore interface {
	PutCredential(ctx context.Context, accountID string, credentialHash string) error
	GetCredential(ctx context.Context, accountID string) (string, error)
}

// Store aggregates every persistence contract the feed service consumes.
type Store interface {
	AccountStore
	PostStore
	SessionStore
	CredentialStore
}
