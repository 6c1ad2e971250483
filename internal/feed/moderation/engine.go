// Package moderation decides post visibility and executes admin actions.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
)

var (
	// ErrForbidden indicates the caller lacks moderation privileges.
	ErrForbidden = apperrors.New(apperrors.CodeForbidden, "admin privileges required")
	// ErrInvalidPolicy indicates an unrecognized approval policy name.
	ErrInvalidPolicy = apperrors.New(apperrors.CodeModerationInvalidPolicy, "approval policy must be review or auto")
)

// ApprovalPolicy controls whether member posts require review before
// they become visible.
type ApprovalPolicy string

const (
	// PolicyReviewRequired holds member posts for admin review.
	PolicyReviewRequired ApprovalPolicy = "review"
	// PolicyAutoApprove publishes every post immediately.
	PolicyAutoApprove ApprovalPolicy = "auto"
)

// ParsePolicy resolves a policy name from configuration. An empty name
// selects PolicyReviewRequired.
func ParsePolicy(name string) (ApprovalPolicy, error) {
	switch ApprovalPolicy(name) {
	case "":
		return PolicyReviewRequired, nil
	case PolicyReviewRequired:
		return PolicyReviewRequired, nil
	case PolicyAutoApprove:
		return PolicyAutoApprove, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// Engine applies the visibility model and executes admin operations.
type Engine struct {
	accounts storage.AccountStore
	posts    storage.PostStore
	policy   ApprovalPolicy
}

// NewEngine creates a moderation engine over the given stores.
func NewEngine(accounts storage.AccountStore, posts storage.PostStore, policy ApprovalPolicy) *Engine {
	if policy == "" {
		policy = PolicyReviewRequired
	}
	return &Engine{
		accounts: accounts,
		posts:    posts,
		policy:   policy,
	}
}

// Policy returns the configured approval policy.
func (e *Engine) Policy() ApprovalPolicy {
	return e.policy
}

// AuthorizeAdmin gates admin operations. Only active admin accounts
// pass; everyone else, including suspended admins, is rejected.
func (e *Engine) AuthorizeAdmin(caller *account.Account) error {
	if caller == nil || !caller.IsAdmin() || !caller.Active {
		return ErrForbidden
	}
	return nil
}

// IsVisible reports whether viewer may see p. Pending posts are visible
// to admins only; authors do not see their own pending posts.
func (e *Engine) IsVisible(p post.Post, viewer *account.Account) bool {
	if p.Approved {
		return true
	}
	return viewer != nil && viewer.IsAdmin()
}

// DefaultApproval resolves the initial approval state for a post by
// author. Admin posts bypass review under every policy.
func (e *Engine) DefaultApproval(author account.Account) bool {
	if author.IsAdmin() {
		return true
	}
	return e.policy == PolicyAutoApprove
}

// TogglePostApproval flips the approval state of one post and returns
// the updated record. The flip happens atomically in the store, so
// concurrent toggles never lose a flip and toggling twice always
// restores the original state.
func (e *Engine) TogglePostApproval(ctx context.Context, postID string, caller *account.Account) (post.Post, error) {
	if err := e.AuthorizeAdmin(caller); err != nil {
		return post.Post{}, err
	}

	updated, err := e.posts.TogglePostApproval(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return post.Post{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("post %s not found", postID), err)
		}
		return post.Post{}, fmt.Errorf("toggle post approval: %w", err)
	}
	return updated, nil
}

// DeletePost removes one post permanently. Deleting a missing post
// reports NotFound rather than succeeding silently.
func (e *Engine) DeletePost(ctx context.Context, postID string, caller *account.Account) error {
	if err := e.AuthorizeAdmin(caller); err != nil {
		return err
	}

	if err := e.posts.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("post %s not found", postID), err)
		}
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// ToggleAccountActive flips the active flag of the account identified
// by username and returns the updated record. The flip happens
// atomically in the store, so concurrent toggles never lose a flip.
func (e *Engine) ToggleAccountActive(ctx context.Context, username string, caller *account.Account) (account.Account, error) {
	if err := e.AuthorizeAdmin(caller); err != nil {
		return account.Account{}, err
	}

	canonical, err := account.Canonicalize(username)
	if err != nil {
		return account.Account{}, err
	}

	target, err := e.accounts.ToggleAccountActive(ctx, canonical)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("account %s not found", canonical), err)
		}
		return account.Account{}, fmt.Errorf("toggle account active: %w", err)
	}
	return target, nil
}

// Stats aggregates platform counters for the admin dashboard.
type Stats struct {
	TotalAccounts       int
	TotalPosts          int
	PendingPosts        int
	ActiveAccounts      int
	AccountsJoinedToday int
	PostsCreatedToday   int
}

// ComputeStats aggregates counters over the given records. The caller
// supplies today so the aggregation stays deterministic.
func ComputeStats(accounts []account.Account, posts []post.Post, today time.Time) Stats {
	stats := Stats{
		TotalAccounts: len(accounts),
		TotalPosts:    len(posts),
	}
	for _, acct := range accounts {
		if acct.Active {
			stats.ActiveAccounts++
		}
		if sameDay(acct.JoinedAt, today) {
			stats.AccountsJoinedToday++
		}
	}
	for _, p := range posts {
		if !p.Approved {
			stats.PendingPosts++
		}
		if sameDay(p.CreatedAt, today) {
			stats.PostsCreatedToday++
		}
	}
	return stats
}

func sameDay(t, today time.Time) bool {
	y1, m1, d1 := t.UTC().Date()
	y2, m2, d2 := today.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
