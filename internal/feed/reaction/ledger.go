// Package reaction maintains per-post reaction counters.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/storage"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
)

var (
	// ErrNotLoggedIn indicates an anonymous caller tried to react.
	ErrNotLoggedIn = apperrors.New(apperrors.CodeNotLoggedIn, "reacting requires a logged-in account")
	// ErrInvalidKind indicates a blank reaction kind.
	ErrInvalidKind = apperrors.New(apperrors.CodeReactionEmptyKind, "reaction kind is required")
	// ErrNotVisible indicates the target post is hidden from the viewer.
	ErrNotVisible = apperrors.New(apperrors.CodeNotVisible, "post is not visible to the viewer")
)

// Ledger records reactions against posts the viewer can see.
type Ledger struct {
	posts      storage.PostStore
	moderation *moderation.Engine
}

// NewLedger creates a reaction ledger.
func NewLedger(posts storage.PostStore, engine *moderation.Engine) *Ledger {
	return &Ledger{
		posts:      posts,
		moderation: engine,
	}
}

// React increments the counter for one reaction kind on one post and
// returns the full counter map after the increment. An absent kind is
// created at one. Failed calls mutate nothing.
//
// The store applies the increment atomically per post, so concurrent
// successful calls for one kind raise the count by exactly the number
// of calls.
func (l *Ledger) React(ctx context.Context, postID, kind string, viewer *account.Account) (map[string]int64, error) {
	if viewer == nil {
		return nil, ErrNotLoggedIn
	}

	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, ErrInvalidKind
	}

	target, err := l.posts.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("post %s not found", postID), err)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	if !l.moderation.IsVisible(target, viewer) {
		return nil, ErrNotVisible
	}

	counts, err := l.posts.IncrementReaction(ctx, postID, kind)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("post %s not found", postID), err)
		}
		return nil, fmt.Errorf("increment reaction: %w", err)
	}
	return counts, nil
}
