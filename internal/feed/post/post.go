// Package post provides the content item entity of the feed.
package post

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aurasocial/aura/internal/platform/errors"
	"github.com/aurasocial/aura/internal/platform/id"
)

// ErrEmptyContent indicates a post with a blank text payload.
var ErrEmptyContent = apperrors.New(apperrors.CodePostEmptyContent, "post content is required")

// Post represents one content item authored by an account.
//
// AccountID is a non-owning reference: many posts point at one account,
// and the account record does not embed its posts. Author display fields
// are never stored here; the composer resolves them at read time.
type Post struct {
	ID        string
	AccountID string
	Content   string
	CreatedAt time.Time
	Approved  bool
	Reactions map[string]int64

	// Seq is the store-assigned insertion sequence. It only breaks
	// CreatedAt ties when ordering the feed.
	Seq int64
}

// CloneReactions returns a defensive copy of the reaction counter map.
func (p Post) CloneReactions() map[string]int64 {
	counts := make(map[string]int64, len(p.Reactions))
	for kind, count := range p.Reactions {
		counts[kind] = count
	}
	return counts
}

// CreateInput describes the data needed to create a post.
type CreateInput struct {
	AccountID string
	Content   string
	Approved  bool
}

// New creates a fully-initialized post. No partially-constructed post is
// ever observable: identity, timestamps, approval state, and the counter
// map are all assigned here.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Post, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" {
		return Post{}, apperrors.New(apperrors.CodeInvalidInput, "author account id is required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Post{}, ErrEmptyContent
	}

	postID, err := idGenerator()
	if err != nil {
		return Post{}, fmt.Errorf("generate post id: %w", err)
	}

	return Post{
		ID:        postID,
		AccountID: accountID,
		Content:   content,
		CreatedAt: now().UTC(),
		Approved:  input.Approved,
		Reactions: make(map[string]int64),
	}, nil
}
