// Package compose assembles viewer-specific feed projections.
package compose

import (
	"sort"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/post"
)

// Entry is one composed feed item. Author fields are resolved from the
// current account records at composition time, so profile edits apply
// retroactively to every post.
type Entry struct {
	Post           post.Post
	AuthorUsername string
	AuthorName     string
	AuthorAvatar   string
}

// Composer projects stored posts into ordered, visibility-filtered
// feeds. Projections are recomputed per call and never cached.
type Composer struct {
	moderation *moderation.Engine
}

// NewComposer creates a feed composer.
func NewComposer(engine *moderation.Engine) *Composer {
	return &Composer{moderation: engine}
}

// Feed returns the posts visible to viewer, newest first. Posts sharing
// a creation time keep their relative insertion order.
func (c *Composer) Feed(posts []post.Post, accounts []account.Account, viewer *account.Account) []Entry {
	return c.project(posts, accounts, viewer, nil)
}

// ProfilePosts returns the visible posts authored by one account,
// newest first.
func (c *Composer) ProfilePosts(posts []post.Post, accounts []account.Account, authorID string, viewer *account.Account) []Entry {
	return c.project(posts, accounts, viewer, func(p post.Post) bool {
		return p.AccountID == authorID
	})
}

func (c *Composer) project(posts []post.Post, accounts []account.Account, viewer *account.Account, keep func(post.Post) bool) []Entry {
	byID := make(map[string]account.Account, len(accounts))
	for _, acct := range accounts {
		byID[acct.ID] = acct
	}

	entries := make([]Entry, 0, len(posts))
	for _, p := range posts {
		if keep != nil && !keep(p) {
			continue
		}
		if !c.moderation.IsVisible(p, viewer) {
			continue
		}

		entry := Entry{Post: p}
		// Unresolvable authors compose with zero-value fields rather
		// than dropping the post.
		if author, ok := byID[p.AccountID]; ok {
			entry.AuthorUsername = author.Username
			entry.AuthorName = author.DisplayName
			entry.AuthorAvatar = author.Avatar
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Post, entries[j].Post
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return entries
}
