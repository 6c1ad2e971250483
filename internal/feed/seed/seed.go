// Package seed provisions sample accounts and posts for fresh deployments.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage"
	"github.com/aurasocial/aura/internal/platform/id"
)

// ErrMissingAdminPassword indicates seeding was requested without an
// admin credential configured.
var ErrMissingAdminPassword = errors.New("seeding requires an admin password")

type memberSpec struct {
	username    string
	email       string
	displayName string
	bio         string
	avatar      string
	role        account.Role
}

type postSpec struct {
	author    string
	content   string
	reactions map[string]int64
}

var sampleMembers = []memberSpec{
	{
		username:    "admin",
		email:       "admin@aura.social",
		displayName: "Aura Administrator",
		bio:         "Platform Administrator",
		avatar:      "👑",
		role:        account.RoleAdmin,
	},
	{
		username:    "johnkravin",
		email:       "john@aura.social",
		displayName: "John Kravin",
		bio:         "Building the future of social media 🚀",
		avatar:      "👨‍💻",
		role:        account.RoleRegular,
	},
	{
		username:    "auratech",
		email:       "tech@aura.social",
		displayName: "Aura Team",
		bio:         "Creating intelligent social experiences",
		avatar:      "🤖",
		role:        account.RoleRegular,
	},
}

var samplePosts = []postSpec{
	{
		author:    "johnkravin",
		content:   "Building the future of social media with Aura! 🚀\n\nThis platform will change how we connect online.",
		reactions: map[string]int64{"like": 5, "love": 2, "insightful": 3},
	},
	{
		author:    "auratech",
		content:   "Aura Features Coming Soon:\n• Focus Flow feeds\n• Smart Channels\n• Living Profiles\n• Context-aware AI\n• Ephemeral Spaces",
		reactions: map[string]int64{"like": 8, "excited": 5, "curious": 4},
	},
}

// Apply provisions the sample admin, members, and approved posts. It is
// a no-op when any account already exists. Only the admin account gets
// a credential; adminPassword must be non-empty.
func Apply(ctx context.Context, store storage.Store, adminPassword string, clock func() time.Time) error {
	if adminPassword == "" {
		return ErrMissingAdminPassword
	}
	if clock == nil {
		clock = time.Now
	}

	existing, err := store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	accountIDs := make(map[string]string, len(sampleMembers))
	now := clock().UTC()
	for i, member := range sampleMembers {
		acct, err := account.New(account.CreateInput{
			Username:    member.username,
			Email:       member.email,
			DisplayName: member.displayName,
			Role:        member.role,
		}, func() time.Time { return now.Add(time.Duration(i) * time.Second) }, id.NewID)
		if err != nil {
			return fmt.Errorf("create sample account %s: %w", member.username, err)
		}
		acct.Bio = member.bio
		acct.Avatar = member.avatar

		if err := store.PutAccount(ctx, acct); err != nil {
			return fmt.Errorf("put sample account %s: %w", member.username, err)
		}
		accountIDs[member.username] = acct.ID

		if member.role == account.RoleAdmin {
			hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash admin credential: %w", err)
			}
			if err := store.PutCredential(ctx, acct.ID, string(hash)); err != nil {
				return fmt.Errorf("put admin credential: %w", err)
			}
		}
	}

	for i, sample := range samplePosts {
		created, err := post.New(post.CreateInput{
			AccountID: accountIDs[sample.author],
			Content:   sample.content,
			Approved:  true,
		}, func() time.Time { return now.Add(time.Duration(i) * time.Minute) }, id.NewID)
		if err != nil {
			return fmt.Errorf("create sample post: %w", err)
		}
		created.Reactions = make(map[string]int64, len(sample.reactions))
		for kind, count := range sample.reactions {
			created.Reactions[kind] = count
		}
		if _, err := store.PutPost(ctx, created); err != nil {
			return fmt.Errorf("put sample post: %w", err)
		}
	}
	return nil
}
