package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/storage/memory"
)

func TestApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	clock := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	if err := Apply(ctx, store, "sample admin pw", clock); err != nil {
		t.Fatalf("apply: %v", err)
	}

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 sample accounts, got %d", len(accounts))
	}

	admin, err := store.GetAccountByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if !admin.IsAdmin() || !admin.Active || admin.Avatar != "👑" {
		t.Fatalf("unexpected admin account %+v", admin)
	}
	hash, err := store.GetCredential(ctx, admin.ID)
	if err != nil {
		t.Fatalf("get admin credential: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("sample admin pw")); err != nil {
		t.Fatalf("expected hash of configured password: %v", err)
	}

	member, err := store.GetAccountByUsername(ctx, "johnkravin")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.Role != account.RoleRegular || member.Bio == "" {
		t.Fatalf("unexpected member account %+v", member)
	}
	// Sample members have no credential; only the admin can log in.
	if _, err := store.GetCredential(ctx, member.ID); err == nil {
		t.Fatal("expected member without credential")
	}

	posts, err := store.ListPosts(ctx)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 sample posts, got %d", len(posts))
	}
	for _, p := range posts {
		if !p.Approved {
			t.Fatalf("expected approved sample post, got %+v", p)
		}
		if len(p.Reactions) == 0 {
			t.Fatalf("expected preloaded reactions, got %+v", p)
		}
	}
}

func TestApplySkipsExistingData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	if err := store.PutAccount(ctx, account.Account{ID: "acct-1", Username: "existing", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	if err := Apply(ctx, store, "sample admin pw", nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected seeding skipped, got %d accounts", len(accounts))
	}
}

func TestApplyRequiresAdminPassword(t *testing.T) {
	t.Parallel()

	if err := Apply(context.Background(), memory.New(), "", nil); !errors.Is(err, ErrMissingAdminPassword) {
		t.Fatalf("expected ErrMissingAdminPassword, got %v", err)
	}
}
