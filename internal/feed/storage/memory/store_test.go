package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage"
)

func TestPutAccountEnforcesUniqueness(t *testing.T) {
	t.Parallel()

	store := New()
	acct := account.Account{ID: "acct-1", Username: "alice", Active: true}
	if err := store.PutAccount(context.Background(), acct); err != nil {
		t.Fatalf("put account: %v", err)
	}

	duplicate := account.Account{ID: "acct-2", Username: "alice"}
	if err := store.PutAccount(context.Background(), duplicate); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetAccountByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != "acct-1" {
		t.Fatalf("expected acct-1, got %q", got.ID)
	}
}

func TestUpdateAccountKeepsUsername(t *testing.T) {
	t.Parallel()

	store := New()
	if err := store.PutAccount(context.Background(), account.Account{ID: "acct-1", Username: "alice", Active: true}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	updated := account.Account{ID: "acct-1", Username: "renamed", DisplayName: "Alice", Active: false}
	if err := store.UpdateAccount(context.Background(), updated); err != nil {
		t.Fatalf("update account: %v", err)
	}

	got, err := store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("expected immutable username, got %q", got.Username)
	}
	if got.Active {
		t.Fatal("expected active flag to be updated")
	}

	if err := store.UpdateAccount(context.Background(), account.Account{ID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	t.Parallel()

	store := New()
	created, err := store.PutPost(context.Background(), post.Post{ID: "post-1", AccountID: "acct-1", Content: "hello", Reactions: map[string]int64{}})
	if err != nil {
		t.Fatalf("put post: %v", err)
	}
	if created.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", created.Seq)
	}
	second, err := store.PutPost(context.Background(), post.Post{ID: "post-2", AccountID: "acct-1", Content: "again"})
	if err != nil {
		t.Fatalf("put post: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", second.Seq)
	}

	listed, err := store.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "post-1" || listed[1].ID != "post-2" {
		t.Fatalf("expected insertion order, got %v", listed)
	}

	toggled, err := store.TogglePostApproval(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("toggle approval: %v", err)
	}
	if !toggled.Approved {
		t.Fatal("expected approved post")
	}

	if err := store.DeletePost(context.Background(), "post-1"); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if err := store.DeletePost(context.Background(), "post-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
	if _, err := store.GetPost(context.Background(), "post-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfileLeavesRoleAndActive(t *testing.T) {
	t.Parallel()

	store := New()
	if err := store.PutAccount(context.Background(), account.Account{ID: "acct-1", Username: "alice", Role: account.RoleAdmin, Active: true}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	updated, err := store.UpdateProfile(context.Background(), "acct-1", "Alice K", "🌟", "hello")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != "Alice K" || updated.Avatar != "🌟" || updated.Bio != "hello" {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if updated.Role != account.RoleAdmin || !updated.Active {
		t.Fatalf("expected role and active untouched, got %+v", updated)
	}

	if _, err := store.UpdateProfile(context.Background(), "missing", "x", "y", "z"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleAccountActiveIsAtomic(t *testing.T) {
	t.Parallel()

	store := New()
	if err := store.PutAccount(context.Background(), account.Account{ID: "acct-1", Username: "alice", Active: true}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	// An even number of toggles must restore the original flag even
	// when they race.
	const toggles = 20
	var wg sync.WaitGroup
	wg.Add(toggles)
	for i := 0; i < toggles; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.ToggleAccountActive(context.Background(), "alice"); err != nil {
				t.Errorf("toggle account active: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.Active {
		t.Fatal("expected active restored after an even number of toggles")
	}

	if _, err := store.ToggleAccountActive(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAccountRemovesCredential(t *testing.T) {
	t.Parallel()

	store := New()
	if err := store.PutAccount(context.Background(), account.Account{ID: "acct-1", Username: "alice", Active: true}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := store.PutCredential(context.Background(), "acct-1", "hash"); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	if err := store.DeleteAccount(context.Background(), "acct-1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := store.GetAccountByUsername(context.Background(), "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetCredential(context.Background(), "acct-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected credential removed, got %v", err)
	}
	if err := store.DeleteAccount(context.Background(), "acct-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestTogglePostApprovalIsAtomic(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutPost(context.Background(), post.Post{ID: "post-1", AccountID: "acct-1", Content: "hello"}); err != nil {
		t.Fatalf("put post: %v", err)
	}

	const toggles = 20
	var wg sync.WaitGroup
	wg.Add(toggles)
	for i := 0; i < toggles; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.TogglePostApproval(context.Background(), "post-1"); err != nil {
				t.Errorf("toggle approval: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Approved {
		t.Fatal("expected approval restored after an even number of toggles")
	}
}

func TestIncrementReactionIsAtomic(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutPost(context.Background(), post.Post{ID: "post-1", AccountID: "acct-1", Content: "hello", Reactions: map[string]int64{"like": 3}}); err != nil {
		t.Fatalf("put post: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.IncrementReaction(context.Background(), "post-1", "like"); err != nil {
				t.Errorf("increment reaction: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Reactions["like"] != 3+workers {
		t.Fatalf("expected %d likes, got %d", 3+workers, got.Reactions["like"])
	}
}

func TestIncrementReactionCreatesKind(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutPost(context.Background(), post.Post{ID: "post-1", AccountID: "acct-1", Content: "hello"}); err != nil {
		t.Fatalf("put post: %v", err)
	}
	counts, err := store.IncrementReaction(context.Background(), "post-1", "wow")
	if err != nil {
		t.Fatalf("increment reaction: %v", err)
	}
	if counts["wow"] != 1 {
		t.Fatalf("expected wow count 1, got %d", counts["wow"])
	}
	if _, err := store.IncrementReaction(context.Background(), "missing", "wow"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnedPostsDoNotAliasStoreState(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutPost(context.Background(), post.Post{ID: "post-1", AccountID: "acct-1", Content: "hello", Reactions: map[string]int64{"like": 1}}); err != nil {
		t.Fatalf("put post: %v", err)
	}
	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	got.Reactions["like"] = 99

	fresh, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if fresh.Reactions["like"] != 1 {
		t.Fatalf("expected caller mutation not to leak, got %d", fresh.Reactions["like"])
	}
}

func TestSessionAndCredentialRoundTrip(t *testing.T) {
	t.Parallel()

	store := New()
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	session := storage.Session{Token: "tok-1", AccountID: "acct-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.PutSession(context.Background(), session); err != nil {
		t.Fatalf("put session: %v", err)
	}
	got, err := store.GetSession(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.AccountID != "acct-1" {
		t.Fatalf("expected acct-1, got %q", got.AccountID)
	}
	if err := store.DeleteSession(context.Background(), "tok-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.GetSession(context.Background(), "tok-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.PutCredential(context.Background(), "acct-1", "hash"); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	hash, err := store.GetCredential(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if hash != "hash" {
		t.Fatalf("expected stored hash, got %q", hash)
	}
	if _, err := store.GetCredential(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
