package reaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage/memory"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	engine := moderation.NewEngine(store, store, moderation.PolicyReviewRequired)
	return NewLedger(store, engine), store
}

func seedPost(t *testing.T, store *memory.Store, id string, approved bool) post.Post {
	t.Helper()
	ctx := context.Background()
	author := account.Account{ID: "author-1", Username: "alice", Role: account.RoleRegular, Active: true}
	if _, err := store.GetAccount(ctx, author.ID); err != nil {
		if err := store.PutAccount(ctx, author); err != nil {
			t.Fatalf("put account: %v", err)
		}
	}
	created, err := store.PutPost(ctx, post.Post{ID: id, AccountID: author.ID, Content: "hello", CreatedAt: time.Now(), Approved: approved})
	if err != nil {
		t.Fatalf("put post: %v", err)
	}
	return created
}

func TestReact(t *testing.T) {
	t.Parallel()

	ledger, store := newTestLedger(t)
	seedPost(t, store, "post-1", true)
	viewer := &account.Account{ID: "viewer-1", Username: "bob", Role: account.RoleRegular, Active: true}

	counts, err := ledger.React(context.Background(), "post-1", "like", viewer)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if counts["like"] != 1 {
		t.Fatalf("expected like count 1, got %d", counts["like"])
	}

	counts, err = ledger.React(context.Background(), "post-1", " like ", viewer)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if counts["like"] != 2 {
		t.Fatalf("expected like count 2, got %d", counts["like"])
	}

	counts, err = ledger.React(context.Background(), "post-1", "spark", viewer)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if counts["spark"] != 1 || counts["like"] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestReactRejections(t *testing.T) {
	t.Parallel()

	ledger, store := newTestLedger(t)
	pending := seedPost(t, store, "post-1", false)
	author := &account.Account{ID: pending.AccountID, Username: "alice", Role: account.RoleRegular, Active: true}
	viewer := &account.Account{ID: "viewer-1", Username: "bob", Role: account.RoleRegular, Active: true}
	admin := &account.Account{ID: "admin-1", Username: "root", Role: account.RoleAdmin, Active: true}

	if _, err := ledger.React(context.Background(), "post-1", "like", nil); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if _, err := ledger.React(context.Background(), "post-1", "   ", viewer); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := ledger.React(context.Background(), "missing", "like", viewer); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := ledger.React(context.Background(), "post-1", "like", viewer); !errors.Is(err, ErrNotVisible) {
		t.Fatalf("expected ErrNotVisible for pending post, got %v", err)
	}
	// Pending posts stay hidden from their own author.
	if _, err := ledger.React(context.Background(), "post-1", "like", author); !errors.Is(err, ErrNotVisible) {
		t.Fatalf("expected ErrNotVisible for author, got %v", err)
	}

	counts, err := ledger.React(context.Background(), "post-1", "like", admin)
	if err != nil {
		t.Fatalf("react as admin: %v", err)
	}
	if counts["like"] != 1 {
		t.Fatalf("expected like count 1, got %d", counts["like"])
	}

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Reactions["like"] != 1 {
		t.Fatalf("expected only the admin react recorded, got %v", got.Reactions)
	}
}

func TestReactConcurrent(t *testing.T) {
	t.Parallel()

	ledger, store := newTestLedger(t)
	seedPost(t, store, "post-1", true)
	viewer := &account.Account{ID: "viewer-1", Username: "bob", Role: account.RoleRegular, Active: true}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := ledger.React(context.Background(), "post-1", "like", viewer); err != nil {
				t.Errorf("react: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Reactions["like"] != workers {
		t.Fatalf("expected %d likes, got %d", workers, got.Reactions["like"])
	}
}
