// Package app exposes the feed service operation surface and owns the
// HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/compose"
	"github.com/aurasocial/aura/internal/feed/events"
	"github.com/aurasocial/aura/internal/feed/identity"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/reaction"
	"github.com/aurasocial/aura/internal/feed/storage"
	apperrors "github.com/aurasocial/aura/internal/platform/errors"
)

// ErrNotLoggedIn indicates an operation that requires a viewer was
// called anonymously.
var ErrNotLoggedIn = apperrors.New(apperrors.CodeNotLoggedIn, "operation requires a logged-in account")

func tracer() trace.Tracer {
	return otel.Tracer("aura.feed.app")
}

// Service is the feed engine's exposed operation surface. Every method
// returns a value or a coded error; no method prints or logs.
type Service struct {
	store      storage.Store
	identity   *identity.Service
	moderation *moderation.Engine
	ledger     *reaction.Ledger
	composer   *compose.Composer
	hub        *events.Hub
	clock      func() time.Time
	newID      func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides the id generator used for posts and
// accounts.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService assembles the engine components over one store.
func NewService(store storage.Store, policy moderation.ApprovalPolicy, opts ...Option) *Service {
	service := &Service{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	service.moderation = moderation.NewEngine(store, store, policy)
	service.ledger = reaction.NewLedger(store, service.moderation)
	service.composer = compose.NewComposer(service.moderation)
	service.hub = events.NewHub(service.moderation.IsVisible)

	identityOpts := []identity.Option{identity.WithClock(service.clock)}
	if service.newID != nil {
		identityOpts = append(identityOpts, identity.WithIDGenerator(service.newID))
	}
	service.identity = identity.NewService(store, identityOpts...)

	return service
}

// Hub returns the live event hub for transport subscriptions.
func (s *Service) Hub() *events.Hub {
	return s.hub
}

// Register creates an account and an initial session.
func (s *Service) Register(ctx context.Context, input identity.RegisterInput) (account.Account, string, error) {
	ctx, span := tracer().Start(ctx, "app.Register")
	defer span.End()

	input.Role = account.RoleRegular
	return s.identity.Register(ctx, input)
}

// Authenticate verifies credentials and issues a session token.
func (s *Service) Authenticate(ctx context.Context, username, credential string) (account.Account, string, error) {
	ctx, span := tracer().Start(ctx, "app.Authenticate")
	defer span.End()

	return s.identity.Authenticate(ctx, username, credential)
}

// Logout deletes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	ctx, span := tracer().Start(ctx, "app.Logout")
	defer span.End()

	return s.identity.Logout(ctx, token)
}

// UpdateProfile changes the viewer's display name, avatar, or bio.
// Edits apply retroactively to every composed post, because author
// fields are resolved at composition time.
func (s *Service) UpdateProfile(ctx context.Context, update identity.ProfileUpdate, viewer *account.Account) (account.Account, error) {
	ctx, span := tracer().Start(ctx, "app.UpdateProfile")
	defer span.End()

	if viewer == nil {
		return account.Account{}, ErrNotLoggedIn
	}
	if !viewer.Active {
		return account.Account{}, apperrors.New(apperrors.CodeForbidden, "account is suspended")
	}
	return s.identity.UpdateProfile(ctx, viewer.ID, update)
}

// CurrentAccount resolves the account behind a session token.
func (s *Service) CurrentAccount(ctx context.Context, token string) (account.Account, error) {
	ctx, span := tracer().Start(ctx, "app.CurrentAccount")
	defer span.End()

	return s.identity.Resolve(ctx, token)
}

// ListFeed composes the feed visible to viewer, newest first.
func (s *Service) ListFeed(ctx context.Context, viewer *account.Account) ([]compose.Entry, error) {
	ctx, span := tracer().Start(ctx, "app.ListFeed")
	defer span.End()

	posts, accounts, err := s.loadFeedRecords(ctx)
	if err != nil {
		return nil, err
	}
	return s.composer.Feed(posts, accounts, viewer), nil
}

// ListProfilePosts composes one member's visible posts, newest first,
// and returns the profile account alongside.
func (s *Service) ListProfilePosts(ctx context.Context, username string, viewer *account.Account) (account.Account, []compose.Entry, error) {
	ctx, span := tracer().Start(ctx, "app.ListProfilePosts")
	defer span.End()

	canonical, err := account.Canonicalize(username)
	if err != nil {
		return account.Account{}, nil, err
	}
	profile, err := s.store.GetAccountByUsername(ctx, canonical)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, nil, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("account %s not found", canonical), err)
		}
		return account.Account{}, nil, fmt.Errorf("get account: %w", err)
	}

	posts, accounts, err := s.loadFeedRecords(ctx)
	if err != nil {
		return account.Account{}, nil, err
	}
	return profile, s.composer.ProfilePosts(posts, accounts, profile.ID, viewer), nil
}

// CreatePost stores a new post by viewer. Initial approval follows the
// moderation policy; admin posts publish immediately.
func (s *Service) CreatePost(ctx context.Context, content string, viewer *account.Account) (post.Post, error) {
	ctx, span := tracer().Start(ctx, "app.CreatePost")
	defer span.End()

	if viewer == nil {
		return post.Post{}, ErrNotLoggedIn
	}
	if !viewer.Active {
		return post.Post{}, apperrors.New(apperrors.CodeForbidden, "account is suspended")
	}

	created, err := post.New(post.CreateInput{
		AccountID: viewer.ID,
		Content:   content,
		Approved:  s.moderation.DefaultApproval(*viewer),
	}, s.clock, s.newID)
	if err != nil {
		return post.Post{}, err
	}

	stored, err := s.store.PutPost(ctx, created)
	if err != nil {
		return post.Post{}, fmt.Errorf("put post: %w", err)
	}

	s.hub.Publish(events.Event{Kind: events.KindPostCreated, Post: stored})
	return stored, nil
}

// React increments one reaction counter and returns the updated map.
func (s *Service) React(ctx context.Context, postID, kind string, viewer *account.Account) (map[string]int64, error) {
	ctx, span := tracer().Start(ctx, "app.React")
	defer span.End()

	counts, err := s.ledger.React(ctx, postID, kind, viewer)
	if err != nil {
		return nil, err
	}

	if reacted, getErr := s.store.GetPost(ctx, postID); getErr == nil {
		s.hub.Publish(events.Event{Kind: events.KindPostReacted, Post: reacted, Reactions: counts})
	}
	return counts, nil
}

// TogglePostApproval flips a post's approval state.
func (s *Service) TogglePostApproval(ctx context.Context, postID string, caller *account.Account) (post.Post, error) {
	ctx, span := tracer().Start(ctx, "app.TogglePostApproval")
	defer span.End()

	return s.moderation.TogglePostApproval(ctx, postID, caller)
}

// DeletePost removes a post permanently.
func (s *Service) DeletePost(ctx context.Context, postID string, caller *account.Account) error {
	ctx, span := tracer().Start(ctx, "app.DeletePost")
	defer span.End()

	return s.moderation.DeletePost(ctx, postID, caller)
}

// ToggleAccountActive flips a member's active flag.
func (s *Service) ToggleAccountActive(ctx context.Context, username string, caller *account.Account) (account.Account, error) {
	ctx, span := tracer().Start(ctx, "app.ToggleAccountActive")
	defer span.End()

	return s.moderation.ToggleAccountActive(ctx, username, caller)
}

// Stats aggregates platform counters for admins.
func (s *Service) Stats(ctx context.Context, caller *account.Account) (moderation.Stats, error) {
	ctx, span := tracer().Start(ctx, "app.Stats")
	defer span.End()

	if err := s.moderation.AuthorizeAdmin(caller); err != nil {
		return moderation.Stats{}, err
	}

	posts, accounts, err := s.loadFeedRecords(ctx)
	if err != nil {
		return moderation.Stats{}, err
	}
	return moderation.ComputeStats(accounts, posts, s.clock()), nil
}

// ListAccounts returns every account, oldest join first. Admin only.
func (s *Service) ListAccounts(ctx context.Context, caller *account.Account) ([]account.Account, error) {
	ctx, span := tracer().Start(ctx, "app.ListAccounts")
	defer span.End()

	if err := s.moderation.AuthorizeAdmin(caller); err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListPostsIncludingPending composes every post, pending included,
// newest first. Admin only.
func (s *Service) ListPostsIncludingPending(ctx context.Context, caller *account.Account) ([]compose.Entry, error) {
	ctx, span := tracer().Start(ctx, "app.ListPostsIncludingPending")
	defer span.End()

	if err := s.moderation.AuthorizeAdmin(caller); err != nil {
		return nil, err
	}
	posts, accounts, err := s.loadFeedRecords(ctx)
	if err != nil {
		return nil, err
	}
	return s.composer.Feed(posts, accounts, caller), nil
}

func (s *Service) loadFeedRecords(ctx context.Context) ([]post.Post, []account.Account, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list posts: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}
	return posts, accounts, nil
}
