// Package memory provides an in-process feed store guarded by a mutex.
//
// Every read-modify-write runs under the store lock, which serializes
// concurrent mutations of the same entity. Records are copied on the way
// in and out so callers can never alias store state.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage"
)

// Store keeps feed service state in process-local maps.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]account.Account
	byUsername  map[string]string
	posts       map[string]post.Post
	postOrder   []string
	nextSeq     int64
	sessions    map[string]storage.Session
	credentials map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:    make(map[string]account.Account),
		byUsername:  make(map[string]string),
		posts:       make(map[string]post.Post),
		sessions:    make(map[string]storage.Session),
		credentials: make(map[string]string),
	}
}

// PutAccount inserts one account record.
func (s *Store) PutAccount(ctx context.Context, acct account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[acct.Username]; exists {
		return storage.ErrAlreadyExists
	}
	if _, exists := s.accounts[acct.ID]; exists {
		return storage.ErrAlreadyExists
	}
	s.accounts[acct.ID] = acct
	s.byUsername[acct.Username] = acct.ID
	return nil
}

// GetAccount returns one account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

// GetAccountByUsername returns one account by canonical username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.byUsername[username]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return s.accounts[accountID], nil
}

// UpdateAccount replaces one existing account record.
func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[acct.ID]
	if !ok {
		return storage.ErrNotFound
	}
	// Username is immutable after creation; the index never moves.
	acct.Username = existing.Username
	s.accounts[acct.ID] = acct
	return nil
}

// UpdateProfile sets the display name, avatar, and bio of one account.
// Role and active are never touched.
func (s *Store) UpdateProfile(ctx context.Context, accountID, displayName, avatar, bio string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	acct.DisplayName = displayName
	acct.Avatar = avatar
	acct.Bio = bio
	s.accounts[accountID] = acct
	return acct, nil
}

// ToggleAccountActive flips the active flag of the account with the
// given canonical username under the store lock.
func (s *Store) ToggleAccountActive(ctx context.Context, username string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.byUsername[username]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	acct := s.accounts[accountID]
	acct.Active = !acct.Active
	s.accounts[accountID] = acct
	return acct, nil
}

// DeleteAccount removes one account and its credential.
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.accounts, accountID)
	delete(s.byUsername, acct.Username)
	delete(s.credentials, accountID)
	return nil
}

// ListAccounts returns all accounts in creation order.
func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		accounts = append(accounts, acct)
	}
	sortAccountsByJoin(accounts)
	return accounts, nil
}

// PutPost inserts one post record and assigns its insertion sequence.
func (s *Store) PutPost(ctx context.Context, p post.Post) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[p.ID]; exists {
		return post.Post{}, storage.ErrAlreadyExists
	}
	s.nextSeq++
	p.Seq = s.nextSeq
	p.Reactions = clone(p.Reactions)
	s.posts[p.ID] = p
	s.postOrder = append(s.postOrder, p.ID)
	return copyPost(p), nil
}

// GetPost returns one post by ID.
func (s *Store) GetPost(ctx context.Context, postID string) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return post.Post{}, storage.ErrNotFound
	}
	return copyPost(p), nil
}

// TogglePostApproval flips the approval state of one post under the
// store lock, so concurrent toggles never lose a flip.
func (s *Store) TogglePostApproval(ctx context.Context, postID string) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return post.Post{}, storage.ErrNotFound
	}
	p.Approved = !p.Approved
	s.posts[postID] = p
	return copyPost(p), nil
}

// DeletePost removes one post permanently.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.posts, postID)
	for i, id := range s.postOrder {
		if id == postID {
			s.postOrder = append(s.postOrder[:i], s.postOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ListPosts returns all posts in insertion order.
func (s *Store) ListPosts(ctx context.Context) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]post.Post, 0, len(s.postOrder))
	for _, id := range s.postOrder {
		posts = append(posts, copyPost(s.posts[id]))
	}
	return posts, nil
}

// IncrementReaction adds one to a reaction counter under the store lock.
func (s *Store) IncrementReaction(ctx context.Context, postID string, kind string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if p.Reactions == nil {
		p.Reactions = make(map[string]int64)
	}
	p.Reactions[kind]++
	s.posts[postID] = p
	return clone(p.Reactions), nil
}

// PutSession inserts one session record.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = session
	return nil
}

// GetSession returns one session by token.
func (s *Store) GetSession(ctx context.Context, token string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return session, nil
}

// DeleteSession removes one session by token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// PutCredential stores the credential hash for one account.
func (s *Store) PutCredential(ctx context.Context, accountID string, credentialHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[accountID] = credentialHash
	return nil
}

// GetCredential returns the credential hash for one account.
func (s *Store) GetCredential(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.credentials[accountID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return hash, nil
}

func copyPost(p post.Post) post.Post {
	p.Reactions = clone(p.Reactions)
	return p
}

func clone(counts map[string]int64) map[string]int64 {
	copied := make(map[string]int64, len(counts))
	for kind, count := range counts {
		copied[kind] = count
	}
	return copied
}

func sortAccountsByJoin(accounts []account.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].JoinedAt.Equal(accounts[j].JoinedAt) {
			return accounts[i].Username < accounts[j].Username
		}
		return accounts[i].JoinedAt.Before(accounts[j].JoinedAt)
	})
}

var _ storage.Store = (*Store)(nil)
