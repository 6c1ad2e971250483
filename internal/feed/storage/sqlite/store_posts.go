package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aurasocial/aura/internal/feed/post"
	"github.com/aurasocial/aura/internal/feed/storage"
)

// PutPost inserts one post record and assigns its insertion sequence.
func (s *Store) PutPost(ctx context.Context, p post.Post) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	if err := s.ensureDB(); err != nil {
		return post.Post{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return post.Post{}, fmt.Errorf("post id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO posts (id, account_id, content, created_at, approved)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID,
		p.AccountID,
		p.Content,
		toMillis(p.CreatedAt),
		boolToInt(p.Approved),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return post.Post{}, storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return post.Post{}, storage.ErrNotFound
		}
		return post.Post{}, fmt.Errorf("put post: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return post.Post{}, fmt.Errorf("put post: %w", err)
	}
	p.Seq = seq
	for kind, count := range p.Reactions {
		if _, err := s.sqlDB.ExecContext(
			ctx,
			`INSERT INTO post_reactions (post_id, kind, count) VALUES (?, ?, ?)`,
			p.ID, kind, count,
		); err != nil {
			return post.Post{}, fmt.Errorf("put post reactions: %w", err)
		}
	}
	if p.Reactions == nil {
		p.Reactions = make(map[string]int64)
	}
	return p, nil
}

// GetPost returns one post by ID with its reaction counters.
func (s *Store) GetPost(ctx context.Context, postID string) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	if err := s.ensureDB(); err != nil {
		return post.Post{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT seq, id, account_id, content, created_at, approved FROM posts WHERE id = ?`,
		postID,
	)
	p, err := scanPost(row, "get post")
	if err != nil {
		return post.Post{}, err
	}
	p.Reactions, err = s.reactionCounts(ctx, s.sqlDB, postID)
	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

// TogglePostApproval flips the approval state of one post in a single
// UPDATE, so concurrent toggles never lose a flip.
func (s *Store) TogglePostApproval(ctx context.Context, postID string) (post.Post, error) {
	if err := ctx.Err(); err != nil {
		return post.Post{}, err
	}
	if err := s.ensureDB(); err != nil {
		return post.Post{}, err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE posts SET approved = 1 - approved WHERE id = ?`,
		postID,
	)
	if err != nil {
		return post.Post{}, fmt.Errorf("toggle post approval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return post.Post{}, fmt.Errorf("toggle post approval: %w", err)
	}
	if affected == 0 {
		return post.Post{}, storage.ErrNotFound
	}
	return s.GetPost(ctx, postID)
}

// DeletePost removes one post permanently; its reaction rows cascade.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPosts returns all posts in insertion order with reaction counters.
func (s *Store) ListPosts(ctx context.Context) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, id, account_id, content, created_at, approved FROM posts ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []post.Post
	for rows.Next() {
		p, err := scanPost(rows, "list posts")
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	counts, err := s.allReactionCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if postCounts, ok := counts[posts[i].ID]; ok {
			posts[i].Reactions = postCounts
		} else {
			posts[i].Reactions = make(map[string]int64)
		}
	}
	return posts, nil
}

// IncrementReaction adds one to a reaction counter in a single upsert, so
// concurrent increments to the same post serialize inside SQLite and are
// never lost.
func (s *Store) IncrementReaction(ctx context.Context, postID string, kind string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO post_reactions (post_id, kind, count) VALUES (?, ?, 1)
		 ON CONFLICT (post_id, kind) DO UPDATE SET count = count + 1`,
		postID,
		kind,
	); err != nil {
		if isForeignKeyViolation(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("increment reaction: %w", err)
	}

	return s.reactionCounts(ctx, s.sqlDB, postID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) reactionCounts(ctx context.Context, q querier, postID string) (map[string]int64, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT kind, count FROM post_reactions WHERE post_id = ?`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("load reaction counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("load reaction counts: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load reaction counts: %w", err)
	}
	return counts, nil
}

func (s *Store) allReactionCounts(ctx context.Context) (map[string]map[string]int64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT post_id, kind, count FROM post_reactions`)
	if err != nil {
		return nil, fmt.Errorf("load reaction counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int64)
	for rows.Next() {
		var postID, kind string
		var count int64
		if err := rows.Scan(&postID, &kind, &count); err != nil {
			return nil, fmt.Errorf("load reaction counts: %w", err)
		}
		if counts[postID] == nil {
			counts[postID] = make(map[string]int64)
		}
		counts[postID][kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load reaction counts: %w", err)
	}
	return counts, nil
}

func scanPost(row rowScanner, op string) (post.Post, error) {
	var p post.Post
	var createdAt int64
	var approved int
	err := row.Scan(
		&p.Seq,
		&p.ID,
		&p.AccountID,
		&p.Content,
		&createdAt,
		&approved,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return post.Post{}, storage.ErrNotFound
		}
		return post.Post{}, fmt.Errorf("%s: %w", op, err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.Approved = approved != 0
	return p, nil
}
