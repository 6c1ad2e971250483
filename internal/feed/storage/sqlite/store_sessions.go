package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aurasocial/aura/internal/feed/storage"
)

// PutSession inserts one session record.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("session token is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (token, account_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		session.Token,
		session.AccountID,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns one session by token.
func (s *Store) GetSession(ctx context.Context, token string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	if err := s.ensureDB(); err != nil {
		return storage.Session{}, err
	}

	var session storage.Session
	var createdAt, expiresAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT token, account_id, created_at, expires_at FROM sessions WHERE token = ?`,
		token,
	).Scan(&session.Token, &session.AccountID, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// DeleteSession removes one session by token. Unknown tokens are a no-op.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PutCredential stores the credential hash for one account.
func (s *Store) PutCredential(ctx context.Context, accountID string, credentialHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO account_credentials (account_id, credential_hash)
		 VALUES (?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET credential_hash = excluded.credential_hash`,
		accountID,
		credentialHash,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential returns the credential hash for one account.
func (s *Store) GetCredential(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ensureDB(); err != nil {
		return "", err
	}

	var hash string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT credential_hash FROM account_credentials WHERE account_id = ?`,
		accountID,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get credential: %w", err)
	}
	return hash, nil
}
