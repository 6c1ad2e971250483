package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/storage"
)

const accountColumns = "id, username, email, display_name, avatar, bio, role, active, joined_at"

// PutAccount inserts one account record.
func (s *Store) PutAccount(ctx context.Context, acct account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	if strings.TrimSpace(acct.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(acct.Username) == "" {
		return fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID,
		acct.Username,
		acct.Email,
		acct.DisplayName,
		acct.Avatar,
		acct.Bio,
		string(acct.Role),
		boolToInt(acct.Active),
		toMillis(acct.JoinedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// GetAccount returns one account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if err := s.ensureDB(); err != nil {
		return account.Account{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`,
		accountID,
	)
	return scanAccount(row, "get account")
}

// GetAccountByUsername returns one account by canonical username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if err := s.ensureDB(); err != nil {
		return account.Account{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`,
		username,
	)
	return scanAccount(row, "get account by username")
}

// UpdateAccount replaces the mutable fields of one account record.
//
// Username and the join timestamp are immutable and never updated.
func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE accounts
		    SET email = ?, display_name = ?, avatar = ?, bio = ?, role = ?, active = ?
		  WHERE id = ?`,
		acct.Email,
		acct.DisplayName,
		acct.Avatar,
		acct.Bio,
		string(acct.Role),
		boolToInt(acct.Active),
		acct.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateProfile sets the display name, avatar, and bio of one account.
// Role and active are never touched.
func (s *Store) UpdateProfile(ctx context.Context, accountID, displayName, avatar, bio string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if err := s.ensureDB(); err != nil {
		return account.Account{}, err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE accounts SET display_name = ?, avatar = ?, bio = ? WHERE id = ?`,
		displayName,
		avatar,
		bio,
		accountID,
	)
	if err != nil {
		return account.Account{}, fmt.Errorf("update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return account.Account{}, fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return account.Account{}, storage.ErrNotFound
	}
	return s.GetAccount(ctx, accountID)
}

// ToggleAccountActive flips the active flag of the account with the
// given canonical username in a single UPDATE, so concurrent toggles
// never lose a flip.
func (s *Store) ToggleAccountActive(ctx context.Context, username string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if err := s.ensureDB(); err != nil {
		return account.Account{}, err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE accounts SET active = 1 - active WHERE username = ?`,
		username,
	)
	if err != nil {
		return account.Account{}, fmt.Errorf("toggle account active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return account.Account{}, fmt.Errorf("toggle account active: %w", err)
	}
	if affected == 0 {
		return account.Account{}, storage.ErrNotFound
	}
	return s.GetAccountByUsername(ctx, username)
}

// DeleteAccount removes one account; its credential row cascades.
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAccounts returns all accounts ordered by join time.
func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY joined_at ASC, username ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []account.Account
	for rows.Next() {
		acct, err := scanAccount(rows, "list accounts")
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, op string) (account.Account, error) {
	var acct account.Account
	var role string
	var active int
	var joinedAt int64
	err := row.Scan(
		&acct.ID,
		&acct.Username,
		&acct.Email,
		&acct.DisplayName,
		&acct.Avatar,
		&acct.Bio,
		&role,
		&active,
		&joinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, storage.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	acct.Role = account.Role(role)
	acct.Active = active != 0
	acct.JoinedAt = fromMillis(joinedAt)
	return acct, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
