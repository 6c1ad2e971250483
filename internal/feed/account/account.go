// Package account provides member account identity and profile management.
package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/aurasocial/aura/internal/platform/errors"
	"github.com/aurasocial/aura/internal/platform/id"
)

var (
	// ErrEmptyUsername indicates a missing username.
	ErrEmptyUsername = apperrors.New(apperrors.CodeAccountEmptyUsername, "username is required")
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeAccountInvalidUsername, "username must start with a letter and contain 3-32 lowercase alphanumeric, dot, dash, or underscore characters")

	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9._-]{2,31}$`)
)

// DefaultAvatar is the placeholder glyph assigned to new accounts.
const DefaultAvatar = "👤"

// Role describes the privilege level of an account.
type Role string

const (
	// RoleRegular is the default member role.
	RoleRegular Role = "regular"
	// RoleAdmin grants moderation privileges.
	RoleAdmin Role = "admin"
)

// Account represents one member of the platform.
type Account struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	Avatar      string
	Bio         string
	Role        Role
	Active      bool
	JoinedAt    time.Time
}

// IsAdmin reports whether the account holds the admin role.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CreateInput describes the metadata needed to create an account.
type CreateInput struct {
	Username    string
	Email       string
	DisplayName string
	Role        Role
}

// Canonicalize normalizes a username to lowercase ASCII and validates policy.
//
// Usernames are unique case-insensitively: every lookup and every stored
// value goes through this same canonical form.
func Canonicalize(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyUsername
	}

	var builder strings.Builder
	builder.Grow(len(input))
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if ch > 0x7f {
			return "", ErrInvalidUsername
		}
		if ch >= 'A' && ch <= 'Z' {
			ch = ch - 'A' + 'a'
		}
		builder.WriteByte(ch)
	}

	canonical := builder.String()
	if !usernamePattern.MatchString(canonical) {
		return "", ErrInvalidUsername
	}
	return canonical, nil
}

// New creates a fully-initialized account from validated input.
//
// JoinedAt is fixed here and never changes afterwards; Active starts
// true and is flipped only through the moderation engine.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	username, err := Canonicalize(input.Username)
	if err != nil {
		return Account{}, err
	}

	role := input.Role
	if role == "" {
		role = RoleRegular
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	return Account{
		ID:          accountID,
		Username:    username,
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: displayName,
		Avatar:      DefaultAvatar,
		Role:        role,
		Active:      true,
		JoinedAt:    now().UTC(),
	}, nil
}
