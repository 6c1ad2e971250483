// Package errors provides structured, coded error handling for the engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authentication and authorization errors
	CodeNotLoggedIn Code = "NOT_LOGGED_IN"
	CodeForbidden   Code = "FORBIDDEN"

	// Resource errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Validation errors
	CodeInvalidInput            Code = "INVALID_INPUT"
	CodeAccountEmptyUsername    Code = "ACCOUNT_EMPTY_USERNAME"
	CodeAccountInvalidUsername  Code = "ACCOUNT_INVALID_USERNAME"
	CodeAccountEmptyCredential  Code = "ACCOUNT_EMPTY_CREDENTIAL"
	CodePostEmptyContent        Code = "POST_EMPTY_CONTENT"
	CodeReactionEmptyKind       Code = "REACTION_EMPTY_KIND"
	CodeModerationInvalidPolicy Code = "MODERATION_INVALID_POLICY"

	// Visibility errors
	CodeNotVisible Code = "NOT_VISIBLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotLoggedIn:
		return http.StatusUnauthorized

	case CodeForbidden, CodeNotVisible:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	case CodeConflict:
		return http.StatusConflict

	case CodeInvalidInput,
		CodeAccountEmptyUsername,
		CodeAccountInvalidUsername,
		CodeAccountEmptyCredential,
		CodePostEmptyContent,
		CodeReactionEmptyKind,
		CodeModerationInvalidPolicy:
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
