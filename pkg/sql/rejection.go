// Package sql provides the SQL safety layer: statement classification and
// lexical scope-predicate injection for LLM-generated queries.
//
// Nothing here is a SQL parser. The layer works at the token level with
// conservative rules: anything it cannot classify or locate confidently is
// rejected, never optimistically allowed.
package sql

import (
	"fmt"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
)

// Rejection reasons, stable strings surfaced in audit records and MCP errors.
const (
	ReasonForbiddenKeyword   = "forbidden_keyword"
	ReasonMultiStatement     = "multi_statement"
	ReasonNotSelect          = "not_select"
	ReasonMalformedSQL       = "malformed_sql"
	ReasonScopeUnsatisfiable = "scope_unsatisfiable"
)

// RejectionError is a terminal refusal to classify or rewrite a statement.
// The statement must never be executed, even partially.
type RejectionError struct {
	Reason string
	Detail string
	err    error
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Unwrap exposes the sentinel error category (ErrUnsafeStatement or
// ErrMalformedStatement) for errors.Is checks.
func (e *RejectionError) Unwrap() error {
	return e.err
}

func rejectUnsafe(reason, detail string) *RejectionError {
	return &RejectionError{Reason: reason, Detail: detail, err: apperrors.ErrUnsafeStatement}
}

func rejectMalformed(detail string) *RejectionError {
	return &RejectionError{Reason: ReasonMalformedSQL, Detail: detail, err: apperrors.ErrMalformedStatement}
}

func rejectUnsatisfiable(detail string) *RejectionError {
	return &RejectionError{Reason: ReasonScopeUnsatisfiable, Detail: detail, err: apperrors.ErrScopeUnsatisfiable}
}
