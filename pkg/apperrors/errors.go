package apperrors

import "errors"

var (
	// ErrConfiguration indicates the scope rule set or another startup
	// configuration invariant is violated. Fatal: the process must not start.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnsafeStatement indicates the classifier refused a statement
	// (mutating keyword, multiple statements, or not a SELECT).
	ErrUnsafeStatement = errors.New("unsafe statement")

	// ErrMalformedStatement indicates the injector could not locate a
	// confident insertion point and refused to rewrite.
	ErrMalformedStatement = errors.New("malformed statement")

	// ErrScopeUnsatisfiable indicates a scoped table was referenced by an
	// identity that cannot satisfy the scope (e.g. no group membership).
	ErrScopeUnsatisfiable = errors.New("scope unsatisfiable for identity")

	// ErrExecution wraps failures from the downstream execution engine.
	ErrExecution = errors.New("query execution failed")
)
