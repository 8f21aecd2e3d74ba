// Package database runs validated statements against the warehouse with a
// hard row cap and a per-query timeout. Statements reach this package only
// after classification and scope injection.
package database

import (
	"context"
	"fmt"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

// MaxQueryLimit is the hard cap on rows returned by Execute.
// Requests above this are silently capped.
const MaxQueryLimit = 1000

// Executor runs read-only statements and returns bounded results.
type Executor interface {
	// Execute runs a statement and returns at most limit rows.
	// Limit handling:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	Execute(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error)

	// Close releases the underlying connections.
	Close()
}

// clampLimit applies the bounded-limit rules.
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// wrapWithLimit bounds a statement using a LIMIT subquery wrap.
func wrapWithLimit(sqlQuery string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, limit)
}

// wrapWithTop bounds a statement using SQL Server's TOP clause.
func wrapWithTop(sqlQuery string, limit int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", limit, sqlQuery)
}
