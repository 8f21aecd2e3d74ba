package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is the audit trail for one trip through the query pipeline.
// It is the only observable side effect of the rewrite layer: the original
// text, the text that was (or would have been) executed, and the predicates
// that were conjoined.
type AuditRecord struct {
	RequestID   uuid.UUID `json:"request_id"`
	Timestamp   time.Time `json:"timestamp"`
	Identity    string    `json:"identity"`
	OriginalSQL string    `json:"original_sql"`
	FinalSQL    string    `json:"final_sql"`
	Predicates  []string  `json:"predicates,omitempty"`
	// Fallbacks lists tables whose predicate could not be anchored to a
	// specific occurrence and was applied unqualified (best effort).
	Fallbacks []string `json:"fallbacks,omitempty"`
	// Rejected holds the rejection reason when the statement never ran.
	Rejected string `json:"rejected,omitempty"`
}

// QueryResult holds the rows returned by the execution engine.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// QueryAnswer is the full response to a natural-language question.
type QueryAnswer struct {
	Question string       `json:"question"`
	Tables   []string     `json:"tables,omitempty"`
	SQL      string       `json:"sql"`
	Result   *QueryResult `json:"result,omitempty"`
	Audit    AuditRecord  `json:"audit"`
}
