package models

// TableSchema describes one table in the schema snapshot used for prompt
// context. Snapshots are produced offline and loaded from a JSON file.
type TableSchema struct {
	Name       string           `json:"name"`
	Comment    string           `json:"comment,omitempty"`
	Columns    []ColumnSchema   `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`

	// RequiredFields are columns the generated SQL should always select
	// for this table (identifiers, display names).
	RequiredFields []string `json:"required_fields,omitempty"`
	// JoinHints are free-text notes on how this table joins to others,
	// surfaced verbatim in prompt context.
	JoinHints []string `json:"join_hints,omitempty"`
}

// ColumnSchema describes one column in a schema snapshot.
type ColumnSchema struct {
	Name       string `json:"name"`
	DataType   string `json:"type"`
	Comment    string `json:"comment,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
	IsNullable bool   `json:"is_nullable,omitempty"`
}
