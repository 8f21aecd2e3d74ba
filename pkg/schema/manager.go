// Package schema loads the schema snapshot that grounds SQL generation.
// Snapshots are produced offline and shipped as a JSON file; the manager
// serves table metadata to the prompt builder and validates table hints.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

// Manager holds the loaded schema snapshot and answers metadata queries.
type Manager struct {
	tables map[string]models.TableSchema
	order  []string
	logger *zap.Logger
}

// snapshot is the on-disk layout of a schema file.
type snapshot struct {
	Tables []models.TableSchema `json:"tables"`
}

// NewManager builds a manager from an already-decoded table list.
func NewManager(tables []models.TableSchema, logger *zap.Logger) *Manager {
	m := &Manager{
		tables: make(map[string]models.TableSchema, len(tables)),
		logger: logger.Named("schema"),
	}
	for _, t := range tables {
		key := normalizeTableName(t.Name)
		if key == "" {
			continue
		}
		if _, dup := m.tables[key]; dup {
			m.logger.Warn("duplicate table in schema snapshot", zap.String("table", t.Name))
			continue
		}
		m.tables[key] = t
		m.order = append(m.order, key)
	}
	return m
}

// LoadFile reads a schema snapshot from a JSON file.
func LoadFile(path string, logger *zap.Logger) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if len(snap.Tables) == 0 {
		return nil, fmt.Errorf("schema file %s contains no tables", path)
	}
	return NewManager(snap.Tables, logger), nil
}

// TableExists reports whether the snapshot contains the named table.
func (m *Manager) TableExists(name string) bool {
	_, ok := m.tables[normalizeTableName(name)]
	return ok
}

// TableNames returns all table names in snapshot order.
func (m *Manager) TableNames() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Table returns the schema for one table.
func (m *Manager) Table(name string) (models.TableSchema, bool) {
	t, ok := m.tables[normalizeTableName(name)]
	return t, ok
}

// AllTablesSummary returns one line per table (name plus comment) for the
// table selection prompt.
func (m *Manager) AllTablesSummary() string {
	var b strings.Builder
	for _, key := range m.order {
		t := m.tables[key]
		b.WriteString(t.Name)
		if t.Comment != "" {
			b.WriteString(": ")
			b.WriteString(t.Comment)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// PromptContext renders detailed schema context for the given tables:
// columns with types and comments, required fields, join hints, and a few
// sample rows. Unknown tables are skipped.
func (m *Manager) PromptContext(tables []string) string {
	var b strings.Builder
	for _, name := range tables {
		t, ok := m.tables[normalizeTableName(name)]
		if !ok {
			m.logger.Debug("skipping unknown table in prompt context", zap.String("table", name))
			continue
		}
		b.WriteString("Table: ")
		b.WriteString(t.Name)
		if t.Comment != "" {
			b.WriteString(" -- ")
			b.WriteString(t.Comment)
		}
		b.WriteString("\nColumns:\n")
		for _, c := range t.Columns {
			b.WriteString("  ")
			b.WriteString(c.Name)
			b.WriteString(" ")
			b.WriteString(c.DataType)
			if c.IsPrimary {
				b.WriteString(" PRIMARY KEY")
			}
			if c.Comment != "" {
				b.WriteString(" -- ")
				b.WriteString(c.Comment)
			}
			b.WriteString("\n")
		}
		if len(t.RequiredFields) > 0 {
			b.WriteString("Always select: ")
			b.WriteString(strings.Join(t.RequiredFields, ", "))
			b.WriteString("\n")
		}
		for _, hint := range t.JoinHints {
			b.WriteString("Join hint: ")
			b.WriteString(hint)
			b.WriteString("\n")
		}
		if len(t.SampleRows) > 0 {
			b.WriteString("Sample rows:\n")
			for _, row := range t.SampleRows {
				b.WriteString("  ")
				b.WriteString(renderRow(row))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SearchByKeyword returns tables whose name, comment, or column names
// contain the keyword. Keywords are singularized so "orders" matches the
// order_items table and vice versa.
func (m *Manager) SearchByKeyword(keyword string) []string {
	needle := normalizeTableName(keyword)
	if needle == "" {
		return nil
	}
	singular := inflection.Singular(needle)

	var matches []string
	for _, key := range m.order {
		t := m.tables[key]
		if m.tableMatches(t, needle) || (singular != needle && m.tableMatches(t, singular)) {
			matches = append(matches, t.Name)
		}
	}
	return matches
}

func (m *Manager) tableMatches(t models.TableSchema, needle string) bool {
	if strings.Contains(normalizeTableName(t.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Comment), needle) {
		return true
	}
	for _, c := range t.Columns {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return true
		}
	}
	return false
}

func normalizeTableName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// renderRow formats a sample row with stable key ordering.
func renderRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}
