// Package policy holds the static row-visibility rule set: which tables are
// group-scoped, which are subject-scoped, and which columns carry the scope.
//
// The rule set is loaded once at startup, validated, and immutable for the
// process lifetime. It is passed explicitly into the components that need it
// so tests can substitute arbitrary policies.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
	"github.com/teamquery-ai/teamquery/pkg/models"
)

// ScopeKind is the dimension along which row visibility is restricted.
type ScopeKind int

const (
	// ScopeNone means no predicate is injected for the table.
	ScopeNone ScopeKind = iota
	// ScopeGroup restricts rows to the caller's group.
	ScopeGroup
	// ScopeSubject restricts rows to the caller themselves.
	ScopeSubject
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGroup:
		return "group"
	case ScopeSubject:
		return "subject"
	default:
		return "none"
	}
}

const (
	defaultGroupColumn   = "group_id"
	defaultSubjectColumn = "subject_id"
)

// ColumnOverride names the scope columns for tables whose column names differ
// from the defaults (e.g. the groups table keys its own rows by id).
type ColumnOverride struct {
	GroupColumn   string `yaml:"group_column"`
	SubjectColumn string `yaml:"subject_column"`
}

// RuleSet is the on-disk shape of the policy configuration.
type RuleSet struct {
	GroupTables     []string                  `yaml:"group_tables"`
	SubjectTables   []string                  `yaml:"subject_tables"`
	GroupColumn     string                    `yaml:"group_column"`
	SubjectColumn   string                    `yaml:"subject_column"`
	ColumnOverrides map[string]ColumnOverride `yaml:"column_overrides"`
}

// Predicate is one required scope comparison, not yet rendered to SQL text.
// The injector decides how (and whether) to qualify the column.
type Predicate struct {
	Table  string
	Column string
	Value  int64
}

// Policy is the immutable, validated rule set.
type Policy struct {
	scopes         map[string]ScopeKind
	groupColumns   map[string]string
	subjectColumn  map[string]string
	groupDefault   string
	subjectDefault string
}

// New validates a rule set and builds a Policy. A table appearing in both the
// group-scoped and subject-scoped sets is a fatal configuration error.
func New(rs RuleSet) (*Policy, error) {
	p := &Policy{
		scopes:         make(map[string]ScopeKind),
		groupColumns:   make(map[string]string),
		subjectColumn:  make(map[string]string),
		groupDefault:   rs.GroupColumn,
		subjectDefault: rs.SubjectColumn,
	}
	if p.groupDefault == "" {
		p.groupDefault = defaultGroupColumn
	}
	if p.subjectDefault == "" {
		p.subjectDefault = defaultSubjectColumn
	}

	for _, t := range rs.GroupTables {
		key := normalizeTable(t)
		if key == "" {
			continue
		}
		p.scopes[key] = ScopeGroup
	}
	for _, t := range rs.SubjectTables {
		key := normalizeTable(t)
		if key == "" {
			continue
		}
		if _, dup := p.scopes[key]; dup {
			return nil, fmt.Errorf("%w: table %q is both group-scoped and subject-scoped", apperrors.ErrConfiguration, key)
		}
		p.scopes[key] = ScopeSubject
	}

	for t, ov := range rs.ColumnOverrides {
		key := normalizeTable(t)
		if _, known := p.scopes[key]; !known {
			return nil, fmt.Errorf("%w: column override for unscoped table %q", apperrors.ErrConfiguration, key)
		}
		if ov.GroupColumn != "" {
			p.groupColumns[key] = ov.GroupColumn
		}
		if ov.SubjectColumn != "" {
			p.subjectColumn[key] = ov.SubjectColumn
		}
	}

	return p, nil
}

// LoadFile reads and validates a policy YAML file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: parse policy file: %v", apperrors.ErrConfiguration, err)
	}
	return New(rs)
}

// ScopeFor returns the scope kind configured for a table. Tables absent from
// both sets are unscoped.
func (p *Policy) ScopeFor(table string) ScopeKind {
	return p.scopes[normalizeTable(table)]
}

// GroupColumn returns the column carrying the group ID for a table.
func (p *Policy) GroupColumn(table string) string {
	if col, ok := p.groupColumns[normalizeTable(table)]; ok {
		return col
	}
	return p.groupDefault
}

// SubjectColumn returns the column carrying the subject ID for a table.
func (p *Policy) SubjectColumn(table string) string {
	if col, ok := p.subjectColumn[normalizeTable(table)]; ok {
		return col
	}
	return p.subjectDefault
}

// PredicatesFor resolves the scope predicates required for the referenced
// tables under the given identity. Duplicate and empty table hints are
// ignored; first-seen order is preserved.
//
// Privileged identities are exempt from subject predicates but stay confined
// to their own group: a subject-scoped table queried by a privileged caller
// with a group gets the group predicate instead. A privileged caller without
// a group keeps the subject predicate - privilege widens visibility within a
// group, never without one.
func (p *Policy) PredicatesFor(tables []string, id models.Identity) ([]Predicate, error) {
	seen := make(map[string]bool, len(tables))
	var preds []Predicate

	for _, t := range tables {
		key := normalizeTable(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		switch p.scopes[key] {
		case ScopeGroup:
			if !id.HasGroup() {
				return nil, fmt.Errorf("table %q requires a group: %w", key, apperrors.ErrScopeUnsatisfiable)
			}
			preds = append(preds, Predicate{Table: key, Column: p.GroupColumn(key), Value: *id.GroupID})
		case ScopeSubject:
			if id.Privileged && id.HasGroup() {
				preds = append(preds, Predicate{Table: key, Column: p.GroupColumn(key), Value: *id.GroupID})
				continue
			}
			preds = append(preds, Predicate{Table: key, Column: p.SubjectColumn(key), Value: id.SubjectID})
		}
	}

	return preds, nil
}

func normalizeTable(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
