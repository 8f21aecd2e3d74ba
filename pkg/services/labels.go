package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

// Labeler maps coded column values to human-readable labels and normalizes
// datetime strings for display. Label maps are loaded from a YAML file keyed
// by column name.
type Labeler struct {
	labels map[string]map[string]string
}

// labelFile is the on-disk layout of a labels file.
type labelFile struct {
	Labels map[string]map[string]string `yaml:"labels"`
}

// NewLabeler builds a labeler from already-decoded label maps. A nil map is
// valid and yields a pass-through labeler.
func NewLabeler(labels map[string]map[string]string) *Labeler {
	if labels == nil {
		labels = make(map[string]map[string]string)
	}
	return &Labeler{labels: labels}
}

// LoadLabels reads label maps from a YAML file.
func LoadLabels(path string) (*Labeler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	var lf labelFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	return NewLabeler(lf.Labels), nil
}

// Label resolves one value for a column. Columns without a label map pass
// through unchanged; codes missing from an existing map render as
// "unknown (<code>)" so a stale map is visible rather than silent.
func (l *Labeler) Label(column string, value any) any {
	codes, ok := l.labels[column]
	if !ok {
		return value
	}
	code := fmt.Sprintf("%v", value)
	if label, ok := codes[code]; ok {
		return label
	}
	return fmt.Sprintf("unknown (%s)", code)
}

// Apply rewrites all labeled columns in a result in place and normalizes
// datetime-looking strings.
func (l *Labeler) Apply(result *models.QueryResult) {
	if result == nil {
		return
	}
	for _, row := range result.Rows {
		for col, val := range row {
			val = l.Label(col, val)
			if s, ok := val.(string); ok {
				val = FormatDateTime(s)
			}
			row[col] = val
		}
	}
}

// FormatDateTime normalizes an ISO-style timestamp for display: the 'T'
// separator becomes a space and fractional seconds are dropped. Strings that
// do not look like timestamps are returned unchanged.
func FormatDateTime(s string) string {
	if len(s) < 19 || s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return s
	}
	return s[:10] + " " + s[11:19]
}
