package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/models"
)

func testTables() []models.TableSchema {
	return []models.TableSchema{
		{
			Name:    "orders",
			Comment: "Customer orders",
			Columns: []models.ColumnSchema{
				{Name: "id", DataType: "bigint", IsPrimary: true},
				{Name: "group_id", DataType: "bigint"},
				{Name: "status", DataType: "int", Comment: "See order_status codes"},
			},
			RequiredFields: []string{"id", "status"},
			JoinHints:      []string{"orders.creator_id joins users.id"},
			SampleRows: []map[string]any{
				{"id": 1, "status": 2},
			},
		},
		{
			Name:    "time_entries",
			Comment: "Logged work time",
			Columns: []models.ColumnSchema{
				{Name: "id", DataType: "bigint", IsPrimary: true},
				{Name: "subject_id", DataType: "bigint"},
				{Name: "order_id", DataType: "bigint"},
			},
		},
		{
			Name: "lookup_codes",
			Columns: []models.ColumnSchema{
				{Name: "code", DataType: "int"},
				{Name: "label", DataType: "text"},
			},
		},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(testTables(), zap.NewNop())
}

func TestTableExists(t *testing.T) {
	m := newTestManager(t)

	if !m.TableExists("orders") {
		t.Error("orders should exist")
	}
	if !m.TableExists("  ORDERS ") {
		t.Error("lookup should be case- and whitespace-insensitive")
	}
	if m.TableExists("invoices") {
		t.Error("invoices should not exist")
	}
}

func TestTableNames_PreservesOrder(t *testing.T) {
	m := newTestManager(t)

	names := m.TableNames()
	want := []string{"orders", "time_entries", "lookup_codes"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestAllTablesSummary(t *testing.T) {
	m := newTestManager(t)

	summary := m.AllTablesSummary()
	if !strings.Contains(summary, "orders: Customer orders") {
		t.Errorf("summary missing orders line:\n%s", summary)
	}
	if !strings.Contains(summary, "lookup_codes") {
		t.Errorf("summary missing comment-less table:\n%s", summary)
	}
}

func TestPromptContext(t *testing.T) {
	m := newTestManager(t)

	ctx := m.PromptContext([]string{"orders", "unknown_table"})
	for _, want := range []string{
		"Table: orders",
		"id bigint PRIMARY KEY",
		"status int -- See order_status codes",
		"Always select: id, status",
		"Join hint: orders.creator_id joins users.id",
		"Sample rows:",
		"id=1, status=2",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("prompt context missing %q:\n%s", want, ctx)
		}
	}
	if strings.Contains(ctx, "unknown_table") {
		t.Error("unknown tables should be skipped")
	}
}

func TestSearchByKeyword(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		keyword string
		want    []string
	}{
		{keyword: "orders", want: []string{"orders", "time_entries"}},
		{keyword: "order", want: []string{"orders", "time_entries"}},
		{keyword: "time", want: []string{"time_entries"}},
		{keyword: "label", want: []string{"lookup_codes"}},
		{keyword: "nothing_here", want: nil},
		{keyword: "  ", want: nil},
	}

	for _, tt := range tests {
		got := m.SearchByKeyword(tt.keyword)
		if len(got) != len(tt.want) {
			t.Errorf("SearchByKeyword(%q) = %v, want %v", tt.keyword, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("SearchByKeyword(%q)[%d] = %q, want %q", tt.keyword, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	content := `{
  "tables": [
    {
      "name": "orders",
      "comment": "Customer orders",
      "columns": [
        {"name": "id", "type": "bigint", "is_primary": true}
      ],
      "required_fields": ["id"]
    }
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadFile(path, zap.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.TableExists("orders") {
		t.Error("orders should be loaded")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.json"), zap.NewNop()); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"tables": []}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(empty, zap.NewNop()); err == nil {
		t.Error("expected error for empty snapshot")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad, zap.NewNop()); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
