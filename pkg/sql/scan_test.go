package sql

import (
	"testing"
)

func TestScanClauses_Landmarks(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFrom  bool
		wantWhere bool
		wantTail  bool
	}{
		{
			name:      "plain select",
			input:     "SELECT * FROM orders",
			wantFrom:  true,
			wantWhere: false,
			wantTail:  false,
		},
		{
			name:      "where and order by",
			input:     "SELECT * FROM orders WHERE a = 1 ORDER BY a",
			wantFrom:  true,
			wantWhere: true,
			wantTail:  true,
		},
		{
			name:      "where inside subquery is not outermost",
			input:     "SELECT * FROM orders WHERE id IN (SELECT id FROM t WHERE x = 1)",
			wantFrom:  true,
			wantWhere: true,
			wantTail:  false,
		},
		{
			name:      "where inside string literal ignored",
			input:     "SELECT 'WHERE' AS label FROM orders",
			wantFrom:  true,
			wantWhere: false,
			wantTail:  false,
		},
		{
			name:      "order by inside window function ignored",
			input:     "SELECT rank() OVER (ORDER BY id) FROM orders",
			wantFrom:  true,
			wantWhere: false,
			wantTail:  false,
		},
		{
			name:      "cte body does not contribute landmarks",
			input:     "WITH r AS (SELECT * FROM orders WHERE a = 1) SELECT * FROM r",
			wantFrom:  true,
			wantWhere: false,
			wantTail:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, err := scanClauses(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cm.from != -1; got != tt.wantFrom {
				t.Errorf("from found=%v, want %v", got, tt.wantFrom)
			}
			if got := cm.where != -1; got != tt.wantWhere {
				t.Errorf("where found=%v, want %v", got, tt.wantWhere)
			}
			if got := cm.tail != -1; got != tt.wantTail {
				t.Errorf("tail found=%v, want %v", got, tt.wantTail)
			}
		})
	}
}

func TestScanClauses_CTEMainWhere(t *testing.T) {
	input := "WITH r AS (SELECT * FROM orders) SELECT * FROM r WHERE x = 1"
	cm, err := scanClauses(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The main statement's FROM is the one after the CTE body.
	if cm.from == -1 || input[cm.from:cm.from+4] != "FROM" {
		t.Fatalf("from not located, got %d", cm.from)
	}
	if cm.where == -1 || input[cm.where:cm.where+5] != "WHERE" {
		t.Fatalf("where not located, got %d", cm.where)
	}
	if cm.where < cm.from {
		t.Errorf("where %d should follow from %d", cm.where, cm.from)
	}
}

func TestScanClauses_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unbalanced open", input: "SELECT * FROM orders WHERE id IN (1, 2"},
		{name: "unbalanced close", input: "SELECT * FROM orders) WHERE id = 1"},
		{name: "unterminated string", input: "SELECT * FROM orders WHERE a = 'x"},
		{name: "unterminated block comment", input: "SELECT * FROM orders /* hmm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := scanClauses(tt.input); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestScanWords_SkipsStringsAndComments(t *testing.T) {
	input := "SELECT a -- DROP\n, b /* DELETE */ FROM t WHERE c = 'INSERT'"
	var seen []string
	err := scanWords(input, func(word string, pos, depth int, quoted bool) bool {
		seen = append(seen, word)
		return false
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, w := range seen {
		switch w {
		case "DROP", "DELETE", "INSERT":
			t.Errorf("token %q should have been skipped", w)
		}
	}
}
