package sql

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
	"github.com/teamquery-ai/teamquery/pkg/models"
	"github.com/teamquery-ai/teamquery/pkg/policy"
)

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.New(policy.RuleSet{
		GroupTables:   []string{"orders", "projects", "groups"},
		SubjectTables: []string{"user_profiles", "time_entries"},
		ColumnOverrides: map[string]policy.ColumnOverride{
			"groups": {GroupColumn: "id"},
		},
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	return p
}

func testIdentity(groupID int64) models.Identity {
	return models.Identity{SubjectID: 200287, GroupID: &groupID}
}

func TestInject_NoWhere(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	res, err := inj.Inject("SELECT * FROM orders", []string{"orders"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM orders WHERE (orders.group_id = 666666)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_ExistingWhere(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	res, err := inj.Inject("SELECT * FROM orders WHERE status = 1", []string{"orders"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM orders WHERE (status = 1) AND (orders.group_id = 666666)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_BeforeTailClauses(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "order by",
			input: "SELECT * FROM orders ORDER BY id DESC",
			want:  "SELECT * FROM orders WHERE (orders.group_id = 666666) ORDER BY id DESC",
		},
		{
			name:  "group by",
			input: "SELECT status, count(*) FROM orders GROUP BY status",
			want:  "SELECT status, count(*) FROM orders WHERE (orders.group_id = 666666) GROUP BY status",
		},
		{
			name:  "limit",
			input: "SELECT * FROM orders LIMIT 10",
			want:  "SELECT * FROM orders WHERE (orders.group_id = 666666) LIMIT 10",
		},
		{
			name:  "where and order by",
			input: "SELECT * FROM orders WHERE status = 1 ORDER BY id",
			want:  "SELECT * FROM orders WHERE (status = 1) AND (orders.group_id = 666666) ORDER BY id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := inj.Inject(tt.input, []string{"orders"}, testIdentity(666666))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.SQL != tt.want {
				t.Errorf("got %q, want %q", res.SQL, tt.want)
			}
		})
	}
}

func TestInject_AliasQualification(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	tests := []struct {
		name   string
		input  string
		tables []string
		want   string
	}{
		{
			name:   "bare alias",
			input:  "SELECT o.id FROM orders o",
			tables: []string{"orders"},
			want:   "SELECT o.id FROM orders o WHERE (o.group_id = 666666)",
		},
		{
			name:   "as alias",
			input:  "SELECT o.id FROM orders AS o",
			tables: []string{"orders"},
			want:   "SELECT o.id FROM orders AS o WHERE (o.group_id = 666666)",
		},
		{
			name:   "join does not steal the alias",
			input:  "SELECT o.id FROM orders o LEFT JOIN users u ON o.creator_id = u.id",
			tables: []string{"orders"},
			want:   "SELECT o.id FROM orders o LEFT JOIN users u ON o.creator_id = u.id WHERE (o.group_id = 666666)",
		},
		{
			name:   "qualified references in join condition are not occurrences",
			input:  "SELECT * FROM orders JOIN users ON orders.creator_id = users.id",
			tables: []string{"orders"},
			want:   "SELECT * FROM orders JOIN users ON orders.creator_id = users.id WHERE (orders.group_id = 666666)",
		},
		{
			name:   "column override",
			input:  "SELECT * FROM groups",
			tables: []string{"groups"},
			want:   "SELECT * FROM groups WHERE (groups.id = 666666)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := inj.Inject(tt.input, tt.tables, testIdentity(666666))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.SQL != tt.want {
				t.Errorf("got %q, want %q", res.SQL, tt.want)
			}
		})
	}
}

func TestInject_SubqueryWhereIgnored(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	input := "SELECT * FROM orders WHERE id IN (SELECT order_id FROM items WHERE qty > 0)"
	want := "SELECT * FROM orders WHERE (id IN (SELECT order_id FROM items WHERE qty > 0)) AND (orders.group_id = 666666)"

	res, err := inj.Inject(input, []string{"orders"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_UnmatchedHintFallsBackUnqualified(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	// The hint names a scoped table the statement spells differently; the
	// predicate is applied unqualified at the outermost clause, best effort.
	res, err := inj.Inject("SELECT * FROM order_summary", []string{"orders"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM order_summary WHERE (group_id = 666666)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
	if len(res.Fallbacks) != 1 || res.Fallbacks[0] != "orders" {
		t.Errorf("expected fallback for orders, got %v", res.Fallbacks)
	}
}

func TestInject_NoPredicatesPassThrough(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	tests := []struct {
		name   string
		tables []string
	}{
		{name: "unscoped table", tables: []string{"lookup_codes"}},
		{name: "empty hint set", tables: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "SELECT * FROM lookup_codes"
			res, err := inj.Inject(input, tt.tables, testIdentity(666666))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.SQL != input {
				t.Errorf("statement should pass through unchanged, got %q", res.SQL)
			}
			if len(res.Predicates) != 0 {
				t.Errorf("expected no predicates, got %v", res.Predicates)
			}
		})
	}
}

func TestInject_Idempotent(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())
	id := testIdentity(666666)

	first, err := inj.Inject("SELECT * FROM orders WHERE status = 1", []string{"orders"}, id)
	if err != nil {
		t.Fatalf("first inject: %v", err)
	}
	second, err := inj.Inject(first.SQL, []string{"orders"}, id)
	if err != nil {
		t.Fatalf("second inject: %v", err)
	}
	if second.SQL != first.SQL {
		t.Errorf("re-injection changed the statement:\nfirst:  %q\nsecond: %q", first.SQL, second.SQL)
	}
}

func TestInject_PrefixOfExistingConditionStillInjected(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	// Group 6's predicate is a string prefix of the existing condition. It
	// must still be conjoined or the caller would see group 66's rows.
	res, err := inj.Inject("SELECT * FROM orders WHERE orders.group_id = 66", []string{"orders"}, testIdentity(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM orders WHERE (orders.group_id = 66) AND (orders.group_id = 6)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_FragmentInsideOrBranchStillInjected(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	// The predicate text appears inside an OR branch, where it does not
	// constrain the result. It is not a top-level conjunct, so injection
	// still happens.
	input := "SELECT * FROM orders WHERE (orders.group_id = 6) OR status = 1"
	res, err := inj.Inject(input, []string{"orders"}, testIdentity(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM orders WHERE ((orders.group_id = 6) OR status = 1) AND (orders.group_id = 6)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestResolveQualifier_UnscannableTextFallsBack(t *testing.T) {
	sqlText := "SELECT * FROM orders 'broken"
	cm := &clauseMap{from: 9, where: -1, tail: -1, end: len(sqlText)}
	if q, ok := resolveQualifier(sqlText, cm, "orders"); ok {
		t.Errorf("expected no qualifier from unscannable text, got %q", q)
	}
}

func TestInject_SubjectScope(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	res, err := inj.Inject("SELECT * FROM time_entries", []string{"time_entries"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM time_entries WHERE (time_entries.subject_id = 200287)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_PrivilegedGetsGroupPredicateOnly(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	id := testIdentity(666666)
	id.Privileged = true

	res, err := inj.Inject("SELECT * FROM time_entries", []string{"time_entries"}, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Privilege lifts the subject predicate but keeps the caller inside
	// their own group.
	want := "SELECT * FROM time_entries WHERE (time_entries.group_id = 666666)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_MultipleTables(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	input := "SELECT * FROM orders o JOIN time_entries te ON te.order_id = o.id"
	res, err := inj.Inject(input, []string{"orders", "time_entries"}, testIdentity(666666))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := input + " WHERE (o.group_id = 666666) AND (te.subject_id = 200287)"
	if res.SQL != want {
		t.Errorf("got %q, want %q", res.SQL, want)
	}
}

func TestInject_Rejections(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	tests := []struct {
		name  string
		input string
	}{
		{name: "unbalanced parens", input: "SELECT * FROM orders WHERE id IN (1, 2"},
		{name: "union", input: "SELECT * FROM orders UNION SELECT * FROM archived"},
		{name: "no from clause", input: "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inj.Inject(tt.input, []string{"orders"}, testIdentity(666666))
			if !errors.Is(err, apperrors.ErrMalformedStatement) {
				t.Fatalf("expected malformed rejection, got %v", err)
			}
		})
	}
}

func TestInject_GroupScopeWithoutGroupRejected(t *testing.T) {
	inj := NewInjector(testPolicy(t), zap.NewNop())

	_, err := inj.Inject("SELECT * FROM orders", []string{"orders"}, models.Identity{SubjectID: 1})
	if !errors.Is(err, apperrors.ErrScopeUnsatisfiable) {
		t.Fatalf("expected scope unsatisfiable, got %v", err)
	}
}
