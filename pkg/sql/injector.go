package sql

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/models"
	"github.com/teamquery-ai/teamquery/pkg/policy"
)

// Injector rewrites classified SELECT statements to conjoin the scope
// predicates the policy requires for the caller. It is stateless and safe
// for concurrent use; all working state is local to each Inject call.
type Injector struct {
	policy *policy.Policy
	logger *zap.Logger
}

// NewInjector creates an injector bound to a validated policy.
func NewInjector(p *policy.Policy, logger *zap.Logger) *Injector {
	return &Injector{policy: p, logger: logger.Named("injector")}
}

// InjectResult is the outcome of a successful injection.
type InjectResult struct {
	// SQL is the rewritten statement (identical to the input when no
	// predicates were required or all were already present).
	SQL string
	// Predicates are the literal fragments the policy required.
	Predicates []string
	// Fallbacks lists tables whose predicate could not be anchored to a
	// unique occurrence in the FROM clause and was applied unqualified.
	Fallbacks []string
}

// Inject conjoins the required scope predicates into the statement's
// outermost WHERE clause. The existing condition is wrapped in parentheses
// and intersected, never replaced, so the rewrite can only narrow the result
// set. Statements whose structure cannot be located confidently (unbalanced
// parentheses, set operations, a scoped rewrite with no FROM clause) are
// rejected with a *RejectionError rather than guessed at.
//
// The referenced-tables hint may be empty, incomplete or wrong: unmatched
// hints resolve to unqualified predicates (best effort, logged), and an empty
// hint set on a statement that needs no scoping passes through unchanged.
func (inj *Injector) Inject(sqlText string, tables []string, id models.Identity) (*InjectResult, error) {
	preds, err := inj.policy.PredicatesFor(tables, id)
	if err != nil {
		return nil, rejectUnsatisfiable(err.Error())
	}
	if len(preds) == 0 {
		return &InjectResult{SQL: sqlText}, nil
	}

	cm, err := scanClauses(sqlText)
	if err != nil {
		return nil, rejectMalformed(err.Error())
	}
	if cm.setOp {
		return nil, rejectMalformed("set operations (UNION/INTERSECT/EXCEPT) are not supported for scope injection")
	}
	if cm.from == -1 {
		return nil, rejectMalformed("no FROM clause to anchor scope predicates")
	}

	result := &InjectResult{}
	fragments := make([]string, 0, len(preds))
	for _, p := range preds {
		qualifier, ok := resolveQualifier(sqlText, cm, p.Table)
		if !ok {
			result.Fallbacks = append(result.Fallbacks, p.Table)
			inj.logger.Warn("scope predicate applied unqualified",
				zap.String("table", p.Table),
				zap.String("column", p.Column))
			fragments = append(fragments, fmt.Sprintf("%s = %d", p.Column, p.Value))
			continue
		}
		fragments = append(fragments, fmt.Sprintf("%s.%s = %d", qualifier, p.Column, p.Value))
	}
	result.Predicates = fragments

	// Idempotence: fragments already conjoined at the top level of the
	// outermost WHERE are not added again, so re-running inject on its own
	// output is a no-op. Only an exact top-level conjunct counts as present.
	// A fragment appearing as a substring of some other condition (group_id
	// = 6 inside group_id = 66, or inside an OR branch) does not constrain
	// the result and is still injected.
	missing := fragments
	if cm.where != -1 {
		condEnd := cm.end
		if cm.tail != -1 {
			condEnd = cm.tail
		}
		present := topLevelConjuncts(sqlText[cm.whereEnd():condEnd])
		missing = nil
		for _, f := range fragments {
			if _, ok := present[normalizeCondition(f)]; !ok {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) == 0 {
		result.SQL = sqlText
		return result, nil
	}

	result.SQL = splicePredicates(sqlText, cm, missing)
	return result, nil
}

// splicePredicates rebuilds the statement with the missing fragments
// conjoined at the outermost filter clause.
func splicePredicates(sqlText string, cm *clauseMap, fragments []string) string {
	var b strings.Builder

	if cm.where != -1 {
		condEnd := cm.end
		if cm.tail != -1 {
			condEnd = cm.tail
		}
		cond := strings.TrimSpace(sqlText[cm.whereEnd():condEnd])

		b.WriteString(sqlText[:cm.where])
		b.WriteString("WHERE (")
		b.WriteString(cond)
		b.WriteString(")")
		for _, f := range fragments {
			b.WriteString(" AND (")
			b.WriteString(f)
			b.WriteString(")")
		}
		if cm.tail != -1 {
			b.WriteString(" ")
			b.WriteString(sqlText[cm.tail:])
		} else {
			b.WriteString(sqlText[cm.end:])
		}
		return b.String()
	}

	insertAt := cm.end
	if cm.tail != -1 {
		insertAt = cm.tail
	}
	b.WriteString(strings.TrimRight(sqlText[:insertAt], " \t\n\r"))
	b.WriteString(" WHERE (")
	b.WriteString(strings.Join(fragments, ") AND ("))
	b.WriteString(")")
	if cm.tail != -1 {
		b.WriteString(" ")
		b.WriteString(sqlText[cm.tail:])
	} else {
		b.WriteString(sqlText[cm.end:])
	}
	return b.String()
}

// topLevelConjuncts splits a WHERE condition at its depth-0 ANDs and returns
// the set of normalized conjuncts.
func topLevelConjuncts(cond string) map[string]struct{} {
	bounds := []int{0}
	err := scanWords(cond, func(word string, pos, depth int, quoted bool) bool {
		if depth == 0 && !quoted && strings.EqualFold(word, "AND") {
			bounds = append(bounds, pos, pos+len(word))
		}
		return false
	})
	if err != nil {
		return nil
	}
	bounds = append(bounds, len(cond))

	set := make(map[string]struct{}, len(bounds)/2)
	for i := 0; i+1 < len(bounds); i += 2 {
		set[normalizeCondition(cond[bounds[i]:bounds[i+1]])] = struct{}{}
	}
	return set
}

// normalizeCondition reduces a conjunct to a comparable form: surrounding
// parentheses stripped, whitespace runs collapsed.
func normalizeCondition(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && selfContained(s[1:len(s)-1]) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return strings.Join(strings.Fields(s), " ")
}

// selfContained reports whether the parentheses in s are balanced without
// dipping below depth zero, so stripping a pair surrounding it is safe.
func selfContained(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// fromClauseKeywords are tokens that cannot be a table alias.
var fromClauseKeywords = map[string]struct{}{
	"JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "OUTER": {},
	"CROSS": {}, "NATURAL": {}, "ON": {}, "USING": {}, "WHERE": {}, "GROUP": {},
	"ORDER": {}, "HAVING": {}, "LIMIT": {}, "OFFSET": {}, "FETCH": {}, "AS": {},
	"AND": {}, "OR": {}, "NOT": {}, "IN": {}, "SELECT": {}, "FROM": {},
}

type fromToken struct {
	word  string
	start int
	end   int
	depth int
}

// resolveQualifier finds the unique occurrence of table in the statement's
// depth-0 FROM clause and returns the name the predicate should be qualified
// with: the table's alias if one is declared, otherwise the table name
// itself. Returns false when the table cannot be matched to exactly one
// occurrence, in which case the caller falls back to an unqualified
// predicate.
func resolveQualifier(sqlText string, cm *clauseMap, table string) (string, bool) {
	regionEnd := cm.end
	if cm.where != -1 {
		regionEnd = cm.where
	} else if cm.tail != -1 {
		regionEnd = cm.tail
	}

	var words []fromToken
	err := scanWords(sqlText, func(word string, pos, depth int, quoted bool) bool {
		if pos >= regionEnd {
			return true
		}
		if pos >= cm.from {
			end := pos + len(word)
			if quoted {
				end += 2 // closing backtick
			}
			words = append(words, fromToken{word: word, start: pos, end: end, depth: depth})
		}
		return false
	})
	if err != nil {
		return "", false
	}

	qualifier := ""
	matches := 0
	for i, w := range words {
		if w.depth != 0 || !strings.EqualFold(w.word, table) {
			continue
		}
		// A table occurrence in a FROM clause is preceded by FROM, a join
		// keyword, or a comma. Anything else (ON conditions, qualified column
		// references) is not a binding occurrence.
		if !isTablePosition(sqlText, words, i) {
			continue
		}
		matches++
		qualifier = w.word
		if alias, ok := aliasAfter(sqlText, words, i); ok {
			qualifier = alias
		}
	}

	if matches != 1 {
		return "", false
	}
	return qualifier, true
}

// isTablePosition reports whether words[i] sits in a binding position of the
// FROM clause (right after FROM, a JOIN keyword, or a comma).
func isTablePosition(sqlText string, words []fromToken, i int) bool {
	w := words[i]
	// Qualified references (alias.column or table.column) are not bindings.
	if nextNonSpace(sqlText, w.end) == '.' || prevNonSpace(sqlText, w.start) == '.' {
		return false
	}
	if prevNonSpace(sqlText, w.start) == ',' {
		return true
	}
	if i == 0 {
		return false
	}
	switch strings.ToUpper(words[i-1].word) {
	case "FROM", "JOIN":
		return true
	}
	return false
}

// aliasAfter returns the alias declared for the table at words[i], if any.
func aliasAfter(sqlText string, words []fromToken, i int) (string, bool) {
	j := i + 1
	if j < len(words) && strings.ToUpper(words[j].word) == "AS" {
		j++
	}
	if j >= len(words) {
		return "", false
	}
	next := words[j]
	if next.depth != words[i].depth {
		return "", false
	}
	if _, kw := fromClauseKeywords[strings.ToUpper(next.word)]; kw {
		return "", false
	}
	// A comma between the table and the candidate means the next token is
	// another FROM-list entry, not an alias.
	if strings.ContainsRune(sqlText[words[i].end:next.start], ',') {
		return "", false
	}
	return next.word, true
}

func nextNonSpace(s string, pos int) byte {
	for i := pos; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			return s[i]
		}
	}
	return 0
}

func prevNonSpace(s string, pos int) byte {
	for i := pos - 1; i >= 0; i-- {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			return s[i]
		}
	}
	return 0
}
