package sql

import (
	"strings"
)

// forbiddenKeywords are the mutating keywords that disqualify a statement
// outright, matched as whole tokens anywhere in the text (subqueries
// included). Identifiers that merely contain one of these as a substring
// (updated_at, created_by) do not match.
var forbiddenKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"TRUNCATE": {},
	"ALTER":    {},
	"CREATE":   {},
	"GRANT":    {},
	"REVOKE":   {},
}

// Classify decides whether a candidate statement is safe to hand to the
// injector. It returns the normalized statement (whitespace trimmed, trailing
// semicolon stripped) or a *RejectionError.
//
// The checks are a conservative allow-list, applied in order:
//  1. multi-statement guard: any semicolon left after stripping the trailing
//     one, outside strings and comments, is rejected
//  2. mutating keyword guard: whole-token scan
//  3. the statement must begin with SELECT or WITH
//
// Ambiguous input (unterminated quotes, unbalanced parentheses) is rejected,
// never optimistically allowed.
func Classify(sqlText string) (string, error) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return "", rejectUnsafe(ReasonNotSelect, "empty statement")
	}

	normalized := stripTrailingSemicolon(trimmed)

	if hasSemicolonOutsideStrings(normalized) {
		return "", rejectUnsafe(ReasonMultiStatement, "statement terminator followed by additional content")
	}

	var first, forbidden string
	err := scanWords(normalized, func(word string, pos, depth int, quoted bool) bool {
		if quoted {
			return false
		}
		upper := strings.ToUpper(word)
		if first == "" {
			first = upper
		}
		if _, bad := forbiddenKeywords[upper]; bad {
			forbidden = upper
			return true
		}
		return false
	})
	if err != nil {
		return "", rejectMalformed(err.Error())
	}
	if forbidden != "" {
		return "", rejectUnsafe(ReasonForbiddenKeyword, forbidden+" is not allowed")
	}
	if first != "SELECT" && first != "WITH" {
		return "", rejectUnsafe(ReasonNotSelect, "statement must begin with SELECT or WITH")
	}

	return normalized, nil
}

// stripTrailingSemicolon removes one trailing semicolon and surrounding
// whitespace.
func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")
	if strings.HasSuffix(sqlText, ";") {
		sqlText = strings.TrimRight(strings.TrimSuffix(sqlText, ";"), " \t\n\r")
	}
	return sqlText
}

// hasSemicolonOutsideStrings reports whether the SQL contains a semicolon
// outside string literals, quoted identifiers and comments. Since the
// trailing semicolon has already been stripped, any hit means a second
// statement follows.
func hasSemicolonOutsideStrings(sqlText string) bool {
	i := 0
	n := len(sqlText)
	for i < n {
		c := sqlText[i]
		switch {
		case c == ';':
			return true
		case c == '-' && i+1 < n && sqlText[i+1] == '-':
			nl := strings.IndexByte(sqlText[i:], '\n')
			if nl < 0 {
				return false
			}
			i += nl + 1
		case c == '/' && i+1 < n && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				// Unterminated comment: nothing after it can execute, and the
				// classifier's scanWords pass will reject the statement anyway.
				return false
			}
			i += end + 4
		case c == '\'' || c == '"' || c == '`':
			end, err := scanQuoted(sqlText, i, c)
			if err != nil {
				// Unterminated quote swallows the rest of the text; treat the
				// remainder as inert. scanWords rejects it later.
				return false
			}
			i = end
		default:
			i++
		}
	}
	return false
}
