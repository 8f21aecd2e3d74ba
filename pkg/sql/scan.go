package sql

import (
	"errors"
	"strings"
)

var (
	errUnbalancedParens    = errors.New("unbalanced parentheses")
	errUnterminatedQuote   = errors.New("unterminated string or quoted identifier")
	errUnterminatedComment = errors.New("unterminated block comment")
)

// wordVisitor receives each identifier/keyword token found outside strings and
// comments. quoted is true for backtick-quoted identifiers. Returning true
// stops the scan early.
type wordVisitor func(word string, pos, depth int, quoted bool) (stop bool)

// scanWords walks sqlText once, skipping string literals, quoted identifiers
// and comments, tracking parenthesis depth, and visiting each word token.
// It fails on unbalanced parentheses and unterminated quotes/comments so
// callers never operate on text whose structure could not be located.
func scanWords(sqlText string, visit wordVisitor) error {
	depth := 0
	i := 0
	n := len(sqlText)

	for i < n {
		c := sqlText[i]
		switch {
		case c == '-' && i+1 < n && sqlText[i+1] == '-':
			nl := strings.IndexByte(sqlText[i:], '\n')
			if nl < 0 {
				i = n
			} else {
				i += nl + 1
			}
		case c == '/' && i+1 < n && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				return errUnterminatedComment
			}
			i += end + 4
		case c == '\'' || c == '"':
			end, err := scanQuoted(sqlText, i, c)
			if err != nil {
				return err
			}
			i = end
		case c == '`':
			end, err := scanQuoted(sqlText, i, c)
			if err != nil {
				return err
			}
			if visit != nil {
				// Emit the quoted identifier content so table references
				// written as `name` still resolve.
				if visit(sqlText[i+1:end-1], i, depth, true) {
					return nil
				}
			}
			i = end
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			if depth < 0 {
				return errUnbalancedParens
			}
			i++
		case isWordChar(c):
			j := i + 1
			for j < n && isWordChar(sqlText[j]) {
				j++
			}
			if visit != nil && visit(sqlText[i:j], i, depth, false) {
				return nil
			}
			i = j
		default:
			i++
		}
	}

	if depth != 0 {
		return errUnbalancedParens
	}
	return nil
}

// scanQuoted consumes a quoted region starting at the opening quote and
// returns the index just past the closing quote. Doubled quotes stay inside
// the region. Backslash is an ordinary character: the supported dialects
// (postgres with standard conforming strings, sqlserver) do not treat it as
// an escape, and honoring it here would end string literals later than the
// server does.
func scanQuoted(sqlText string, start int, quote byte) (int, error) {
	i := start + 1
	n := len(sqlText)
	for i < n {
		c := sqlText[i]
		if c == quote {
			if i+1 < n && sqlText[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, nil
		}
		i++
	}
	return 0, errUnterminatedQuote
}

func isWordChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// clauseMap holds the byte offsets of the depth-0 landmarks of a single
// SELECT statement. Offsets are -1 when the landmark is absent.
type clauseMap struct {
	from  int // first depth-0 FROM
	where int // first depth-0 WHERE after from, before any tail clause
	tail  int // first depth-0 GROUP/ORDER/HAVING/LIMIT/OFFSET/FETCH after from
	end   int // end of statement content (trailing whitespace/semicolon excluded)
	setOp bool
}

// whereEnd returns the offset just past the WHERE keyword.
func (cm *clauseMap) whereEnd() int {
	return cm.where + len("WHERE")
}

// scanClauses locates the outermost clause landmarks of sqlText. Only
// depth-0 occurrences count, so WHERE inside subqueries, string literals or
// comments never match.
func scanClauses(sqlText string) (*clauseMap, error) {
	cm := &clauseMap{from: -1, where: -1, tail: -1}
	cm.end = len(strings.TrimRight(sqlText, " \t\n\r;"))

	err := scanWords(sqlText, func(word string, pos, depth int, quoted bool) bool {
		if depth != 0 || quoted {
			return false
		}
		switch strings.ToUpper(word) {
		case "FROM":
			if cm.from == -1 {
				cm.from = pos
			}
		case "WHERE":
			if cm.from != -1 && cm.where == -1 && cm.tail == -1 {
				cm.where = pos
			}
		case "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET", "FETCH":
			if cm.from != -1 && cm.tail == -1 {
				cm.tail = pos
			}
		case "UNION", "INTERSECT", "EXCEPT":
			cm.setOp = true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return cm, nil
}
