package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redbco/redb-anchor/pkg/dbcapabilities"
)

// EscapeLiteral renders v as an inline SQL literal.
func EscapeLiteral(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return quoteString(x)
	case []byte:
		return quoteString(string(x))
	case time.Time:
		return quoteString(x.Format(time.RFC3339Nano))
	case *time.Time:
		if x == nil {
			return "NULL"
		}
		return quoteString(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quoteString(x.String())
	default:
		return quoteString(fmt.Sprint(x))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// InlineParams replaces the placeholders of stmt with literal values.
// Quoted strings, quoted identifiers and comments are copied untouched.
func InlineParams(stmt string, style PlaceholderStyle, params []interface{}) (string, error) {
	if len(params) == 0 {
		return stmt, nil
	}

	var (
		b    strings.Builder
		next int
	)
	for i := 0; i < len(stmt); {
		if skip := verbatimSpan(stmt[i:]); skip > 0 {
			b.WriteString(stmt[i : i+skip])
			i += skip
			continue
		}

		index, width := matchPlaceholder(stmt[i:], style)
		if width == 0 {
			b.WriteByte(stmt[i])
			i++
			continue
		}
		if style == QuestionPlaceholder {
			next++
			index = next
		}
		if index < 1 || index > len(params) {
			return "", fmt.Errorf("%w: placeholder %d has no parameter", ErrInvalidQuery, index)
		}
		b.WriteString(EscapeLiteral(params[index-1]))
		i += width
	}
	return b.String(), nil
}

// verbatimSpan returns the length of the quoted string, quoted identifier or
// comment starting at s, or 0. Unterminated spans run to the end of s.
func verbatimSpan(s string) int {
	var closer string
	switch {
	case s[0] == '\'' || s[0] == '"' || s[0] == '`':
		// A doubled quote escapes itself and is consumed as two spans.
		if j := strings.IndexByte(s[1:], s[0]); j >= 0 {
			return j + 2
		}
		return len(s)
	case strings.HasPrefix(s, "--"):
		closer = "\n"
	case strings.HasPrefix(s, "/*"):
		closer = "*/"
	default:
		return 0
	}
	if j := strings.Index(s[2:], closer); j >= 0 {
		return j + 2 + len(closer)
	}
	return len(s)
}

// inliner is implemented by every adapter embedding Base.
type inliner interface {
	InlineParams(stmt string, params []interface{}) (string, error)
}

// InlineStatement substitutes params into stmt as literals using the
// adapter's placeholder syntax. Only engines whose statements are SQL
// support it.
func InlineStatement(a Adapter, stmt string, params []interface{}) (string, error) {
	dbType := a.GetDatabaseType()
	in, ok := a.(inliner)
	if !ok || !dbcapabilities.SupportsParadigm(dbType, dbcapabilities.ParadigmRelational) {
		return "", NewUnsupportedOperationError(dbType, "inline_params", "statements are not SQL")
	}
	out, err := in.InlineParams(stmt, params)
	if err != nil {
		return "", WrapError(dbType, "inline_params", err)
	}
	return out, nil
}

// matchPlaceholder returns the 1-based index and byte width of a placeholder
// at the start of s, or width 0.
func matchPlaceholder(s string, style PlaceholderStyle) (int, int) {
	var prefix string
	switch style {
	case QuestionPlaceholder:
		if s[0] == '?' {
			return 0, 1
		}
		return 0, 0
	case AtPPlaceholder:
		prefix = "@p"
	case ColonPPlaceholder:
		prefix = ":p"
	case DollarPPlaceholder:
		prefix = "$p"
	default:
		prefix = "$"
	}
	if !strings.HasPrefix(s, prefix) {
		return 0, 0
	}
	end := len(prefix)
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == len(prefix) {
		return 0, 0
	}
	n, err := strconv.Atoi(s[len(prefix):end])
	if err != nil {
		return 0, 0
	}
	return n, end
}
