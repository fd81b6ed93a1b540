package adapter

import "strings"

// QuoteWith wraps name in open/close and doubles every close character
// inside it, the escaping rule shared by SQL dialects.
func QuoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

// UnquoteWith reverses QuoteWith. It returns false when s is not a valid
// quoted identifier.
func UnquoteWith(s, open, close string) (string, bool) {
	if len(s) < len(open)+len(close) || !strings.HasPrefix(s, open) || !strings.HasSuffix(s, close) {
		return "", false
	}
	inner := s[len(open) : len(s)-len(close)]
	var b strings.Builder
	for i := 0; i < len(inner); {
		if strings.HasPrefix(inner[i:], close) {
			if !strings.HasPrefix(inner[i+len(close):], close) {
				return "", false
			}
			b.WriteString(close)
			i += 2 * len(close)
			continue
		}
		b.WriteByte(inner[i])
		i++
	}
	return b.String(), true
}

// DoubleQuote quotes an identifier ANSI style: "a""b".
func DoubleQuote(name string) string { return QuoteWith(name, `"`, `"`) }

// Backtick quotes an identifier MySQL style: `a``b`.
func Backtick(name string) string { return QuoteWith(name, "`", "`") }

// Bracket quotes an identifier SQL Server style: [a]]b].
func Bracket(name string) string { return QuoteWith(name, "[", "]") }
