package adapter

import (
	"regexp"
	"strings"
	"unicode"
)

// returningClause matches RETURNING (PostgreSQL, SQLite, MariaDB, Oracle)
// and OUTPUT INSERTED/DELETED (SQL Server) with any surrounding whitespace.
var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b|\bOUTPUT\s+(INSERTED|DELETED)\b`)

var rowReturningKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"VALUES":   true,
	"TABLE":    true,
	"CALL":     true,
	"EXEC":     true,
	"EXECUTE":  true,
}

// LeadingKeyword returns the first keyword of stmt in upper case, skipping
// whitespace, comments and opening parentheses.
func LeadingKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != '_' })
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// IsQueryStatement reports whether stmt is expected to return rows. It is a
// surface heuristic, not a parser.
func IsQueryStatement(stmt string) bool {
	if rowReturningKeywords[LeadingKeyword(stmt)] {
		return true
	}
	return returningClause.MatchString(stmt)
}
