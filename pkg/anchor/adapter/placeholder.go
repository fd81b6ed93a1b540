package adapter

import "strconv"

// PlaceholderStyle is the syntax a driver uses for positional parameters.
type PlaceholderStyle int

const (
	// DollarPlaceholder renders $1, $2 (PostgreSQL, CockroachDB).
	DollarPlaceholder PlaceholderStyle = iota
	// QuestionPlaceholder renders ? (MySQL, SQLite, Cassandra, ClickHouse, PartiQL).
	QuestionPlaceholder
	// AtPPlaceholder renders @p1, @p2 (SQL Server).
	AtPPlaceholder
	// ColonPPlaceholder renders :p1, :p2 (Oracle).
	ColonPPlaceholder
	// DollarPPlaceholder renders $p1, $p2 (Cypher parameters).
	DollarPPlaceholder
)

// Placeholder returns the placeholder for the 1-based parameter index.
func (s PlaceholderStyle) Placeholder(index int) string {
	switch s {
	case QuestionPlaceholder:
		return "?"
	case AtPPlaceholder:
		return "@p" + strconv.Itoa(index)
	case ColonPPlaceholder:
		return ":p" + strconv.Itoa(index)
	case DollarPPlaceholder:
		return "$p" + strconv.Itoa(index)
	default:
		return "$" + strconv.Itoa(index)
	}
}

// ParamName returns the bare parameter name for named styles ("p1"), or "".
func (s PlaceholderStyle) ParamName(index int) string {
	switch s {
	case AtPPlaceholder, ColonPPlaceholder, DollarPPlaceholder:
		return "p" + strconv.Itoa(index)
	default:
		return ""
	}
}
