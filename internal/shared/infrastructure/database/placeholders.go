package database

import (
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the positional form the driver
// expects. Repositories write every statement with '?' so the same SQL runs
// on SQLite and PostgreSQL. Question marks inside single-quoted literals are
// left untouched.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
