package store

import (
	"strconv"
	"strings"
)

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// rebindPositional rewrites ? placeholders into $1, $2, ... for lib/pq.
func rebindPositional(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// identity leaves SQLite queries untouched.
func identity(query string) string {
	return query
}
