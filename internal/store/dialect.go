package store

import (
	"strconv"
	"strings"
)

// dialect captures the differences between the SQL backends.
type dialect interface {
	name() string
	schema() []string
	// rebind rewrites ? placeholders into the backend's form.
	rebind(query string) string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string           { return "sqlite" }
func (sqliteDialect) schema() []string       { return sqliteSchema }
func (sqliteDialect) rebind(q string) string { return q }

type postgresDialect struct{}

func (postgresDialect) name() string     { return "postgres" }
func (postgresDialect) schema() []string { return postgresSchema }

func (postgresDialect) rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
