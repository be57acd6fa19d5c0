package sqlprovider

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect renders the parts of a statement that differ between databases
type Dialect interface {
	Name() string
	// Quote quotes an identifier
	Quote(ident string) string
	// Placeholder returns the bind parameter for the n-th argument (1-based)
	Placeholder(n int) string
	// Returning reports whether INSERT ... RETURNING is supported
	Returning() bool
	// Limit renders a LIMIT/OFFSET clause; limit 0 means no limit
	Limit(limit, offset int) string
}

// Postgres targets PostgreSQL through the pgx database/sql driver
var Postgres Dialect = postgres{}

// SQLite targets SQLite through go-sqlite3
var SQLite Dialect = sqlite{}

// MySQL targets MySQL and MariaDB through go-sql-driver/mysql
var MySQL Dialect = mysql{}

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", name)
	}
}

type postgres struct{}

func (postgres) Name() string              { return "postgres" }
func (postgres) Quote(ident string) string { return pq.QuoteIdentifier(ident) }
func (postgres) Placeholder(n int) string  { return fmt.Sprintf("$%d", n) }
func (postgres) Returning() bool           { return true }

func (postgres) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "")
}

type sqlite struct{}

func (sqlite) Name() string              { return "sqlite" }
func (sqlite) Quote(ident string) string { return pq.QuoteIdentifier(ident) }
func (sqlite) Placeholder(int) string    { return "?" }
func (sqlite) Returning() bool           { return true }

func (sqlite) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "-1")
}

type mysql struct{}

func (mysql) Name() string { return "mysql" }

func (mysql) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) Placeholder(int) string { return "?" }
func (mysql) Returning() bool        { return false }

func (mysql) Limit(limit, offset int) string {
	return limitOffset(limit, offset, "18446744073709551615")
}

// limitOffset renders LIMIT/OFFSET. Databases that cannot take an OFFSET
// without a LIMIT pass the value meaning "all rows" as unbounded.
func limitOffset(limit, offset int, unbounded string) string {
	var b strings.Builder
	switch {
	case limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", limit)
	case offset > 0 && unbounded != "":
		b.WriteString(" LIMIT " + unbounded)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
