package sqlprovider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// drivers maps dialect names to registered database/sql driver names
var drivers = map[string]string{
	"postgres": "pgx",
	"sqlite":   "sqlite3",
	"mysql":    "mysql",
}

// Open connects to a database and returns the dialect of its driver. The
// connection is verified with a ping.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(drivers[dialect.Name()], dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if dialect == SQLite {
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name(), err)
	}
	return db, dialect, nil
}
