// Package sqlstore implements the repository interfaces on database/sql.
// SQLite (modernc.org/sqlite) is the default backend; PostgreSQL is served
// through pgx's database/sql driver when the URL asks for it.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DefaultURL points at a file next to the working directory.
const DefaultURL = "sqlite:///./voicelink.db"

const memoryPath = ":memory:"

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a connection pool bound to the SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (db *DB) Rebind(query string) string {
	return rebind(db.Dialect, query)
}

// ParseURL splits a database URL into the dialect and the driver DSN.
//
//	sqlite:///./voicelink.db   relative file
//	sqlite:////var/lib/app.db  absolute file
//	sqlite://                  in-memory
//	postgres://user@host/db    PostgreSQL
//	./voicelink.db             bare path, SQLite
func ParseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", "", fmt.Errorf("database url is empty")
	case raw == "sqlite://":
		return DialectSQLite, memoryPath, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme in %q", raw)
	default:
		return DialectSQLite, raw, nil
	}
}

// Open connects to the database named by rawURL and verifies the connection.
func Open(ctx context.Context, rawURL string) (*DB, error) {
	dialect, dsn, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case DialectSQLite:
		db, err = openSQLite(dsn)
	case DialectPostgres:
		db, err = openPostgres(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// one writer; also keeps an in-memory database alive on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
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
