package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// database drivers register themselves with database/sql
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Flat values share the table with hash entries under the empty key, the
// composite primary key makes Set an upsert per (name, key).
const sqlSchema = `CREATE TABLE IF NOT EXISTS store (
	name TEXT NOT NULL,
	key TEXT NOT NULL DEFAULT '',
	value TEXT NOT NULL,
	PRIMARY KEY (name, key)
);`

// SQL persists the store in a single relational table, shared between the
// sqlite3 and postgres drivers
type SQL struct {
	db     *sql.DB
	source string
	// rebind rewrites ? placeholders for drivers that use numbered ones
	rebind func(string) string
}

// OpenSQLite returns a store backend over a SQLite database file
func OpenSQLite(filename string) (*SQL, error) {
	if filename == "" {
		return nil, errors.New("sqlite3 store requires a filename")
	}
	return openSQL("sqlite3", filename, "SQLite "+filename, func(q string) string { return q })
}

// OpenPostgres returns a store backend over a PostgreSQL connection string
func OpenPostgres(url string) (*SQL, error) {
	if url == "" {
		return nil, errors.New("postgres store requires a connection url")
	}
	return openSQL("postgres", url, "PostgreSQL", rebindNumbered)
}

func openSQL(driver, dsn, source string, rebind func(string) string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", driver)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create %s store schema", driver)
	}
	return &SQL{db: db, source: source, rebind: rebind}, nil
}

// rebindNumbered rewrites ? placeholders to $1..$n for lib/pq
func rebindNumbered(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Name implements Backend
func (s *SQL) Name() string {
	return s.source
}

// Close implements Backend
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) get(name, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		s.rebind(`SELECT value FROM store WHERE name = ? AND key = ?`),
		name, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "query store")
	}
	return value, nil
}

func (s *SQL) set(name, key, value string) error {
	_, err := s.db.Exec(
		s.rebind(`INSERT INTO store (name, key, value) VALUES (?, ?, ?)
			ON CONFLICT (name, key) DO UPDATE SET value = excluded.value`),
		name, key, value)
	return errors.Wrap(err, "upsert store")
}

func (s *SQL) del(query string, args ...any) error {
	result, err := s.db.Exec(s.rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "delete from store")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get implements Backend
func (s *SQL) Get(name string) (string, error) {
	return s.get(name, "")
}

// Set implements Backend
func (s *SQL) Set(name, value string) error {
	return s.set(name, "", value)
}

// Delete implements Backend, removing the flat value and any hash entries
func (s *SQL) Delete(name string) error {
	return s.del(`DELETE FROM store WHERE name = ?`, name)
}

// HGet implements Backend
func (s *SQL) HGet(name, key string) (string, error) {
	if key == "" {
		return "", ErrNotFound
	}
	return s.get(name, key)
}

// HSet implements Backend
func (s *SQL) HSet(name, key, value string) error {
	if key == "" {
		return errors.New("hash key must not be empty")
	}
	return s.set(name, key, value)
}

// HDel implements Backend
func (s *SQL) HDel(name, key string) error {
	return s.del(`DELETE FROM store WHERE name = ? AND key = ?`, name, key)
}
