// Package store persists works, authors and subjects in SQLite.
//
// DOIs are stored lowercase so the unique index gives case-insensitive
// identity. Author identity for reconciliation is the exact
// (given, family) pair, enforced by a unique constraint.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found in store")

// ConstraintError reports a uniqueness violation, carrying the column
// that collided. The resolver's bounded retry keys off this type.
type ConstraintError struct {
	Column string // e.g. "doi", "url", "label"
	Err    error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("uniqueness violation on %s: %v", e.Column, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// IsConstraint returns true if err is a uniqueness violation, optionally
// restricted to the named column (pass "" to match any).
func IsConstraint(err error, column string) bool {
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		return false
	}
	return column == "" || ce.Column == column
}

// Store wraps a SQLite database holding the bibliography.
type Store struct {
	db *sql.DB
}

// Open opens or creates a store at the given path. Pass ":memory:" for
// an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS works (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doi TEXT,
			url TEXT,
			label TEXT NOT NULL,
			type TEXT,
			title TEXT,
			container_title TEXT,
			pub_year INTEGER,
			pub_month INTEGER,
			pub_day INTEGER,
			volume TEXT,
			issue TEXT,
			page TEXT,
			abstract TEXT,
			language TEXT,
			source TEXT NOT NULL DEFAULT 'User Upload',
			last_queried_crossref INTEGER,
			doi_queried INTEGER NOT NULL DEFAULT 0
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_works_doi ON works(doi) WHERE doi IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_works_url ON works(url) WHERE url IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_works_label ON works(label);

		CREATE TABLE IF NOT EXISTS authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			given TEXT NOT NULL DEFAULT '',
			family TEXT NOT NULL,
			prefix TEXT,
			suffix TEXT,
			orcid TEXT,
			authenticated_orcid INTEGER NOT NULL DEFAULT 0,
			affiliation_json TEXT,
			UNIQUE(given, family)
		);

		CREATE TABLE IF NOT EXISTS subjects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS work_authors (
			work_id INTEGER NOT NULL REFERENCES works(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES authors(id),
			position INTEGER NOT NULL,
			PRIMARY KEY (work_id, position)
		);

		CREATE TABLE IF NOT EXISTS work_subjects (
			work_id INTEGER NOT NULL REFERENCES works(id) ON DELETE CASCADE,
			subject_id INTEGER NOT NULL REFERENCES subjects(id),
			PRIMARY KEY (work_id, subject_id)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// constraintError maps a SQLite uniqueness violation onto a
// *ConstraintError naming the colliding column. Other errors pass
// through unchanged.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "constraint failed") {
		return err
	}

	column := ""
	switch {
	case strings.Contains(msg, "works.doi"), strings.Contains(msg, "idx_works_doi"):
		column = "doi"
	case strings.Contains(msg, "works.url"), strings.Contains(msg, "idx_works_url"):
		column = "url"
	case strings.Contains(msg, "works.label"), strings.Contains(msg, "idx_works_label"):
		column = "label"
	case strings.Contains(msg, "authors."):
		column = "author"
	case strings.Contains(msg, "subjects."):
		column = "subject"
	}
	return &ConstraintError{Column: column, Err: err}
}

// nullString converts "" to NULL so partial unique indexes ignore
// absent values.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt converts 0 to NULL.
func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
