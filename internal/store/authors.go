package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/workbib/workbib/internal/work"
)

const selectAuthorFields = `id, given, family, prefix, suffix, orcid,
	authenticated_orcid, affiliation_json`

// FindOrCreateAuthor returns the author row keyed on the exact
// (given, family) pair, creating it if absent. The remaining fields of a
// (ORCID, affiliation, prefix, suffix) are written only at creation
// time: an existing row's curated metadata is never overwritten here.
// The second return value reports whether a row was created.
func (s *Store) FindOrCreateAuthor(a work.Author) (work.Author, bool, error) {
	existing, err := s.getAuthorByName(a.Given, a.Family)
	if err == nil {
		return existing, false, nil
	}
	if err != ErrNotFound {
		return work.Author{}, false, err
	}

	var affiliationJSON any
	if len(a.Affiliation) > 0 {
		data, err := json.Marshal(a.Affiliation)
		if err != nil {
			return work.Author{}, false, fmt.Errorf("marshaling affiliation: %w", err)
		}
		affiliationJSON = string(data)
	}

	res, err := s.db.Exec(`
		INSERT INTO authors (given, family, prefix, suffix, orcid, authenticated_orcid, affiliation_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Given, a.Family, nullString(a.Prefix), nullString(a.Suffix),
		nullString(a.ORCID), boolToInt(a.AuthenticatedORCID), affiliationJSON)
	if err != nil {
		// Lost a create race: another writer inserted the same pair.
		if IsConstraint(constraintError(err), "author") {
			existing, lookupErr := s.getAuthorByName(a.Given, a.Family)
			if lookupErr == nil {
				return existing, false, nil
			}
		}
		return work.Author{}, false, constraintError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return work.Author{}, false, fmt.Errorf("reading new author id: %w", err)
	}
	a.ID = id
	return a, true, nil
}

// WorkAuthors returns a work's authors ordered by stored position.
func (s *Store) WorkAuthors(workID int64) ([]work.Author, error) {
	rows, err := s.db.Query(`
		SELECT `+qualifyAuthorFields("a")+`
		FROM authors a
		JOIN work_authors wa ON wa.author_id = a.id
		WHERE wa.work_id = ?
		ORDER BY wa.position`, workID)
	if err != nil {
		return nil, fmt.Errorf("loading work authors: %w", err)
	}
	defer rows.Close()

	var authors []work.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// CountAuthors returns the total number of author rows.
func (s *Store) CountAuthors() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM authors`).Scan(&n)
	return n, err
}

// AuthorWorkCount returns how many works reference the given author.
func (s *Store) AuthorWorkCount(authorID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT work_id) FROM work_authors WHERE author_id = ?`,
		authorID).Scan(&n)
	return n, err
}

func (s *Store) getAuthorByName(given, family string) (work.Author, error) {
	row := s.db.QueryRow(
		`SELECT `+selectAuthorFields+` FROM authors WHERE given = ? AND family = ?`,
		given, family)
	return scanAuthor(row)
}

func scanAuthor(row rowScanner) (work.Author, error) {
	var a work.Author
	var prefix, suffix, orcid, affiliationJSON sql.NullString
	var authenticated int

	err := row.Scan(&a.ID, &a.Given, &a.Family, &prefix, &suffix, &orcid,
		&authenticated, &affiliationJSON)
	if err == sql.ErrNoRows {
		return work.Author{}, ErrNotFound
	}
	if err != nil {
		return work.Author{}, fmt.Errorf("scanning author: %w", err)
	}

	a.Prefix = prefix.String
	a.Suffix = suffix.String
	a.ORCID = orcid.String
	a.AuthenticatedORCID = authenticated != 0
	if affiliationJSON.Valid && affiliationJSON.String != "" {
		if err := json.Unmarshal([]byte(affiliationJSON.String), &a.Affiliation); err != nil {
			return work.Author{}, fmt.Errorf("unmarshaling affiliation: %w", err)
		}
	}
	return a, nil
}

func qualifyAuthorFields(alias string) string {
	return alias + ".id, " + alias + ".given, " + alias + ".family, " +
		alias + ".prefix, " + alias + ".suffix, " + alias + ".orcid, " +
		alias + ".authenticated_orcid, " + alias + ".affiliation_json"
}
