package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/workbib/workbib/internal/work"
)

// selectWorkFields is the standard field list for work SELECT queries.
const selectWorkFields = `id, doi, url, label, type, title, container_title,
	pub_year, pub_month, pub_day,
	volume, issue, page, abstract, language,
	source, last_queried_crossref, doi_queried`

// GetWorkByDOI retrieves a work by DOI. Comparison is case-insensitive:
// the argument is lowercased to match the stored form.
func (s *Store) GetWorkByDOI(doi string) (*work.Work, error) {
	row := s.db.QueryRow(`SELECT `+selectWorkFields+` FROM works WHERE doi = ?`,
		strings.ToLower(strings.TrimSpace(doi)))
	return s.scanWork(row)
}

// GetWorkByURL retrieves a work by its alternate URL identifier.
func (s *Store) GetWorkByURL(url string) (*work.Work, error) {
	row := s.db.QueryRow(`SELECT `+selectWorkFields+` FROM works WHERE url = ?`, url)
	return s.scanWork(row)
}

// GetWorkByLabel retrieves a work by its citation label.
func (s *Store) GetWorkByLabel(label string) (*work.Work, error) {
	row := s.db.QueryRow(`SELECT `+selectWorkFields+` FROM works WHERE label = ?`, label)
	return s.scanWork(row)
}

// HasDOI reports whether a work with the given DOI exists.
func (s *Store) HasDOI(doi string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM works WHERE doi = ?`,
		strings.ToLower(strings.TrimSpace(doi))).Scan(&n)
	return n > 0, err
}

// HasURL reports whether a work with the given URL exists.
func (s *Store) HasURL(url string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM works WHERE url = ?`, url).Scan(&n)
	return n > 0, err
}

// HasLabel reports whether a work with the given label exists.
func (s *Store) HasLabel(label string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM works WHERE label = ?`, label).Scan(&n)
	return n > 0, err
}

// CountLabelPrefix counts works whose label starts with prefix. Label
// derivation uses this to pick a disambiguation suffix.
func (s *Store) CountLabelPrefix(prefix string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM works WHERE label LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%").Scan(&n)
	return n, err
}

// ListWorks returns all works ordered by publication date (newest
// first, undated last) then label, with authors and subjects attached.
func (s *Store) ListWorks() ([]*work.Work, error) {
	rows, err := s.db.Query(`SELECT ` + selectWorkFields + ` FROM works
		ORDER BY pub_year IS NULL, pub_year DESC, pub_month DESC, pub_day DESC, label`)
	if err != nil {
		return nil, fmt.Errorf("listing works: %w", err)
	}
	defer rows.Close()

	var works []*work.Work
	for rows.Next() {
		w, err := scanWorkRow(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, w := range works {
		if err := s.attachRelations(w); err != nil {
			return nil, err
		}
	}
	return works, nil
}

// CreateWork inserts a work plus its ordered author links and subject
// links in a single transaction. Authors must already exist (the
// reconciler creates them); their slice order becomes the stored
// position. A uniqueness violation surfaces as *ConstraintError and no
// partial row remains.
func (s *Store) CreateWork(w *work.Work) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO works (doi, url, label, type, title, container_title,
			pub_year, pub_month, pub_day,
			volume, issue, page, abstract, language,
			source, last_queried_crossref, doi_queried)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(strings.ToLower(w.DOI)), nullString(w.URL), w.Label,
		nullString(w.Type), nullString(w.Title), nullString(w.ContainerTitle),
		nullInt(w.Published.Year), nullInt(w.Published.Month), nullInt(w.Published.Day),
		nullString(w.Volume), nullString(w.Issue), nullString(w.Page),
		nullString(w.Abstract), nullString(w.Language),
		w.Source, nullTime(w.LastQueriedCrossref), boolToInt(w.DOIQueried),
	)
	if err != nil {
		return constraintError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new work id: %w", err)
	}

	for i, a := range w.Authors {
		if a.ID == 0 {
			return fmt.Errorf("author %q has no id; reconcile before CreateWork", a.Name())
		}
		if _, err := tx.Exec(
			`INSERT INTO work_authors (work_id, author_id, position) VALUES (?, ?, ?)`,
			id, a.ID, i); err != nil {
			return constraintError(err)
		}
	}

	for _, name := range w.Subjects {
		subjectID, err := findOrCreateSubjectTx(tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO work_subjects (work_id, subject_id) VALUES (?, ?)`,
			id, subjectID); err != nil {
			return constraintError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return constraintError(err)
	}

	w.ID = id
	w.DOI = strings.ToLower(w.DOI)
	return nil
}

// TouchCrossrefQuery records that the work's DOI was queried against
// the CrossRef API, for the once-per-24h re-query gate.
func (s *Store) TouchCrossrefQuery(workID int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE works SET last_queried_crossref = ?, doi_queried = 1 WHERE id = ?`,
		at.Unix(), workID)
	return err
}

// UpdateWorkFields refreshes the mutable bibliographic fields of an
// existing work (used by re-query). Identity fields (doi, url, label)
// are not touched.
func (s *Store) UpdateWorkFields(w *work.Work) error {
	_, err := s.db.Exec(`
		UPDATE works SET type = ?, title = ?, container_title = ?,
			pub_year = ?, pub_month = ?, pub_day = ?,
			volume = ?, issue = ?, page = ?, abstract = ?, language = ?
		WHERE id = ?`,
		nullString(w.Type), nullString(w.Title), nullString(w.ContainerTitle),
		nullInt(w.Published.Year), nullInt(w.Published.Month), nullInt(w.Published.Day),
		nullString(w.Volume), nullString(w.Issue), nullString(w.Page),
		nullString(w.Abstract), nullString(w.Language),
		w.ID)
	return err
}

// CleanupResult reports rows removed by a work deletion.
type CleanupResult struct {
	AuthorsRemoved  int `json:"authors_removed"`
	SubjectsRemoved int `json:"subjects_removed"`
}

// DeleteWork removes a work and then removes authors and subjects no
// longer referenced by any work, returning the cleanup counts. This is
// the explicit replacement for cascade-on-delete hooks: callers see
// exactly what was cleaned up.
func (s *Store) DeleteWork(workID int64) (CleanupResult, error) {
	var result CleanupResult

	tx, err := s.db.Begin()
	if err != nil {
		return result, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM works WHERE id = ?`, workID)
	if err != nil {
		return result, fmt.Errorf("deleting work: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return result, ErrNotFound
	}

	// Link rows are gone via ON DELETE CASCADE; now reap orphans.
	res, err = tx.Exec(`DELETE FROM authors
		WHERE id NOT IN (SELECT author_id FROM work_authors)`)
	if err != nil {
		return result, fmt.Errorf("removing orphaned authors: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.AuthorsRemoved = int(n)
	}

	res, err = tx.Exec(`DELETE FROM subjects
		WHERE id NOT IN (SELECT subject_id FROM work_subjects)`)
	if err != nil {
		return result, fmt.Errorf("removing orphaned subjects: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.SubjectsRemoved = int(n)
	}

	return result, tx.Commit()
}

// scanWork scans a single work row and attaches its relations.
func (s *Store) scanWork(row *sql.Row) (*work.Work, error) {
	w, err := scanWorkRow(row)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(w); err != nil {
		return nil, err
	}
	return w, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkRow(row rowScanner) (*work.Work, error) {
	var w work.Work
	var doi, url, typ, title, container, volume, issue, page, abstract, language sql.NullString
	var year, month, day sql.NullInt64
	var lastQueried sql.NullInt64
	var doiQueried int

	err := row.Scan(&w.ID, &doi, &url, &w.Label, &typ, &title, &container,
		&year, &month, &day,
		&volume, &issue, &page, &abstract, &language,
		&w.Source, &lastQueried, &doiQueried)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work: %w", err)
	}

	w.DOI = doi.String
	w.URL = url.String
	w.Type = typ.String
	w.Title = title.String
	w.ContainerTitle = container.String
	w.Volume = volume.String
	w.Issue = issue.String
	w.Page = page.String
	w.Abstract = abstract.String
	w.Language = language.String
	w.Published = work.PublicationDate{
		Year:  int(year.Int64),
		Month: int(month.Int64),
		Day:   int(day.Int64),
	}
	if lastQueried.Valid {
		w.LastQueriedCrossref = time.Unix(lastQueried.Int64, 0).UTC()
	}
	w.DOIQueried = doiQueried != 0

	return &w, nil
}

// attachRelations loads the ordered author list and subject names.
func (s *Store) attachRelations(w *work.Work) error {
	authors, err := s.WorkAuthors(w.ID)
	if err != nil {
		return err
	}
	w.Authors = authors

	rows, err := s.db.Query(`
		SELECT s.name FROM subjects s
		JOIN work_subjects ws ON ws.subject_id = s.id
		WHERE ws.work_id = ?
		ORDER BY s.name`, w.ID)
	if err != nil {
		return fmt.Errorf("loading subjects: %w", err)
	}
	defer rows.Close()

	w.Subjects = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		w.Subjects = append(w.Subjects, name)
	}
	return rows.Err()
}

func findOrCreateSubjectTx(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM subjects WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up subject %q: %w", name, err)
	}

	res, err := tx.Exec(`INSERT INTO subjects (name) VALUES (?)`, name)
	if err != nil {
		return 0, constraintError(err)
	}
	return res.LastInsertId()
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
