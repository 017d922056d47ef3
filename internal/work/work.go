// Package work defines the core domain types for bibliographic records.
package work

import (
	"fmt"
	"strings"
	"time"
)

// Provenance values recorded in Work.Source.
const (
	SourceCrossref   = "Crossref"
	SourceUserUpload = "User Upload"
)

// Work represents a bibliographic record (journal article, book, etc.).
type Work struct {
	// Identity
	ID    int64  `json:"id"`
	DOI   string `json:"doi"`   // Stored lowercase; case-insensitive unique
	URL   string `json:"url"`   // Alternate identifier, unique when present
	Label string `json:"label"` // Short citation key (e.g. "Jennings2019"), unique

	// Metadata
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	ContainerTitle string          `json:"container_title"` // Journal or book title
	Authors        []Author        `json:"authors"`         // Ordered; index = stored position
	Subjects       []string        `json:"subjects,omitempty"`
	Published      PublicationDate `json:"published"`
	Volume         string          `json:"volume,omitempty"`
	Issue          string          `json:"issue,omitempty"`
	Page           string          `json:"page,omitempty"` // "start-end"
	Abstract       string          `json:"abstract,omitempty"`
	Language       string          `json:"language,omitempty"`

	// Provenance
	Source              string    `json:"source"` // SourceCrossref or SourceUserUpload
	LastQueriedCrossref time.Time `json:"last_queried_crossref,omitempty"`
	DOIQueried          bool      `json:"doi_queried"`
}

// PublicationDate represents a publication date with optional month and day.
// Year-only or year-month inputs normalize month/day to 1.
type PublicationDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // 1-12, 0 if unknown
	Day   int `json:"day,omitempty"`   // 1-31, 0 if unknown
}

// IsZero reports whether no date is set.
func (d PublicationDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD with unknown parts defaulting to 1.
func (d PublicationDate) String() string {
	if d.IsZero() {
		return ""
	}
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, month, day)
}

// AuthorsCitation returns an in-text citation form of the author list:
// "Smith", "Smith & Jones", or "Smith et al." beyond two authors.
func (w *Work) AuthorsCitation() string {
	families := make([]string, len(w.Authors))
	for i, a := range w.Authors {
		families[i] = a.Family
	}
	switch {
	case len(families) == 0:
		return ""
	case len(families) == 1:
		return families[0]
	case len(families) == 2:
		return strings.Join(families, " & ")
	default:
		return families[0] + " et al."
	}
}

// CanQueryCrossref reports whether a re-query against the CrossRef API is
// allowed. Queries are rate-limited to once per 24 hours per work.
func (w *Work) CanQueryCrossref(now time.Time) bool {
	if w.LastQueriedCrossref.IsZero() {
		return true
	}
	return now.Sub(w.LastQueriedCrossref) >= 24*time.Hour
}
