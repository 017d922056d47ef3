// Package importer drives batch ingestion of parsed BibTeX entries,
// preferring CrossRef metadata and falling back to the local fields
// when the service is unreachable or does not know the DOI.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/workbib/workbib/internal/bibtex"
	"github.com/workbib/workbib/internal/build"
	"github.com/workbib/workbib/internal/crossref"
	"github.com/workbib/workbib/internal/normalize"
	"github.com/workbib/workbib/internal/resolver"
	"github.com/workbib/workbib/internal/store"
	"github.com/workbib/workbib/internal/work"
)

// Terminal status of one imported entry.
const (
	// StatusCrossref means the entry was created from CrossRef
	// metadata.
	StatusCrossref = "CROSSREF"

	// StatusBibtex means the entry was created from its own BibTeX
	// fields, either because it has no DOI or because CrossRef could
	// not resolve it (unreachable or unknown DOI).
	StatusBibtex = "BIBTEX"

	// StatusSkipped means a work with the entry's DOI already exists.
	StatusSkipped = "SKIP"

	// StatusError means the entry could not be imported.
	StatusError = "ERROR"
)

// Row is the outcome of one entry.
type Row struct {
	// Key is the entry's citation key, if any.
	Key string `json:"key,omitempty"`

	// DOI is the entry's DOI, normalized, if any.
	DOI string `json:"doi,omitempty"`

	// Status is one of the Status constants.
	Status string `json:"status"`

	// Label is the stored work's label for created or skipped rows.
	Label string `json:"label,omitempty"`

	// Messages carries failure detail for error rows.
	Messages []string `json:"messages,omitempty"`

	// Entry is the raw parsed entry.
	Entry bibtex.Entry `json:"entry"`
}

// Report aggregates one batch run. Rows are in input order and there
// is exactly one row per input entry.
type Report struct {
	Rows []Row `json:"rows"`
}

// Counts returns the number of rows per status.
func (r *Report) Counts() map[string]int {
	counts := make(map[string]int, 4)
	for _, row := range r.Rows {
		counts[row.Status]++
	}
	return counts
}

// Importer imports batches of BibTeX entries.
type Importer struct {
	Store   *store.Store
	Fetcher resolver.Fetcher
}

// ImportBatch processes entries sequentially in input order. A failed
// entry never blocks the rest of the batch. The returned report always
// has one row per entry.
func (im *Importer) ImportBatch(ctx context.Context, entries []bibtex.Entry) *Report {
	report := &Report{Rows: make([]Row, 0, len(entries))}
	for _, entry := range entries {
		report.Rows = append(report.Rows, im.importEntry(ctx, entry))
	}
	return report
}

func (im *Importer) importEntry(ctx context.Context, entry bibtex.Entry) Row {
	row := Row{
		Key:   entry.Key(),
		DOI:   normalize.DOI(entry.DOI()),
		Entry: entry,
	}

	if row.DOI != "" {
		exists, err := im.Store.HasDOI(row.DOI)
		if err != nil {
			row.Status = StatusError
			row.Messages = []string{err.Error()}
			return row
		}
		if exists {
			row.Status = StatusSkipped
			if w, err := im.Store.GetWorkByDOI(row.DOI); err == nil {
				row.Label = w.Label
			}
			return row
		}

		w, err := im.resolveRemote(ctx, row.DOI, entry.Key())
		if err == nil {
			row.Status = StatusCrossref
			row.Label = w.Label
			return row
		}
		if !crossref.IsTransport(err) && !crossref.IsNotFound(err) {
			row.Status = StatusError
			row.Messages = failureMessages(err)
			return row
		}
		// CrossRef unreachable or the DOI is unknown to it; fall back
		// to the entry's own fields.
	}

	w, err := im.buildLocal(entry)
	if err != nil {
		row.Status = StatusError
		row.Messages = failureMessages(err)
		return row
	}
	row.Status = StatusBibtex
	row.Label = w.Label
	return row
}

// resolveRemote fetches the DOI from CrossRef. The entry's citation
// key, when present, becomes the stored label so that batch imports
// keep their keys regardless of which source wins.
func (im *Importer) resolveRemote(ctx context.Context, doi, key string) (*work.Work, error) {
	r := &resolver.Resolver{Store: im.Store, Fetcher: im.Fetcher}
	w, _, err := r.ResolveWithLabel(ctx, doi, key)
	return w, err
}

func (im *Importer) buildLocal(entry bibtex.Entry) (*work.Work, error) {
	b := &build.Builder{Store: im.Store}
	return b.Build(normalize.FromBibTeX(entry), work.SourceUserUpload)
}

// failureMessages flattens an import failure into display strings,
// expanding field-level validation errors into one message per field
// failure.
func failureMessages(err error) []string {
	var verrs build.ValidationErrors
	if errors.As(err, &verrs) {
		var msgs []string
		for _, field := range verrs.Fields() {
			for _, fe := range verrs[field] {
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Message))
			}
		}
		return msgs
	}
	return []string{err.Error()}
}
