// Package resolver answers "give me the work for this DOI": it checks
// the local store first and falls back to a CrossRef lookup, creating
// the work on first sight.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workbib/workbib/internal/build"
	"github.com/workbib/workbib/internal/crossref"
	"github.com/workbib/workbib/internal/normalize"
	"github.com/workbib/workbib/internal/store"
	"github.com/workbib/workbib/internal/work"
)

// Fetcher fetches a single work record from CrossRef. *crossref.Client
// satisfies it.
type Fetcher interface {
	Works(ctx context.Context, doi string) (map[string]any, error)
}

// ResolutionFailedError reports a DOI that could not be resolved to a
// work, locally or remotely.
type ResolutionFailedError struct {
	DOI string
	Err error
}

func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("resolving DOI %s: %v", e.DOI, e.Err)
}

func (e *ResolutionFailedError) Unwrap() error { return e.Err }

// Resolver resolves DOIs to works.
type Resolver struct {
	Store   *store.Store
	Fetcher Fetcher

	// Now is the clock used for query bookkeeping. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve returns the work for doi, creating it from a CrossRef lookup
// when no local work matches. The boolean reports whether a work was
// created. DOI matching is case-insensitive.
//
// When CrossRef reports a canonical DOI differing from the queried one
// and a work under the canonical DOI already exists, that work is
// returned instead of a duplicate being created.
func (r *Resolver) Resolve(ctx context.Context, doi string) (*work.Work, bool, error) {
	return r.resolve(ctx, doi, "")
}

// ResolveWithLabel behaves like Resolve but gives a newly created work
// the supplied citation label instead of deriving one. Batch import
// uses it to carry a BibTeX entry's key through the CrossRef path.
func (r *Resolver) ResolveWithLabel(ctx context.Context, doi, label string) (*work.Work, bool, error) {
	return r.resolve(ctx, doi, label)
}

func (r *Resolver) resolve(ctx context.Context, doi, label string) (*work.Work, bool, error) {
	doi = normalize.DOI(doi)
	if doi == "" {
		return nil, false, &ResolutionFailedError{DOI: doi, Err: errors.New("empty DOI")}
	}

	w, err := r.Store.GetWorkByDOI(doi)
	if err == nil {
		return w, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	return r.fetchAndBuild(ctx, doi, label)
}

// fetchAndBuild queries CrossRef and persists the result. A uniqueness
// failure on the DOI means another path created the work between our
// lookup and insert (or the canonical DOI differs); both resolve to one
// re-lookup returning the existing work, not a creation.
func (r *Resolver) fetchAndBuild(ctx context.Context, doi, label string) (*work.Work, bool, error) {
	message, err := r.Fetcher.Works(ctx, doi)
	if err != nil {
		return nil, false, &ResolutionFailedError{DOI: doi, Err: err}
	}

	normalized := normalize.FromAPI(message)
	if label != "" {
		normalized["label"] = label
	}
	builder := &build.Builder{Store: r.Store}

	w, err := builder.Build(normalized, work.SourceCrossref)
	if err == nil {
		r.markQueried(w)
		return w, true, nil
	}

	canonical := canonicalDOI(normalized, doi)

	var verrs build.ValidationErrors
	if errors.As(err, &verrs) && verrs.HasCode("DOI", build.CodeUnique) {
		return r.lookupCanonical(canonical)
	}
	var cerr *store.ConstraintError
	if errors.As(err, &cerr) && cerr.Column == "doi" {
		return r.lookupCanonical(canonical)
	}
	return nil, false, err
}

// lookupCanonical is the bounded re-lookup after a DOI uniqueness
// collision. A miss here means the winning record vanished between the
// collision and the lookup; that surfaces as a resolution failure, not
// a raw storage error.
func (r *Resolver) lookupCanonical(doi string) (*work.Work, bool, error) {
	w, err := r.Store.GetWorkByDOI(doi)
	if err != nil {
		return nil, false, &ResolutionFailedError{DOI: doi, Err: err}
	}
	return w, false, nil
}

// Refresh re-queries CrossRef for an existing work and applies the
// returned metadata, honoring the once-per-day query gate unless force
// is set. It reports whether a query was made.
func (r *Resolver) Refresh(ctx context.Context, w *work.Work, force bool) (bool, error) {
	if w.DOI == "" {
		return false, &ResolutionFailedError{Err: errors.New("work has no DOI")}
	}
	now := r.now()
	if !force && !w.CanQueryCrossref(now) {
		return false, nil
	}

	message, err := r.Fetcher.Works(ctx, w.DOI)
	if err != nil {
		if crossref.IsNotFound(err) {
			// Record the attempt so a dead DOI is not retried
			// until tomorrow.
			if terr := r.Store.TouchCrossrefQuery(w.ID, now); terr != nil {
				return false, terr
			}
			w.LastQueriedCrossref = now
			w.DOIQueried = true
		}
		return false, &ResolutionFailedError{DOI: w.DOI, Err: err}
	}

	applyRefresh(w, normalize.FromAPI(message))
	if err := r.Store.UpdateWorkFields(w); err != nil {
		return false, err
	}
	if err := r.Store.TouchCrossrefQuery(w.ID, now); err != nil {
		return false, err
	}
	w.LastQueriedCrossref = now
	w.DOIQueried = true
	return true, nil
}

// markQueried stamps a freshly created work as queried now. Failures
// here are bookkeeping only and do not fail the resolution.
func (r *Resolver) markQueried(w *work.Work) {
	now := r.now()
	if err := r.Store.TouchCrossrefQuery(w.ID, now); err == nil {
		w.LastQueriedCrossref = now
		w.DOIQueried = true
	}
}

// applyRefresh overwrites the work's bibliographic fields with the
// normalized record's values, leaving identity (ID, DOI, label, source)
// untouched.
func applyRefresh(w *work.Work, normalized map[string]any) {
	setString := func(dst *string, key string) {
		if s, ok := normalized[key].(string); ok && s != "" {
			*dst = s
		}
	}
	setString(&w.Title, "title")
	setString(&w.ContainerTitle, "container_title")
	setString(&w.Volume, "volume")
	setString(&w.Issue, "issue")
	setString(&w.Page, "page")
	setString(&w.Abstract, "abstract")
	setString(&w.Language, "language")
	setString(&w.URL, "URL")

	for _, key := range []string{"published", "issued"} {
		if v, ok := normalized[key]; ok && v != nil {
			if d, err := normalize.ParseDate(v); err == nil && !d.IsZero() {
				w.Published = d
			}
			break
		}
	}
}

// canonicalDOI returns the normalized DOI the API reported, falling
// back to the queried one.
func canonicalDOI(normalized map[string]any, queried string) string {
	if s, ok := normalized["DOI"].(string); ok && s != "" {
		return normalize.DOI(s)
	}
	return queried
}
