package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/workbib/workbib/internal/build"
	"github.com/workbib/workbib/internal/crossref"
	"github.com/workbib/workbib/internal/store"
	"github.com/workbib/workbib/internal/work"
)

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, doi string) (map[string]any, error)

func (f fetcherFunc) Works(ctx context.Context, doi string) (map[string]any, error) {
	return f(ctx, doi)
}

func newResolver(t *testing.T, fetch fetcherFunc) *Resolver {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Resolver{Store: s, Fetcher: fetch}
}

// apiMessage is a CrossRef works message as the client returns it,
// hyphen keys and all.
func apiMessage(doi string) map[string]any {
	return map[string]any{
		"DOI":             doi,
		"type":            "journal-article",
		"title":           []any{"Heat flow and the structure of the lithosphere"},
		"container-title": []any{"Tectonophysics"},
		"volume":          "12",
		"published": map[string]any{
			"date-parts": []any{[]any{float64(2019), float64(8), float64(14)}},
		},
		"author": []any{
			map[string]any{"given": "Samuel", "family": "Jennings"},
		},
	}
}

func TestResolve_CreatesFromCrossref(t *testing.T) {
	var fetched []string
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		fetched = append(fetched, doi)
		return apiMessage("10.1016/j.tecto.2019.01.001"), nil
	})

	w, created, err := r.Resolve(context.Background(), "10.1016/J.TECTO.2019.01.001")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if w.DOI != "10.1016/j.tecto.2019.01.001" {
		t.Errorf("DOI = %q", w.DOI)
	}
	if w.Label != "Jennings2019" {
		t.Errorf("Label = %q", w.Label)
	}
	if w.Source != work.SourceCrossref {
		t.Errorf("Source = %q", w.Source)
	}
	if !w.DOIQueried || w.LastQueriedCrossref.IsZero() {
		t.Error("query bookkeeping not stamped")
	}
	if len(fetched) != 1 {
		t.Errorf("fetch count = %d, want 1", len(fetched))
	}
}

func TestResolve_ReturnsExistingWithoutFetch(t *testing.T) {
	fetches := 0
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		fetches++
		return apiMessage(doi), nil
	})

	first, _, err := r.Resolve(context.Background(), "10.1000/exists")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	second, created, err := r.Resolve(context.Background(), "10.1000/EXISTS")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if created {
		t.Error("created = true on second resolve")
	}
	if second.ID != first.ID {
		t.Errorf("second resolve returned work %d, want %d", second.ID, first.ID)
	}
	if fetches != 1 {
		t.Errorf("fetch count = %d, want 1", fetches)
	}
}

func TestResolve_CanonicalDOIAlias(t *testing.T) {
	// CrossRef resolves the alias to a canonical DOI that we already
	// hold. No duplicate should be created.
	canonical := "10.1000/canonical"
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		return apiMessage(canonical), nil
	})

	first, _, err := r.Resolve(context.Background(), canonical)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	aliased, created, err := r.Resolve(context.Background(), "10.1000/alias")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if created {
		t.Error("created = true for aliased DOI")
	}
	if aliased.ID != first.ID {
		t.Errorf("alias resolved to work %d, want %d", aliased.ID, first.ID)
	}
}

func TestResolveWithLabel_KeepsSuppliedLabel(t *testing.T) {
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		return apiMessage(doi), nil
	})

	w, created, err := r.ResolveWithLabel(context.Background(), "10.1000/keyed", "jennings2019heat")
	if err != nil {
		t.Fatalf("ResolveWithLabel() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if w.Label != "jennings2019heat" {
		t.Errorf("Label = %q, want supplied label", w.Label)
	}

	stored, err := r.Store.GetWorkByLabel("jennings2019heat")
	if err != nil {
		t.Fatalf("GetWorkByLabel() error = %v", err)
	}
	if stored.ID != w.ID {
		t.Errorf("stored work %d, want %d", stored.ID, w.ID)
	}
}

func TestLookupCanonical_MissIsResolutionFailure(t *testing.T) {
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		t.Fatal("fetch should not be called")
		return nil, nil
	})

	_, created, err := r.lookupCanonical("10.1000/vanished")
	if created {
		t.Error("created = true on lookup miss")
	}
	var rerr *ResolutionFailedError
	if !errors.As(err, &rerr) {
		t.Fatalf("lookupCanonical() error = %v, want ResolutionFailedError", err)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error does not wrap the underlying miss: %v", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		return nil, &crossref.APIError{StatusCode: 404, DOI: doi}
	})

	_, _, err := r.Resolve(context.Background(), "10.1000/missing")
	var rerr *ResolutionFailedError
	if !errors.As(err, &rerr) {
		t.Fatalf("Resolve() error = %v, want ResolutionFailedError", err)
	}
	if !crossref.IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestResolve_EmptyDOI(t *testing.T) {
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		t.Fatal("fetch should not be called")
		return nil, nil
	})
	if _, _, err := r.Resolve(context.Background(), "  "); err == nil {
		t.Fatal("Resolve() expected error for empty DOI")
	}
}

func TestResolve_ValidationErrorPropagates(t *testing.T) {
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		m := apiMessage(doi)
		m["volume"] = "99999999999999999999" // over the stored limit
		return m, nil
	})

	_, _, err := r.Resolve(context.Background(), "10.1000/badmeta")
	var verrs build.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Resolve() error = %v, want ValidationErrors", err)
	}
}

func TestRefresh_GateAndForce(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	fetches := 0
	r := newResolver(t, func(ctx context.Context, doi string) (map[string]any, error) {
		fetches++
		m := apiMessage(doi)
		m["title"] = []any{"Updated title"}
		return m, nil
	})
	r.Now = func() time.Time { return now }

	w, _, err := r.Resolve(context.Background(), "10.1000/fresh")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Queried moments ago, gate holds.
	queried, err := r.Refresh(context.Background(), w, false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if queried {
		t.Error("Refresh() queried within the gate window")
	}
	if fetches != 1 {
		t.Fatalf("fetch count = %d, want 1", fetches)
	}

	queried, err = r.Refresh(context.Background(), w, true)
	if err != nil {
		t.Fatalf("Refresh(force) error = %v", err)
	}
	if !queried {
		t.Error("Refresh(force) did not query")
	}
	if w.Title != "Updated title" {
		t.Errorf("Title = %q after refresh", w.Title)
	}

	stored, err := r.Store.GetWorkByDOI("10.1000/fresh")
	if err != nil {
		t.Fatalf("GetWorkByDOI() error = %v", err)
	}
	if stored.Title != "Updated title" {
		t.Errorf("stored Title = %q after refresh", stored.Title)
	}
}
