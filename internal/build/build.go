// Package build validates a normalized record and persists it as a
// work, deriving a citation label when none is supplied.
package build

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/workbib/workbib/internal/normalize"
	"github.com/workbib/workbib/internal/reconcile"
	"github.com/workbib/workbib/internal/store"
	"github.com/workbib/workbib/internal/work"
)

// Maximum stored lengths per field.
var maxLengths = map[string]int{
	"DOI":             128,
	"URL":             128,
	"label":           64,
	"type":            64,
	"container_title": 128,
	"title":           512,
	"volume":          16,
	"issue":           16,
	"page":            16,
	"language":        16,
}

const labelLetters = "abcdefghijklmnopqrstuvwxyz"

// Builder validates normalized records against the store and persists
// them. Field validation, uniqueness pre-checks and label derivation
// all happen before the single insert transaction, so a failure leaves
// no partial state.
type Builder struct {
	Store *store.Store
}

// Build validates normalized and persists it as a work with the given
// provenance source. On validation failure it returns ValidationErrors
// and persists nothing; a storage-level uniqueness race surfaces as
// *store.ConstraintError for the caller's bounded retry.
func (b *Builder) Build(normalized map[string]any, source string) (*work.Work, error) {
	verrs := ValidationErrors{}

	w := &work.Work{Source: source}
	w.DOI = normalize.DOI(b.stringField(normalized, "DOI", verrs))
	w.URL = b.stringField(normalized, "URL", verrs)
	w.Label = b.stringField(normalized, "label", verrs)
	w.Type = slugify(b.stringField(normalized, "type", verrs))
	w.Title = b.stringField(normalized, "title", verrs)
	w.ContainerTitle = b.stringField(normalized, "container_title", verrs)
	w.Volume = b.stringField(normalized, "volume", verrs)
	w.Issue = b.stringField(normalized, "issue", verrs)
	w.Page = b.stringField(normalized, "page", verrs)
	w.Abstract = b.stringField(normalized, "abstract", verrs)
	w.Language = b.stringField(normalized, "language", verrs)
	w.Subjects = subjectNames(normalized["subject"])

	published, err := publishedDate(normalized)
	if err != nil {
		var invalid *normalize.InvalidDateError
		if errors.As(err, &invalid) {
			verrs.Add("published", CodeInvalid, "%s", invalid.Reason)
		} else {
			return nil, err
		}
	}
	w.Published = published

	descriptors, err := authorDescriptors(normalized["author"])
	if err != nil {
		var invalid *reconcile.InvalidAuthorError
		if errors.As(err, &invalid) {
			verrs.Add("author", CodeInvalid, "%s", invalid.Reason)
		} else {
			return nil, err
		}
	}

	b.checkUniqueness(w, verrs)

	if len(verrs) > 0 {
		return nil, verrs
	}

	authors, err := reconcile.Reconcile(b.Store, descriptors)
	if err != nil {
		var invalid *reconcile.InvalidAuthorError
		if errors.As(err, &invalid) {
			verrs.Add("author", CodeInvalid, "%s", invalid.Reason)
			return nil, verrs
		}
		return nil, err
	}
	w.Authors = authors

	if w.Label == "" {
		label, err := b.deriveLabel(w)
		if err != nil {
			return nil, err
		}
		if label == "" {
			verrs.Add("label", CodeRequired,
				"no label supplied and none derivable (need lead author and year)")
			return nil, verrs
		}
		w.Label = label
	}

	if err := b.Store.CreateWork(w); err != nil {
		return nil, err
	}
	return w, nil
}

// stringField extracts and validates one string field, recording type
// and length failures.
func (b *Builder) stringField(normalized map[string]any, field string, verrs ValidationErrors) string {
	v, ok := normalized[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		verrs.Add(field, CodeInvalid, "expected string, got %T", v)
		return ""
	}
	s = strings.TrimSpace(s)
	if limit, ok := maxLengths[field]; ok && len(s) > limit {
		verrs.Add(field, CodeMaxLength, "exceeds %d characters", limit)
	}
	return s
}

// checkUniqueness pre-checks DOI/URL/label against the store so callers
// get a clean field error instead of a raw storage exception. The
// unique indexes remain the authoritative backstop.
func (b *Builder) checkUniqueness(w *work.Work, verrs ValidationErrors) {
	if w.DOI != "" {
		if exists, err := b.Store.HasDOI(w.DOI); err == nil && exists {
			verrs.Add("DOI", CodeUnique, "work with DOI %s already exists", normalize.DOI(w.DOI))
		}
	}
	if w.URL != "" {
		if exists, err := b.Store.HasURL(w.URL); err == nil && exists {
			verrs.Add("URL", CodeUnique, "work with URL %s already exists", w.URL)
		}
	}
	if w.Label != "" {
		if exists, err := b.Store.HasLabel(w.Label); err == nil && exists {
			verrs.Add("label", CodeUnique, "work with label %s already exists", w.Label)
		}
	}
}

// deriveLabel builds "FamilyYear" from the lead author and publication
// year, appending a sequential letter when labels with that prefix
// already exist ("Smith2020" taken -> "Smith2020a").
//
// The count-based suffix is order-dependent: two concurrent imports can
// both see the same count before either commits. Known race, resolved
// by the label unique index rejecting the loser.
func (b *Builder) deriveLabel(w *work.Work) (string, error) {
	if len(w.Authors) == 0 || w.Published.Year == 0 {
		return "", nil
	}

	label := fmt.Sprintf("%s%d", sanitizeLabel(w.Authors[0].Family), w.Published.Year)
	count, err := b.Store.CountLabelPrefix(label)
	if err != nil {
		return "", fmt.Errorf("counting label prefix %q: %w", label, err)
	}
	if count > 0 {
		if count > len(labelLetters) {
			return "", fmt.Errorf("label suffix space exhausted for %q", label)
		}
		label += string(labelLetters[count-1])
	}
	return label, nil
}

// sanitizeLabel keeps letters and digits only.
func sanitizeLabel(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// slugify lowercases and hyphenates a work type ("Journal Article" ->
// "journal-article"). CrossRef types arrive pre-slugged.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_'
	}), "-")
}

// publishedDate resolves the published date from the shapes the two
// sources produce: an explicit "published"/"issued" document (API) or
// top-level year/month/day scalars (BibTeX).
func publishedDate(normalized map[string]any) (work.PublicationDate, error) {
	for _, key := range []string{"published", "issued"} {
		if v, ok := normalized[key]; ok && v != nil {
			return normalize.ParseDate(v)
		}
	}
	if _, ok := normalized["year"]; ok {
		return normalize.ParseDate(map[string]any{
			"year":  normalized["year"],
			"month": normalized["month"],
			"day":   normalized["day"],
		})
	}
	return work.PublicationDate{}, nil
}

// authorDescriptors converts the author field into descriptor maps.
// The API supplies a list of maps; BibTeX supplies a single "Family,
// Given and Family, Given" string.
func authorDescriptors(v any) ([]map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return val, nil
	case []any:
		descriptors := make([]map[string]any, 0, len(val))
		for _, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &reconcile.InvalidAuthorError{
					Descriptor: map[string]any{"value": item},
					Reason:     fmt.Sprintf("author entry is %T, want object", item),
				}
			}
			descriptors = append(descriptors, m)
		}
		return descriptors, nil
	case string:
		return parseBibtexAuthors(val), nil
	default:
		return nil, &reconcile.InvalidAuthorError{
			Descriptor: map[string]any{"value": v},
			Reason:     fmt.Sprintf("author field is %T", v),
		}
	}
}

// subjectNames extracts subject strings, silently dropping anything
// that is not a string. Subjects are supplementary metadata and never
// fail a build.
func subjectNames(v any) []string {
	var names []string
	switch val := v.(type) {
	case []string:
		names = append(names, val...)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				names = append(names, strings.TrimSpace(s))
			}
		}
	}
	return names
}

// parseBibtexAuthors splits a BibTeX author string on " and " and each
// name into given/family. "Family, Given" is preferred; a plain
// "Given Family" takes the last word as family.
func parseBibtexAuthors(s string) []map[string]any {
	var descriptors []map[string]any
	for _, name := range strings.Split(s, " and ") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var given, family string
		if idx := strings.Index(name, ","); idx >= 0 {
			family = strings.TrimSpace(name[:idx])
			given = strings.TrimSpace(name[idx+1:])
		} else {
			parts := strings.Fields(name)
			family = parts[len(parts)-1]
			given = strings.Join(parts[:len(parts)-1], " ")
		}
		descriptors = append(descriptors, map[string]any{"given": given, "family": family})
	}
	return descriptors
}
