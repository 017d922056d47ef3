// Package reconcile resolves author descriptors against stored author
// rows, creating rows on first reference and never duplicating a
// (given, family) pair.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/workbib/workbib/internal/work"
)

// AuthorStore is the store capability the reconciler needs.
type AuthorStore interface {
	FindOrCreateAuthor(a work.Author) (work.Author, bool, error)
}

// InvalidAuthorError reports a descriptor that fails type constraints.
// The offending descriptor is attached for diagnostics.
type InvalidAuthorError struct {
	Descriptor map[string]any
	Reason     string
}

func (e *InvalidAuthorError) Error() string {
	return fmt.Sprintf("invalid author %v: %s", e.Descriptor, e.Reason)
}

// Reconcile maps an ordered list of author descriptors to stored author
// rows. Each descriptor supplies at least given/family; punctuation is
// stripped from given before matching. The returned slice preserves
// input order; index becomes the stored position. An empty or nil
// input is valid and yields an empty result.
//
// Metadata beyond the name pair (ORCID, affiliation, prefix, suffix) is
// written only when a row is created; existing rows are returned as
// stored.
func Reconcile(store AuthorStore, descriptors []map[string]any) ([]work.Author, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	authors := make([]work.Author, 0, len(descriptors))
	for _, desc := range descriptors {
		a, err := descriptorToAuthor(desc)
		if err != nil {
			return nil, err
		}

		resolved, _, err := store.FindOrCreateAuthor(a)
		if err != nil {
			return nil, fmt.Errorf("reconciling author %q: %w", a.Name(), err)
		}
		authors = append(authors, resolved)
	}

	return authors, nil
}

// descriptorToAuthor validates and converts one descriptor.
func descriptorToAuthor(desc map[string]any) (work.Author, error) {
	given, err := stringField(desc, "given")
	if err != nil {
		return work.Author{}, err
	}
	family, err := stringField(desc, "family")
	if err != nil {
		return work.Author{}, err
	}
	if family == "" {
		return work.Author{}, &InvalidAuthorError{Descriptor: desc, Reason: "missing family name"}
	}

	a := work.Author{
		Given:  CleanGiven(given),
		Family: strings.TrimSpace(family),
	}

	if v, err := stringField(desc, "prefix"); err == nil {
		a.Prefix = v
	} else {
		return work.Author{}, err
	}
	if v, err := stringField(desc, "suffix"); err == nil {
		a.Suffix = v
	} else {
		return work.Author{}, err
	}
	if v, err := stringField(desc, "ORCID"); err == nil {
		a.ORCID = v
	} else {
		return work.Author{}, err
	}
	if v, ok := desc["authenticated_orcid"].(bool); ok {
		a.AuthenticatedORCID = v
	}
	a.Affiliation = affiliationNames(desc["affiliation"])

	return a, nil
}

// CleanGiven strips commas and periods from a given name so that
// "D." and "D" reconcile to the same author.
func CleanGiven(given string) string {
	given = strings.ReplaceAll(given, ",", "")
	given = strings.ReplaceAll(given, ".", "")
	return strings.TrimSpace(given)
}

// stringField extracts an optional string field, rejecting non-string
// values with *InvalidAuthorError.
func stringField(desc map[string]any, key string) (string, error) {
	v, ok := desc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidAuthorError{
			Descriptor: desc,
			Reason:     fmt.Sprintf("%s is %T, want string", key, v),
		}
	}
	return s, nil
}

// affiliationNames extracts affiliation names from the API shape
// [{"name": "..."}] or a plain list of strings.
func affiliationNames(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range items {
		switch val := item.(type) {
		case string:
			names = append(names, val)
		case map[string]any:
			if name, ok := val["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}
