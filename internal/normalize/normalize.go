// Package normalize converts raw bibliographic records from the CrossRef
// API or a parsed BibTeX file into the uniform field shape used by the
// store. All functions are pure: no I/O, same input always yields the
// same output.
package normalize

import "strings"

// bibtexFieldMap remaps BibTeX field names to internal field names.
// Keys with no mapping pass through unchanged.
var bibtexFieldMap = map[string]string{
	"doi":       "DOI",
	"url":       "URL",
	"pages":     "page",
	"number":    "issue",
	"ENTRYTYPE": "type",
	"ID":        "label",
	"journal":   "container_title",
	"booktitle": "title",
}

// concatFields are fields the CrossRef API returns as arrays of strings
// but which are stored as a single string.
var concatFields = []string{"title", "subtitle", "container_title"}

// FromAPI normalizes a CrossRef API message document. The API uses
// hyphenated keys ("container-title", "date-parts") while the internal
// schema uses underscores, so every key is rewritten recursively.
// Array-valued title fields are concatenated into single strings.
func FromAPI(raw map[string]any) map[string]any {
	out := replaceKeys(raw, "-", "_")
	for _, field := range concatFields {
		if v, ok := out[field]; ok {
			if s, ok := concatStrings(v); ok {
				out[field] = s
			}
		}
	}
	if doi, ok := out["DOI"].(string); ok {
		out["DOI"] = DOI(doi)
	}
	return out
}

// FromBibTeX normalizes a parsed BibTeX entry by remapping its raw field
// names to internal field names.
func FromBibTeX(entry map[string]string) map[string]any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		if mapped, ok := bibtexFieldMap[k]; ok {
			k = mapped
		}
		out[k] = v
	}
	if doi, ok := out["DOI"].(string); ok {
		out["DOI"] = DOI(doi)
	}
	return out
}

// DOI normalizes a DOI for case-insensitive comparison and storage.
// Removes common URL prefixes and lowercases.
func DOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(doi)
}

// replaceKeys returns a copy of m with token replaced in every key,
// descending into nested maps and into maps inside slices.
func replaceKeys(m map[string]any, token, replaceWith string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		k = strings.ReplaceAll(k, token, replaceWith)
		out[k] = replaceValue(v, token, replaceWith)
	}
	return out
}

func replaceValue(v any, token, replaceWith string) any {
	switch val := v.(type) {
	case map[string]any:
		return replaceKeys(val, token, replaceWith)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = replaceValue(item, token, replaceWith)
		}
		return out
	default:
		return v
	}
}

// concatStrings joins a list of strings with no separator. Returns false
// if the value is not a list of strings.
func concatStrings(v any) (string, bool) {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ""), true
	case []any:
		var b strings.Builder
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	default:
		return "", false
	}
}
