package bibtex

import (
	"fmt"
	"strings"

	"github.com/workbib/workbib/internal/work"
)

// entryTypes maps CrossRef work types to BibTeX entry types. Unmapped
// types fall back to "misc".
var entryTypes = map[string]string{
	"journal-article":     "article",
	"article":             "article",
	"proceedings-article": "inproceedings",
	"inproceedings":       "inproceedings",
	"book-chapter":        "incollection",
	"incollection":        "incollection",
	"book":                "book",
	"monograph":           "book",
	"report":              "techreport",
	"techreport":          "techreport",
	"dissertation":        "phdthesis",
	"phdthesis":           "phdthesis",
}

// Serialize renders a stored work as a BibTeX entry.
func Serialize(w *work.Work) string {
	entryType, ok := entryTypes[w.Type]
	if !ok {
		entryType = "misc"
		if w.Type == "" {
			entryType = "article"
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, w.Label))

	if len(w.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(w.Authors)))
	}
	if w.Title != "" {
		b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(w.Title)))
	}
	if w.ContainerTitle != "" {
		field := "journal"
		if entryType == "inproceedings" || entryType == "incollection" {
			field = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", field, escapeLatex(w.ContainerTitle)))
	}
	if w.Published.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", w.Published.Year))
	}
	if w.Published.Month > 0 {
		b.WriteString(fmt.Sprintf("  month = {%d},\n", w.Published.Month))
	}
	if w.Volume != "" {
		b.WriteString(fmt.Sprintf("  volume = {%s},\n", w.Volume))
	}
	if w.Issue != "" {
		b.WriteString(fmt.Sprintf("  number = {%s},\n", w.Issue))
	}
	if w.Page != "" {
		b.WriteString(fmt.Sprintf("  pages = {%s},\n", w.Page))
	}
	if w.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", w.DOI))
	}
	if w.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", w.URL))
	}
	if w.Abstract != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(w.Abstract)))
	}

	b.WriteString("}\n")
	return b.String()
}

// SerializeList renders multiple works separated by blank lines.
func SerializeList(works []*work.Work) string {
	entries := make([]string, len(works))
	for i, w := range works {
		entries[i] = Serialize(w)
	}
	return strings.Join(entries, "\n")
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []work.Author) string {
	var formatted []string
	for _, a := range authors {
		if a.Given != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", a.Family, a.Given))
		} else {
			formatted = append(formatted, a.Family)
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
