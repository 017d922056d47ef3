// Package pdf extracts DOIs from PDF documents for quick-add import.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// doiPattern matches 10.NNNN/suffix anywhere in page text. Registrant
// prefixes are 4 to 9 digits; the suffix runs until whitespace or a
// character DOIs never carry.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// scanPages bounds the search. Publishers print the DOI on the first
// page; three covers scanned front matter.
const scanPages = 3

// ExtractDOI returns the first DOI found in the leading pages of the
// PDF at path, or "" when the document carries none. An unreadable
// file is an error; a DOI-less one is not.
func ExtractDOI(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > scanPages {
		pages = scanPages
	}

	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if doi := FindDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// FindDOI returns the first plausible DOI in text, with trailing
// punctuation that text extraction tends to glue on stripped.
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if plausibleDOI(match) {
			return match
		}
	}
	return ""
}

// plausibleDOI filters out regex matches too short or malformed to be
// a registered DOI.
func plausibleDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash > 0 && slash < len(doi)-1
}
