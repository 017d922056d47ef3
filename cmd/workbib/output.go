package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/workbib/workbib/internal/work"
)

const (
	// Title truncation length for list output.
	ListTitleMaxLen = 60

	// Text wrapping width for detail views.
	TextWrapWidth = 68
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Label  string `json:"label,omitempty"`
	Path   string `json:"path,omitempty"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// printWorkDetail prints a work in human-readable detail form.
func printWorkDetail(w *work.Work) {
	fmt.Println(w.Label)
	fmt.Println(strings.Repeat("=", len(w.Label)))
	fmt.Println()

	fmt.Printf("Title:     %s\n", wrapText(w.Title, TextWrapWidth, "           "))
	if len(w.Authors) > 0 {
		names := make([]string, len(w.Authors))
		for i, a := range w.Authors {
			names[i] = a.Name()
		}
		fmt.Printf("Authors:   %s\n", wrapText(strings.Join(names, ", "), TextWrapWidth, "           "))
	}
	if w.ContainerTitle != "" {
		fmt.Printf("In:        %s\n", w.ContainerTitle)
	}
	if !w.Published.IsZero() {
		fmt.Printf("Date:      %s\n", w.Published)
	}
	if w.Volume != "" || w.Issue != "" || w.Page != "" {
		fmt.Printf("Cite:      vol %s, no %s, pp %s\n", w.Volume, w.Issue, w.Page)
	}
	if w.DOI != "" {
		fmt.Printf("DOI:       %s\n", w.DOI)
	}
	if w.URL != "" {
		fmt.Printf("URL:       %s\n", w.URL)
	}
	if len(w.Subjects) > 0 {
		fmt.Printf("Subjects:  %s\n", strings.Join(w.Subjects, ", "))
	}
	fmt.Printf("Source:    %s\n", w.Source)
	if w.Abstract != "" {
		fmt.Println()
		fmt.Println("Abstract:")
		fmt.Printf("  %s\n", wrapText(w.Abstract, TextWrapWidth, "  "))
	}
}

// printWorkLine prints one work as a list row.
func printWorkLine(w *work.Work) {
	year := "----"
	if w.Published.Year > 0 {
		year = fmt.Sprintf("%d", w.Published.Year)
	}
	fmt.Printf("%-20s %s  %s\n", w.Label, year, truncateString(w.Title, ListTitleMaxLen))
	if citation := w.AuthorsCitation(); citation != "" {
		fmt.Printf("%-20s %s\n", "", citation)
	}
}
