package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/bibtex"
	"github.com/workbib/workbib/internal/importer"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file.bib>",
	Short: "Import works from a BibTeX file",
	Long: `Import works from a BibTeX file.

Each entry with a DOI is looked up at CrossRef; entries whose DOI is
already stored are skipped, and entries without a DOI (or whose DOI
CrossRef cannot resolve) are created from their own BibTeX fields.
Citation keys are kept as labels either way.

Example:
  workbib import references.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	s := mustOpenStore(cfg)
	defer s.Close()

	f, err := os.Open(args[0])
	if err != nil {
		exitWithError(ExitError, "opening %s: %v", args[0], err)
	}
	defer f.Close()

	entries, err := bibtex.Parse(f)
	if err != nil {
		exitWithError(ExitDataError, "parsing %s: %v", args[0], err)
	}
	if len(entries) == 0 {
		exitWithError(ExitDataError, "no entries in %s", args[0])
	}

	im := &importer.Importer{Store: s, Fetcher: newCrossrefClient(cfg)}
	report := im.ImportBatch(context.Background(), entries)

	if humanOutput {
		printReportHuman(report)
	} else {
		outputJSON(report)
	}

	if counts := report.Counts(); counts[importer.StatusError] == len(entries) {
		os.Exit(ExitDataError)
	}
	return nil
}

func printReportHuman(report *importer.Report) {
	for _, row := range report.Rows {
		name := row.Label
		if name == "" {
			name = row.Key
		}
		if name == "" {
			name = row.DOI
		}
		fmt.Printf("%-8s %s\n", row.Status, name)
		for _, msg := range row.Messages {
			fmt.Printf("         %s\n", msg)
		}
	}

	counts := report.Counts()
	fmt.Printf("\n%d imported via CrossRef, %d from BibTeX, %d skipped, %d failed\n",
		counts[importer.StatusCrossref], counts[importer.StatusBibtex],
		counts[importer.StatusSkipped], counts[importer.StatusError])
}
