package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/bibtex"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library as BibTeX",
	Long: `Export all stored works as a BibTeX file, newest first.

Examples:
  workbib export
  workbib export --out refs.bib`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	s := mustOpenStore(cfg)
	defer s.Close()

	works, err := s.ListWorks()
	if err != nil {
		exitWithError(ExitError, "listing works: %v", err)
	}

	out := bibtex.SerializeList(works)
	if exportOut == "" {
		fmt.Print(out)
		return nil
	}

	if err := os.WriteFile(exportOut, []byte(out), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOut, err)
	}
	if humanOutput {
		fmt.Printf("Wrote %d works to %s\n", len(works), exportOut)
	} else {
		outputJSON(StatusResponse{Status: "exported", Path: exportOut})
	}
	return nil
}
