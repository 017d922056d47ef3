package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/crossref"
	"github.com/workbib/workbib/internal/pdf"
	"github.com/workbib/workbib/internal/resolver"
	"github.com/workbib/workbib/internal/work"
)

var addPDFPath string

func init() {
	addCmd.Flags().StringVar(&addPDFPath, "pdf", "", "Extract the DOI from this PDF instead of an argument")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add [doi]",
	Short: "Add a work by DOI",
	Long: `Add a single work by DOI, fetching metadata from CrossRef.

With --pdf the DOI is extracted from the PDF's leading pages instead
of being passed as an argument.

Examples:
  workbib add 10.1016/j.gca.2019.08.005
  workbib add --pdf paper.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

// AddResponse reports the outcome of an add.
type AddResponse struct {
	Created bool       `json:"created"`
	Work    *work.Work `json:"work"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	doi, err := addDOI(args)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	cfg := mustLoadConfig()
	s := mustOpenStore(cfg)
	defer s.Close()

	r := &resolver.Resolver{Store: s, Fetcher: newCrossrefClient(cfg)}
	w, created, err := r.Resolve(context.Background(), doi)
	if err != nil {
		if crossref.IsNotFound(err) {
			exitWithError(ExitNotFound, "DOI not found at CrossRef: %s", doi)
		}
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		if created {
			fmt.Printf("Added %s\n\n", w.Label)
		} else {
			fmt.Printf("Already stored as %s\n\n", w.Label)
		}
		printWorkDetail(w)
	} else {
		outputJSON(AddResponse{Created: created, Work: w})
	}
	return nil
}

func addDOI(args []string) (string, error) {
	switch {
	case addPDFPath != "" && len(args) > 0:
		return "", errors.New("pass a DOI or --pdf, not both")
	case addPDFPath != "":
		doi, err := pdf.ExtractDOI(addPDFPath)
		if err != nil {
			return "", err
		}
		if doi == "" {
			return "", fmt.Errorf("no DOI found in %s", addPDFPath)
		}
		return doi, nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("a DOI argument or --pdf is required")
	}
}
