package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/store"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <label|doi>",
	Short: "Delete a work and clean up orphaned authors and subjects",
	Long: `Delete a work. Authors and subjects no longer referenced by any
remaining work are removed with it.

Example:
  workbib delete Jennings2019`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

// DeleteResponse reports a deletion and its cascade cleanup.
type DeleteResponse struct {
	Status          string `json:"status"`
	Label           string `json:"label"`
	AuthorsRemoved  int    `json:"authors_removed"`
	SubjectsRemoved int    `json:"subjects_removed"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	s := mustOpenStore(cfg)
	defer s.Close()

	w, err := lookupWork(s, args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			exitWithError(ExitNotFound, "no work matching %q", args[0])
		}
		exitWithError(ExitError, "getting work: %v", err)
	}

	cleanup, err := s.DeleteWork(w.ID)
	if err != nil {
		exitWithError(ExitError, "deleting %s: %v", w.Label, err)
	}

	if humanOutput {
		fmt.Printf("Deleted %s (%d orphaned authors, %d orphaned subjects removed)\n",
			w.Label, cleanup.AuthorsRemoved, cleanup.SubjectsRemoved)
	} else {
		outputJSON(DeleteResponse{
			Status:          "deleted",
			Label:           w.Label,
			AuthorsRemoved:  cleanup.AuthorsRemoved,
			SubjectsRemoved: cleanup.SubjectsRemoved,
		})
	}
	return nil
}
