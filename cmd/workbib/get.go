package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/store"
	"github.com/workbib/workbib/internal/work"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <label|doi>",
	Short: "Get a single work by label or DOI",
	Long: `Get a single work by its citation label or DOI.

Examples:
  workbib get Jennings2019
  workbib get 10.1016/j.gca.2019.08.005`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
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

	if humanOutput {
		printWorkDetail(w)
	} else {
		outputJSON(w)
	}
	return nil
}

// lookupWork resolves an identifier to a work. Anything shaped like a
// DOI is tried as one first; everything else is a label.
func lookupWork(s *store.Store, id string) (*work.Work, error) {
	if strings.HasPrefix(id, "10.") && strings.Contains(id, "/") {
		w, err := s.GetWorkByDOI(id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return w, err
		}
	}
	return s.GetWorkByLabel(id)
}
