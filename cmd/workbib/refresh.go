package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/resolver"
	"github.com/workbib/workbib/internal/store"
)

var refreshForce bool

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "Query even if queried within the last 24h")
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <label|doi>",
	Short: "Re-query CrossRef for a stored work",
	Long: `Re-query CrossRef for a stored work and update its metadata.

A work is queried at most once per 24 hours unless --force is given.

Example:
  workbib refresh Jennings2019`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
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

	r := &resolver.Resolver{Store: s, Fetcher: newCrossrefClient(cfg)}
	queried, err := r.Refresh(context.Background(), w, refreshForce)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		if !queried {
			fmt.Printf("%s was queried recently; pass --force to query anyway\n", w.Label)
			return nil
		}
		fmt.Printf("Refreshed %s\n\n", w.Label)
		printWorkDetail(w)
	} else {
		if !queried {
			outputJSON(StatusResponse{Status: "rate_limited", Label: w.Label})
			return nil
		}
		outputJSON(w)
	}
	return nil
}
