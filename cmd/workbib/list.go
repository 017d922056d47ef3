package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/work"
)

var listAuthor string

func init() {
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Only works with an author whose name contains this")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored works",
	Long: `List stored works, newest first.

Examples:
  workbib list
  workbib list --author hasterok`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	s := mustOpenStore(cfg)
	defer s.Close()

	works, err := s.ListWorks()
	if err != nil {
		exitWithError(ExitError, "listing works: %v", err)
	}
	if listAuthor != "" {
		works = filterByAuthor(works, listAuthor)
	}

	if humanOutput {
		for _, w := range works {
			printWorkLine(w)
		}
		fmt.Printf("\n%d works\n", len(works))
	} else {
		outputJSON(works)
	}
	return nil
}

func filterByAuthor(works []*work.Work, name string) []*work.Work {
	name = strings.ToLower(name)
	var matched []*work.Work
	for _, w := range works {
		for _, a := range w.Authors {
			if strings.Contains(strings.ToLower(a.Name()), name) {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched
}
