// Package main provides the workbib CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/workbib/workbib/internal/config"
	"github.com/workbib/workbib/internal/crossref"
	"github.com/workbib/workbib/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workbib",
	Short: "Bibliographic import and reconciliation CLI",
	Long: `workbib maintains a local library of bibliographic works.

Core features:
  - Batch import from BibTeX files, enriched with CrossRef metadata
  - Quick add by DOI or by DOI extracted from a PDF
  - Author deduplication and citation-label derivation
  - BibTeX export of the stored library

Works are stored in SQLite. All commands output JSON by default;
pass --human for formatted text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustLoadConfig loads global config plus .env overrides, exits on error.
func mustLoadConfig() *config.Config {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenStore opens the works database, exits on error.
// The caller is responsible for calling Close() on the returned store.
func mustOpenStore(cfg *config.Config) *store.Store {
	if err := cfg.EnsureDBDir(); err != nil {
		exitWithError(ExitError, "creating data directory: %v", err)
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return s
}

// newCrossrefClient builds a CrossRef client from config.
func newCrossrefClient(cfg *config.Config) *crossref.Client {
	var opts []crossref.ClientOption
	if cfg.CrossrefMailto != "" {
		opts = append(opts, crossref.WithMailto(cfg.CrossrefMailto))
	}
	if cfg.CrossrefAPIKey != "" {
		opts = append(opts, crossref.WithAPIKey(cfg.CrossrefAPIKey))
	}
	return crossref.NewClient(opts...)
}
