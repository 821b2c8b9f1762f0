package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ochairo/pkgguard/internal/external-adapters/bolt"
	"github.com/ochairo/pkgguard/internal/external-adapters/yaml"
)

// historyFlags filter the history listing
type historyFlags struct {
	configPath string
	dbPath     string
	name       string
	id         string
	limit      int
	jsonOutput bool
}

func runHistory(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var opts historyFlags
	fs.StringVar(&opts.configPath, "config", "", "Config file (default ./"+yaml.DefaultConfigFile+" if present)")
	fs.StringVar(&opts.dbPath, "db", "", "History database (overrides history_db from the config)")
	fs.StringVar(&opts.name, "name", "", "Only show scans of this package")
	fs.StringVar(&opts.id, "id", "", "Show one scan in full")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of scans to list (0 for all)")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pkgguard history [options]

List past scan results recorded in the history database, newest first.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pkgguard history --limit 5
  pkgguard history --name left-pad
  pkgguard history --id 0f8fad5b-d9cb-469f-a165-70867728950e
`)
	}

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	return executeHistory(ctx, opts, os.Stdout, os.Stderr)
}

func executeHistory(ctx context.Context, opts historyFlags, stdout, stderr io.Writer) int {
	cfg, err := yaml.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	dbPath := cfg.HistoryDB
	if opts.dbPath != "" {
		dbPath = opts.dbPath
	}
	if dbPath == "" {
		fmt.Fprintf(stderr, "Error: no history database configured (set history_db or use --db)\n")
		return exitConfig
	}

	store, err := bolt.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	//nolint:errcheck // Defer close on read-only use
	defer store.Close()

	if opts.id != "" {
		result, err := store.Get(ctx, opts.id)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
		if opts.jsonOutput {
			if err := encodeJSON(stdout, result); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitFailed
			}
			return exitOK
		}
		displayScanResult(stdout, result, true)
		return exitOK
	}

	results, err := store.List(ctx, opts.name, opts.limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}

	if opts.jsonOutput {
		if err := writeJSONList(stdout, results); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
		return exitOK
	}

	fmt.Fprintf(stdout, "Scan history (%d results):\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(stdout, "  %s %-8s %-24s %-8s score %-4d %s\n",
			recommendationIcon(r.Recommendation),
			r.Recommendation,
			r.Subject.Name,
			r.OverallRisk,
			r.RiskScore,
			r.Timestamp.Local().Format(time.DateTime))
		fmt.Fprintf(stdout, "     id %s\n", r.ID)
	}
	return exitOK
}
