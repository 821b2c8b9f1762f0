package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	orchestrators "github.com/ochairo/pkgguard/internal/domain-orchestrators"
	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/external-adapters/yaml"
)

// scanFlags are the command-line overrides of the scan subcommand
type scanFlags struct {
	configPath   string
	jsonOutput   bool
	verbose      bool
	installAllow string
	parallel     int
	reportDir    string
	logDir       string
	historyDB    string
}

func runScan(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	var opts scanFlags
	fs.StringVar(&opts.configPath, "config", "", "Config file (default ./"+yaml.DefaultConfigFile+" if present)")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	fs.BoolVar(&opts.verbose, "verbose", false, "Show every finding, including LOW and INFO")
	fs.StringVar(&opts.installAllow, "install-allow", "", "Most restrictive recommendation that still passes (install, caution)")
	fs.IntVar(&opts.parallel, "parallel", 0, "Number of packages scanned concurrently")
	fs.StringVar(&opts.reportDir, "report-dir", "", "Write a JSON report per scan into this directory")
	fs.StringVar(&opts.logDir, "log-dir", "", "Append scans.log and quarantine.log in this directory")
	fs.StringVar(&opts.historyDB, "history-db", "", "Record results in this history database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pkgguard scan <path-or-package>... [options]

Scan packages before they are installed. Each argument is a local
directory, an npm package (name, name@version, npm:name) or a skill
(skill:owner/slug, requires skill.install_command in the config).

Exit status is 0 only when every scanned package is recommended for
INSTALL (or at most the level given by --install-allow), 1 otherwise
and 2 when the configuration is invalid.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pkgguard scan ./node_modules/left-pad
  pkgguard scan left-pad@1.3.0 express --json
  pkgguard scan skill:steipete/notes --install-allow caution
`)
	}

	if err := fs.Parse(reorderArgs(fs, args)); err != nil {
		return parseExit(err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: at least one package is required\n\n")
		fs.Usage()
		return exitConfig
	}

	return executeScan(ctx, opts, fs.Args(), os.Stdout, os.Stderr)
}

func executeScan(ctx context.Context, opts scanFlags, targets []string, stdout, stderr io.Writer) int {
	cfg, err := yaml.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if err := applyScanFlags(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	defer a.Close()

	results := a.orchestrator.ScanAll(ctx, targets, cfg.Scan.Parallel)
	summary := orchestrators.Summarize(results, cfg.AllowedRecommendation())

	if opts.jsonOutput {
		if err := writeJSON(stdout, results); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
	} else {
		for _, r := range results {
			displayScanResult(stdout, r, opts.verbose)
		}
		if len(results) > 1 {
			fmt.Fprintf(stdout, "📊 %s\n", summary)
		}
	}

	if !summary.Passed() {
		return exitFailed
	}
	return exitOK
}

func applyScanFlags(cfg *yaml.Config, opts scanFlags) error {
	if opts.installAllow != "" {
		cfg.InstallAllow = opts.installAllow
	}
	if opts.parallel > 0 {
		cfg.Scan.Parallel = opts.parallel
	}
	if opts.reportDir != "" {
		cfg.ReportDir = opts.reportDir
	}
	if opts.logDir != "" {
		cfg.Log.Dir = opts.logDir
	}
	if opts.historyDB != "" {
		cfg.HistoryDB = opts.historyDB
	}
	return cfg.Validate()
}

// writeJSON prints a lone scan target as an object and a batch as an array
func writeJSON(w io.Writer, results []*entities.ScanResult) error {
	if len(results) == 1 {
		return encodeJSON(w, results[0])
	}
	return writeJSONList(w, results)
}

// writeJSONList always prints an array, even for zero or one result
func writeJSONList(w io.Writer, results []*entities.ScanResult) error {
	if results == nil {
		results = []*entities.ScanResult{}
	}
	return encodeJSON(w, results)
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

func recommendationIcon(r entities.Recommendation) string {
	switch r {
	case entities.RecommendInstall:
		return "✅"
	case entities.RecommendCaution:
		return "⚠️"
	case entities.RecommendReview:
		return "🔎"
	default:
		return "🚫"
	}
}

func displayScanResult(w io.Writer, r *entities.ScanResult, verbose bool) {
	subject := r.Subject.Name
	if r.Subject.Version != "" {
		subject += "@" + r.Subject.Version
	}
	fmt.Fprintf(w, "🔍 %s (%s)\n", subject, r.Subject.Source)
	if r.Subject.Owner != "" {
		fmt.Fprintf(w, "   Owner: %s\n", r.Subject.Owner)
	}
	fmt.Fprintf(w, "   Files scanned: %d\n", r.FilesScanned)

	counts := make([]string, 0, len(r.Breakdown))
	for _, sev := range entities.AllSeverities() {
		if n := r.Breakdown[sev]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", sev, n))
		}
	}
	if len(counts) > 0 {
		fmt.Fprintf(w, "   Findings: %d (%s)\n", len(r.Findings), strings.Join(counts, ", "))
	} else {
		fmt.Fprintf(w, "   Findings: 0\n")
	}

	findings := append([]entities.Finding(nil), r.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})
	hidden := 0
	for _, f := range findings {
		if !verbose && f.Severity < entities.SeverityMedium {
			hidden++
			continue
		}
		weakness := ""
		if f.WeaknessID != "" {
			weakness = " " + f.WeaknessID
		}
		fmt.Fprintf(w, "   [%s] %s%s: %s (%s)\n", f.Severity, f.Category, weakness, f.Message, f.Location)
	}
	if hidden > 0 {
		fmt.Fprintf(w, "   ... %d lower-severity findings hidden (use --verbose)\n", hidden)
	}

	fmt.Fprintf(w, "%s %s  risk %s  score %d\n\n", recommendationIcon(r.Recommendation), r.Recommendation, r.OverallRisk, r.RiskScore)
}

// reorderArgs moves flags after positional arguments to the front so that
// "pkgguard scan pkg --json" behaves like "pkgguard scan --json pkg"
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	flags = append(flags, "--")
	return append(flags, positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	return exitConfig
}
