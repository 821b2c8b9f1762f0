package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/external-adapters/yaml"
)

func runList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Config file (default ./"+yaml.DefaultConfigFile+" if present)")
		verbose    = fs.Bool("verbose", false, "Print every rule, not only the counts")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pkgguard list [options]

Show the signature database: built-in rules plus configured signature packs.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pkgguard list
  pkgguard list --verbose --config pkgguard.yml
`)
	}

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	return executeList(ctx, *configPath, *verbose, os.Stdout, os.Stderr)
}

func executeList(ctx context.Context, configPath string, verbose bool, stdout, stderr io.Writer) int {
	cfg, err := yaml.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	repo := yaml.NewSignatureRepository(cfg.SignaturePacks...)
	packs, err := repo.ListPacks(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	db, err := repo.LoadDatabase(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	fmt.Fprintf(stdout, "Signature database (%d compiled patterns):\n\n", db.PatternCount())
	fmt.Fprintf(stdout, "  %-24s %d\n", "Signatures", len(db.Signatures))
	fmt.Fprintf(stdout, "  %-24s %d\n", "Critical patterns", len(db.CriticalPatterns))
	fmt.Fprintf(stdout, "  %-24s %d\n", "Script patterns", len(db.ScriptPatterns))
	for _, c := range db.VulnerabilityClasses {
		fmt.Fprintf(stdout, "  %-24s %d\n", "Vulnerability: "+c.Name, len(c.Patterns))
	}
	fmt.Fprintf(stdout, "  %-24s %d\n", "Obfuscation indicators", len(db.ObfuscationIndicators))
	fmt.Fprintf(stdout, "  %-24s %d\n", "Popular packages", len(db.PopularPackages))
	fmt.Fprintf(stdout, "  %-24s %d\n", "Known malicious", len(db.KnownMalicious))
	fmt.Fprintf(stdout, "  %-24s %d\n", "Suspicious name tokens", len(db.SuspiciousNameTokens))

	if len(packs) > 0 {
		fmt.Fprintf(stdout, "\nSignature packs (%d):\n", len(packs))
		for _, p := range packs {
			fmt.Fprintf(stdout, "  📦 %-20s %s\n", p.Name, p.Description)
		}
	}

	if verbose {
		printRules(stdout, db)
	}
	return exitOK
}

func printRules(w io.Writer, db *entities.SignatureDatabase) {
	fmt.Fprintf(w, "\nSignatures:\n")
	for _, s := range db.Signatures {
		fmt.Fprintf(w, "  [%-8s] %-28q %s\n", s.Severity, s.Needle, s.Description)
	}

	printPatterns := func(title string, patterns []entities.Pattern) {
		fmt.Fprintf(w, "\n%s:\n", title)
		for _, p := range patterns {
			fmt.Fprintf(w, "  [%-8s] %-10s %s\n           %s\n", p.Severity, p.WeaknessID, p.Message, p.Expr)
		}
	}
	printPatterns("Critical patterns", db.CriticalPatterns)
	printPatterns("Script patterns", db.ScriptPatterns)
	for _, c := range db.VulnerabilityClasses {
		printPatterns("Vulnerability class "+c.Name, c.Patterns)
	}

	fmt.Fprintf(w, "\nPopular packages:\n")
	for _, p := range db.PopularPackages {
		fmt.Fprintf(w, "  %-20s %s\n", p.Name, p.Risk)
	}

	names := make([]string, 0, len(db.KnownMalicious))
	for name := range db.KnownMalicious {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\nKnown malicious packages:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  ☠️  %-28s %s\n", name, db.KnownMalicious[name].Description)
	}
}
