package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes shared by every subcommand
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitFailed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	// Dispatch to subcommand
	var code int
	switch command {
	case "scan":
		code = runScan(ctx, os.Args[2:])
	case "list":
		code = runList(ctx, os.Args[2:])
	case "verify":
		code = runVerify(ctx, os.Args[2:])
	case "history":
		code = runHistory(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		code = exitFailed
	}

	stop()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`pkgguard - Static security gate for packages and agent skills

Usage:
  pkgguard <command> [options]

Commands:
  scan              Scan local directories, npm packages or skills before install
  list              Show the loaded signature database
  verify            Verify checksums, integrity strings and GPG signatures
  history           Show past scan results

Use "pkgguard <command> --help" for more information about a command.`)
}
