package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// ScanOptions controls which files the content scanner reads and how
type ScanOptions struct {
	// ExcludeDirs are matched against directory base names exactly
	ExcludeDirs []string
	// Extensions are lowercase and include the leading dot
	Extensions []string
	// FileNames are always scanned regardless of extension
	FileNames            []string
	ObfuscationThreshold int
	MaxFileSize          int64
	Workers              int
}

// DefaultScanOptions returns the stock walker configuration
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		ExcludeDirs: []string{"node_modules", ".git", "dist", "build", "coverage"},
		Extensions: []string{
			".js", ".mjs", ".cjs", ".ts", ".py", ".rb", ".php", ".java",
			".c", ".cpp", ".h", ".lua", ".go", ".rs", ".sh", ".bash", ".md", ".txt",
		},
		FileNames:            []string{"package.json"},
		ObfuscationThreshold: 2,
		MaxFileSize:          5 << 20,
	}
}

// fileWalker lists the files of a package tree that the scanner should open
type fileWalker struct {
	exclude    map[string]struct{}
	extensions map[string]struct{}
	names      map[string]struct{}
	logger     interfaces.Logger
}

func newFileWalker(opts ScanOptions, logger interfaces.Logger) *fileWalker {
	return &fileWalker{
		exclude:    toSet(opts.ExcludeDirs),
		extensions: toSet(opts.Extensions),
		names:      toSet(opts.FileNames),
		logger:     interfaces.OrNoOp(logger),
	}
}

// Collect walks root and returns eligible regular files as slash-separated
// paths relative to root, in walk order. Symbolic links are never followed.
func (w *fileWalker) Collect(root string) (visited int, files []string, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to stat package root: %w", err)
	}
	if !info.IsDir() {
		return 0, nil, fmt.Errorf("package root %s is not a directory", root)
	}
	root = filepath.Clean(root)

	err = godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if path != root && w.excluded(de.Name()) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if !de.IsRegular() {
				return nil
			}

			visited++
			if !w.eligible(de.Name()) {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			w.logger.Debug("skipping unreadable path", interfaces.F("path", path), interfaces.Err(err))
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return visited, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return visited, files, nil
}

func (w *fileWalker) excluded(name string) bool {
	_, ok := w.exclude[name]
	return ok
}

func (w *fileWalker) eligible(name string) bool {
	if _, ok := w.names[name]; ok {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
