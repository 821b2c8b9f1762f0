package gateways

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// contentScanner implements ContentScanner over a signature database
type contentScanner struct {
	db     *entities.SignatureDatabase
	opts   ScanOptions
	walker *fileWalker
	logger interfaces.Logger
}

type fileResult struct {
	findings []entities.Finding
	scanned  bool
}

// NewContentScanner creates the file walker and content scanner
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewContentScanner(db *entities.SignatureDatabase, opts ScanOptions, logger interfaces.Logger) *contentScanner {
	logger = interfaces.OrNoOp(logger)
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &contentScanner{
		db:     db,
		opts:   opts,
		walker: newFileWalker(opts, logger),
		logger: logger,
	}
}

// ScanFiles reads every eligible file under root and applies the signature,
// critical-pattern, vulnerability and obfuscation passes. Files are scanned
// by a bounded worker pool; findings keep the walk order of their files.
func (s *contentScanner) ScanFiles(ctx context.Context, root string) (*entities.ContentScan, error) {
	visited, files, err := s.walker.Collect(root)
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.scanFile(root, rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("content scan interrupted: %w", err)
	}

	scan := &entities.ContentScan{FilesVisited: visited}
	for _, r := range results {
		if r.scanned {
			scan.FilesScanned++
		}
		scan.Findings = append(scan.Findings, r.findings...)
	}

	s.logger.Debug("content scan complete",
		interfaces.F("root", root),
		interfaces.F("visited", visited),
		interfaces.F("scanned", scan.FilesScanned),
		interfaces.F("findings", len(scan.Findings)),
	)
	return scan, nil
}

// scanFile never fails: unreadable, oversized and binary files are skipped
func (s *contentScanner) scanFile(root, rel string) fileResult {
	abs := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		s.logger.Debug("skipping file", interfaces.F("path", rel), interfaces.Err(err))
		return fileResult{}
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		s.logger.Debug("skipping oversized file", interfaces.F("path", rel), interfaces.F("size", info.Size()))
		return fileResult{}
	}

	//nolint:gosec // G304: Path comes from walking the package root under inspection
	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.Debug("skipping file", interfaces.F("path", rel), interfaces.Err(err))
		return fileResult{}
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return fileResult{}
	}

	return fileResult{findings: s.ScanContent(rel, string(data)), scanned: true}
}

// ScanContent applies every content pass to one file body
func (s *contentScanner) ScanContent(rel, content string) []entities.Finding {
	var findings []entities.Finding
	base := path.Base(rel)

	for _, sig := range s.db.Signatures {
		idx := strings.Index(content, sig.Needle)
		if idx < 0 {
			continue
		}
		findings = append(findings, entities.Finding{
			Category: entities.CategorySignature,
			Severity: sig.Severity,
			Message:  fmt.Sprintf("%s in %s", sig.Description, base),
			Location: locate(rel, content, idx),
		})
	}

	for _, p := range s.db.CriticalPatterns {
		loc := p.Expr.FindStringIndex(content)
		if loc == nil {
			continue
		}
		findings = append(findings, entities.Finding{
			Category: entities.CategoryCriticalPattern,
			Severity: p.Severity,
			Message:  p.Message,
			Location: locate(rel, content, loc[0]),
		})
	}

	seen := make(map[string]bool)
	for _, class := range s.db.VulnerabilityClasses {
		for _, p := range class.Patterns {
			if seen[p.Message] {
				continue
			}
			loc := p.Expr.FindStringIndex(content)
			if loc == nil {
				continue
			}
			seen[p.Message] = true
			findings = append(findings, entities.Finding{
				Category:   entities.CategoryVulnerability,
				WeaknessID: p.WeaknessID,
				Severity:   p.Severity,
				Message:    p.Message,
				Location:   locate(rel, content, loc[0]),
			})
		}
	}

	indicators := 0
	for _, re := range s.db.ObfuscationIndicators {
		indicators += len(re.FindAllStringIndex(content, -1))
	}
	if indicators > s.opts.ObfuscationThreshold {
		findings = append(findings, entities.NewFinding(entities.CategoryObfuscation, entities.SeverityMedium,
			fmt.Sprintf("%d obfuscation indicators in %s", indicators, base), rel))
	}

	if s.db.Base64Payload != nil {
		if loc := s.db.Base64Payload.FindStringIndex(content); loc != nil {
			f := entities.NewFinding(entities.CategoryObfuscation, entities.SeverityMedium,
				fmt.Sprintf("Base64-encoded payload in %s", base), rel)
			f.Location.Line = lineAt(content, loc[0])
			findings = append(findings, f)
		}
	}

	return findings
}

// locate builds a location with the 1-based line and a bounded snippet of that line
func locate(rel, content string, offset int) entities.Location {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := strings.IndexByte(content[offset:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += offset
	}
	return entities.Location{
		Path:    rel,
		Line:    lineAt(content, offset),
		Snippet: entities.TruncateSnippet(content[start:end]),
	}
}

func lineAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}
