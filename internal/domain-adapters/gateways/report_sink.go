package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// reportSink writes one indented JSON document per scan
type reportSink struct {
	dir string
}

// NewReportSink creates a sink writing <dir>/scan_<timestamp>_<id>.json
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewReportSink(dir string) *reportSink {
	return &reportSink{dir: dir}
}

// Name identifies the sink in logs
func (s *reportSink) Name() string { return "json-report" }

// Publish writes the report file
func (s *reportSink) Publish(_ context.Context, result *entities.ScanResult) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	path := s.PathFor(result)
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// PathFor returns where the report of result is written. The id suffix
// keeps concurrent scans finishing in the same second apart.
func (s *reportSink) PathFor(result *entities.ScanResult) string {
	ts := result.Timestamp.UTC().Format("20060102T150405Z")
	id := result.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(s.dir, fmt.Sprintf("scan_%s_%s.json", ts, id))
}

// logLineSink appends the one-line summary of every scan to scans.log and
// of BLOCK/REVIEW scans to quarantine.log
type logLineSink struct {
	dir string
	mu  sync.Mutex
}

// Log file names inside the log directory
const (
	ScanLogFile       = "scans.log"
	QuarantineLogFile = "quarantine.log"
)

// NewLogLineSink creates the summary log sink
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewLogLineSink(dir string) *logLineSink {
	return &logLineSink{dir: dir}
}

// Name identifies the sink in logs
func (s *logLineSink) Name() string { return "log-line" }

// Publish appends the summary line
func (s *logLineSink) Publish(_ context.Context, result *entities.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	line := result.LogLine() + "\n"
	if err := appendLine(filepath.Join(s.dir, ScanLogFile), line); err != nil {
		return err
	}
	if result.Quarantined() {
		return appendLine(filepath.Join(s.dir, QuarantineLogFile), line)
	}
	return nil
}

func appendLine(path, line string) error {
	//nolint:gosec // G304: Log path is built from the configured log directory
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
