package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// Placeholders recognized in an install command template
const (
	RefPlaceholder = "{ref}"
	DirPlaceholder = "{dir}"
)

// CommandOptions configures the external installer used for skills
type CommandOptions struct {
	// Template is split on whitespace; each word may contain {ref} and {dir}
	Template string
	Timeout  time.Duration
	TempRoot string
}

// commandFetcher installs a skill with an external command into a temp dir
type commandFetcher struct {
	argv    []string
	timeout time.Duration
	tmpRoot string
	logger  interfaces.Logger
}

// CommandResult contains the outcome of one installer run
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// NewCommandFetcher validates the template and creates a skill fetcher
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewCommandFetcher(opts CommandOptions, logger interfaces.Logger) (*commandFetcher, error) {
	argv := strings.Fields(opts.Template)
	if len(argv) == 0 {
		return nil, fmt.Errorf("install command template is empty")
	}
	if !strings.Contains(opts.Template, RefPlaceholder) {
		return nil, fmt.Errorf("install command template must contain %s", RefPlaceholder)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &commandFetcher{
		argv:    argv,
		timeout: opts.Timeout,
		tmpRoot: opts.TempRoot,
		logger:  interfaces.OrNoOp(logger),
	}, nil
}

// Kind reports the source kind this fetcher serves
func (f *commandFetcher) Kind() entities.SourceKind {
	return entities.SourceSkill
}

// Fetch runs the installer for ref inside a fresh temp dir
func (f *commandFetcher) Fetch(ctx context.Context, ref entities.PackageRef) (*entities.ResolvedPackage, error) {
	tmp, err := os.MkdirTemp(f.tmpRoot, "pkgguard-skill-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(tmp) }

	result, err := f.run(ctx, ref.Name, tmp)
	if err == nil {
		var root string
		root, err = PackageRoot(tmp)
		if err == nil {
			owner, name := splitOwner(ref.Name)
			if manifestName, version, ok := ReadManifestIdentity(root); ok {
				name = manifestName
				ref.Version = version
			}
			f.logger.Info("Installed skill",
				interfaces.F("skill", ref.Name),
				interfaces.F("duration", result.Duration))
			return &entities.ResolvedPackage{
				Subject: entities.Subject{
					Name:    name,
					Version: ref.Version,
					Path:    root,
					Owner:   owner,
					Source:  string(entities.SourceSkill),
				},
				Root:    root,
				Cleanup: cleanup,
			}, nil
		}
	}

	if cerr := cleanup(); cerr != nil {
		f.logger.Warn("Failed to remove temp dir", interfaces.F("dir", tmp), interfaces.Err(cerr))
	}
	return nil, err
}

// run executes the installer directly, without a shell, so ref is never
// interpreted by one
func (f *commandFetcher) run(ctx context.Context, ref, dir string) (*CommandResult, error) {
	args := make([]string, len(f.argv))
	for i, word := range f.argv {
		word = strings.ReplaceAll(word, RefPlaceholder, ref)
		args[i] = strings.ReplaceAll(word, DirPlaceholder, dir)
	}

	execCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	//nolint:gosec // G204: The installer comes from operator configuration
	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("installer timed out after %v", f.timeout)
	}
	return result, fmt.Errorf("installer exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
}

// splitOwner turns "owner/slug" into its parts
func splitOwner(ref string) (owner, name string) {
	if i := strings.LastIndexByte(ref, '/'); i > 0 && !strings.HasPrefix(ref, "@") {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}
