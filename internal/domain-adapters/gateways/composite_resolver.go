package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/gateways"
)

var (
	registryNamePattern = regexp.MustCompile(`^(?:@[a-z0-9][\w.-]*/)?[a-z0-9][\w.-]*(?:@[\w.^~<>=*+-]+)?$`)
	dirVersionPattern   = regexp.MustCompile(`^(.+?)[-@]v?(\d+\.\d+(?:\.\d+)?(?:[-+][\w.]+)?)$`)
)

// compositeResolver resolves local paths itself and delegates remote
// references to the fetcher registered for their source kind
type compositeResolver struct {
	fetchers map[entities.SourceKind]gateways.PackageFetcher
	logger   interfaces.Logger
}

// NewCompositeResolver creates a resolver over the given fetchers
func NewCompositeResolver(logger interfaces.Logger, fetchers ...gateways.PackageFetcher) gateways.PackageResolver {
	r := &compositeResolver{
		fetchers: make(map[entities.SourceKind]gateways.PackageFetcher, len(fetchers)),
		logger:   interfaces.OrNoOp(logger),
	}
	for _, f := range fetchers {
		if f != nil {
			r.fetchers[f.Kind()] = f
		}
	}
	return r
}

// Resolve returns a local tree for identifier. Every failure wraps
// entities.ErrResolve.
func (r *compositeResolver) Resolve(ctx context.Context, identifier string) (*entities.ResolvedPackage, error) {
	ref, err := ParsePackageRef(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrResolve, err)
	}

	if ref.Kind == entities.SourceLocal {
		return resolveLocal(ref)
	}

	fetcher, ok := r.fetchers[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no fetcher configured for %s references", entities.ErrResolve, ref.Kind)
	}

	r.logger.Debug("Fetching remote package", interfaces.F("ref", ref.String()), interfaces.F("kind", string(ref.Kind)))
	pkg, err := fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", entities.ErrResolve, ref, err)
	}
	return pkg, nil
}

func resolveLocal(ref entities.PackageRef) (*entities.ResolvedPackage, error) {
	root, err := filepath.Abs(ref.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrResolve, err)
	}

	subject := entities.Subject{
		Name:    ref.Name,
		Version: ref.Version,
		Path:    root,
		Source:  string(entities.SourceLocal),
	}
	if name, version, ok := ReadManifestIdentity(root); ok {
		subject.Name = name
		if version != "" {
			subject.Version = version
		}
	}
	return &entities.ResolvedPackage{Subject: subject, Root: root}, nil
}

// ParsePackageRef classifies a subject identifier. Existing directories are
// local; "npm:" and "skill:" prefixes force a source; anything else that
// looks like a registry name is treated as an npm reference.
func ParsePackageRef(identifier string) (entities.PackageRef, error) {
	raw := strings.TrimSpace(identifier)
	if raw == "" {
		return entities.PackageRef{}, fmt.Errorf("empty package identifier")
	}

	switch {
	case strings.HasPrefix(raw, "npm:"):
		name, version := splitVersion(strings.TrimPrefix(raw, "npm:"))
		if name == "" {
			return entities.PackageRef{}, fmt.Errorf("missing package name in %q", raw)
		}
		return entities.PackageRef{Raw: raw, Kind: entities.SourceRegistry, Name: name, Version: version}, nil

	case strings.HasPrefix(raw, "skill:"):
		slug := strings.TrimPrefix(raw, "skill:")
		if slug == "" {
			return entities.PackageRef{}, fmt.Errorf("missing skill slug in %q", raw)
		}
		return entities.PackageRef{Raw: raw, Kind: entities.SourceSkill, Name: slug}, nil
	}

	if info, err := os.Stat(raw); err == nil {
		if !info.IsDir() {
			return entities.PackageRef{}, fmt.Errorf("%s is not a directory", raw)
		}
		name, version := splitDirVersion(filepath.Base(filepath.Clean(raw)))
		return entities.PackageRef{Raw: raw, Kind: entities.SourceLocal, Name: name, Version: version}, nil
	}

	if registryNamePattern.MatchString(strings.ToLower(raw)) {
		name, version := splitVersion(raw)
		return entities.PackageRef{Raw: raw, Kind: entities.SourceRegistry, Name: name, Version: version}, nil
	}

	return entities.PackageRef{}, fmt.Errorf("%s: %w", raw, entities.ErrNotFound)
}

// splitVersion splits "name@version", keeping a leading scope "@"
func splitVersion(s string) (name, version string) {
	if i := strings.LastIndexByte(s, '@'); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// splitDirVersion reads a version out of directory names like "left-pad-1.3.0"
func splitDirVersion(base string) (name, version string) {
	if m := dirVersionPattern.FindStringSubmatch(base); m != nil {
		return m[1], m[2]
	}
	return base, ""
}
