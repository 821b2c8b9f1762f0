// Package gateways defines the contracts between the scan use case and its adapters.
package gateways

import (
	"context"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// ContentScanner walks a package tree and applies the content rules to each eligible file
type ContentScanner interface {
	// ScanFiles never fails on a single unreadable file; errors are reserved for an unusable root
	ScanFiles(ctx context.Context, root string) (*entities.ContentScan, error)
}

// ManifestAnalyzer inspects package.json, .npmrc and lockfiles at a package root
type ManifestAnalyzer interface {
	AnalyzeManifest(ctx context.Context, root string) (*entities.ManifestAnalysis, error)
}

// PackageResolver turns a subject identifier into a local directory tree
type PackageResolver interface {
	Resolve(ctx context.Context, identifier string) (*entities.ResolvedPackage, error)
}

// PackageFetcher materializes a remote reference of one source kind
type PackageFetcher interface {
	Kind() entities.SourceKind
	Fetch(ctx context.Context, ref entities.PackageRef) (*entities.ResolvedPackage, error)
}

// ResultSink receives every finalized scan result
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, result *entities.ScanResult) error
}

// SignatureVerifier checks a detached signature over a downloaded file
type SignatureVerifier interface {
	VerifyFile(ctx context.Context, filePath, signaturePath string) error
}
