package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/gateways"
)

const (
	// DefaultRegistryURL is the public npm registry
	DefaultRegistryURL = "https://registry.npmjs.org"

	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
	maxMetadata    = 8 << 20
)

// RegistryOptions configures the npm registry fetcher
type RegistryOptions struct {
	BaseURL string
	Timeout time.Duration
	// TempRoot is where per-fetch temp dirs are created; empty means os.TempDir()
	TempRoot string
	// Signatures, when set, requires a detached "<tarball>.asc" signature
	Signatures gateways.SignatureVerifier
}

// registryFetcher downloads a package version from an npm-compatible registry
type registryFetcher struct {
	opts       RegistryOptions
	client     *http.Client
	downloader *Downloader
	checksums  *checksumVerifier
	backoff    time.Duration
	logger     interfaces.Logger
}

// npmVersion is the subset of a registry version document the fetcher reads
type npmVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dist    struct {
		Tarball   string `json:"tarball"`
		Integrity string `json:"integrity"`
		Shasum    string `json:"shasum"`
	} `json:"dist"`
	NpmUser struct {
		Name string `json:"name"`
	} `json:"_npmUser"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
}

func (v *npmVersion) owner() string {
	if v.NpmUser.Name != "" {
		return v.NpmUser.Name
	}
	if len(v.Maintainers) > 0 {
		return v.Maintainers[0].Name
	}
	return ""
}

// NewRegistryFetcher creates a fetcher for npm references
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewRegistryFetcher(opts RegistryOptions, logger interfaces.Logger) *registryFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRegistryURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	logger = interfaces.OrNoOp(logger)
	return &registryFetcher{
		opts:       opts,
		client:     &http.Client{Timeout: opts.Timeout},
		downloader: NewDownloader(opts.Timeout, logger),
		checksums:  NewChecksumVerifier(),
		backoff:    initialBackoff,
		logger:     logger,
	}
}

// Kind reports the source kind this fetcher serves
func (f *registryFetcher) Kind() entities.SourceKind {
	return entities.SourceRegistry
}

// Fetch downloads, verifies and unpacks ref into a fresh temp dir. The
// returned Cleanup removes that dir; on error nothing is left behind.
func (f *registryFetcher) Fetch(ctx context.Context, ref entities.PackageRef) (*entities.ResolvedPackage, error) {
	meta, err := f.metadata(ctx, ref)
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp(f.opts.TempRoot, "pkgguard-npm-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(tmp) }

	root, err := f.materialize(ctx, meta, tmp)
	if err != nil {
		if cerr := cleanup(); cerr != nil {
			f.logger.Warn("Failed to remove temp dir", interfaces.F("dir", tmp), interfaces.Err(cerr))
		}
		return nil, err
	}

	f.logger.Info("Fetched package from registry",
		interfaces.F("package", meta.Name),
		interfaces.F("version", meta.Version))

	return &entities.ResolvedPackage{
		Subject: entities.Subject{
			Name:    meta.Name,
			Version: meta.Version,
			Path:    root,
			Owner:   meta.owner(),
			Source:  string(entities.SourceRegistry),
		},
		Root:    root,
		Cleanup: cleanup,
	}, nil
}

func (f *registryFetcher) materialize(ctx context.Context, meta *npmVersion, tmp string) (string, error) {
	tarball := filepath.Join(tmp, "package.tgz")
	if _, err := f.downloader.Download(ctx, meta.Dist.Tarball, tarball); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", meta.Dist.Tarball, err)
	}

	if err := f.verify(ctx, meta, tarball); err != nil {
		return "", err
	}

	if f.opts.Signatures != nil {
		sig := tarball + ".asc"
		if _, err := f.downloader.Download(ctx, meta.Dist.Tarball+".asc", sig); err != nil {
			return "", fmt.Errorf("failed to download signature: %w", err)
		}
		if err := f.opts.Signatures.VerifyFile(ctx, tarball, sig); err != nil {
			return "", fmt.Errorf("%w: %v", entities.ErrIntegrity, err)
		}
	}

	dest := filepath.Join(tmp, "src")
	if err := f.downloader.ExtractTarGz(tarball, dest); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", meta.Name, err)
	}
	return PackageRoot(dest)
}

// verify fails closed: a version without any published digest is rejected
func (f *registryFetcher) verify(ctx context.Context, meta *npmVersion, tarball string) error {
	switch {
	case meta.Dist.Integrity != "":
		return f.checksums.VerifyIntegrity(ctx, tarball, meta.Dist.Integrity)
	case meta.Dist.Shasum != "":
		return f.checksums.VerifyChecksum(ctx, tarball, meta.Dist.Shasum)
	default:
		return fmt.Errorf("%w: registry published no digest for %s@%s", entities.ErrIntegrity, meta.Name, meta.Version)
	}
}

func (f *registryFetcher) metadata(ctx context.Context, ref entities.PackageRef) (*npmVersion, error) {
	version := ref.Version
	if version == "" {
		version = "latest"
	}
	endpoint := strings.TrimRight(f.opts.BaseURL, "/") + "/" + url.PathEscape(ref.Name) + "/" + url.PathEscape(version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pkgguard/1.0")

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", ref, entities.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d for %s", resp.StatusCode, ref)
	}

	var meta npmVersion
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadata)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode registry metadata: %w", err)
	}
	if meta.Dist.Tarball == "" {
		return nil, fmt.Errorf("registry metadata for %s has no tarball", ref)
	}
	if meta.Name == "" {
		meta.Name = ref.Name
	}
	return &meta, nil
}

// isRetryableError checks if an HTTP status code is retryable
func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt
func calculateBackoff(base time.Duration, attempt int) time.Duration {
	backoff := float64(base) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry executes a GET with exponential backoff on transient failures
func (f *registryFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(calculateBackoff(f.backoff, attempt-1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !isRetryableError(resp.StatusCode) || attempt == maxRetries {
			return resp, nil
		}

		//nolint:errcheck,gosec // G104: Best effort close before retry
		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		f.logger.Debug("Retrying registry request",
			interfaces.F("url", req.URL.String()),
			interfaces.F("attempt", attempt+1))
	}
	return nil, lastErr
}
