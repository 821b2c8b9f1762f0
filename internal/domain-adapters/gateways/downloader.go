package gateways

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// Archive limits applied while extracting untrusted tarballs
const (
	DefaultMaxDownloadBytes int64 = 256 << 20
	DefaultMaxEntryBytes    int64 = 64 << 20
	DefaultMaxArchiveBytes  int64 = 512 << 20
	DefaultMaxEntries             = 20000
)

// ErrArchiveLimit is returned when a tarball exceeds an extraction limit
var ErrArchiveLimit = errors.New("archive exceeds extraction limit")

// Downloader handles downloading and unpacking package tarballs
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	logger     interfaces.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(timeout time.Duration, logger interfaces.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "pkgguard/1.0",
		maxBytes:   DefaultMaxDownloadBytes,
		logger:     interfaces.OrNoOp(logger),
	}
}

// Download writes the body of url to dest and returns the number of bytes written
func (d *Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	//nolint:gosec // G304: dest is a file inside a temp dir owned by the caller
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, fmt.Errorf("failed to write file: %w", err)
	}
	if written > d.maxBytes {
		return written, fmt.Errorf("%w: download larger than %d bytes", ErrArchiveLimit, d.maxBytes)
	}

	d.logger.Debug("Downloaded tarball", interfaces.F("url", url), interfaces.F("bytes", written))
	return written, nil
}

// ExtractTarGz extracts a .tgz into destDir. Entries escaping destDir are
// rejected, links and special files are skipped, and regular files are
// written with 0600 permissions since nothing extracted is ever executed.
func (d *Downloader) ExtractTarGz(tarPath, destDir string) error {
	//nolint:gosec // G304: tarPath was written by Download into a temp dir
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tr := tar.NewReader(gzr)
	var total int64
	entries := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		entries++
		if entries > DefaultMaxEntries {
			return fmt.Errorf("%w: more than %d entries", ErrArchiveLimit, DefaultMaxEntries)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if header.Size > DefaultMaxEntryBytes {
				return fmt.Errorf("%w: %s is %d bytes", ErrArchiveLimit, header.Name, header.Size)
			}
			total += header.Size
			if total > DefaultMaxArchiveBytes {
				return fmt.Errorf("%w: more than %d bytes unpacked", ErrArchiveLimit, DefaultMaxArchiveBytes)
			}
			if err := writeEntry(target, tr, header.Size); err != nil {
				return err
			}

		default:
			d.logger.Debug("Skipping archive entry",
				interfaces.F("name", header.Name),
				interfaces.F("type", string(header.Typeflag)))
		}
	}

	return nil
}

func writeEntry(target string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	//nolint:gosec // G304: target was validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, io.LimitReader(r, size)); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// safeJoin joins name onto root and refuses anything that lands outside root
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

// PackageRoot returns the single top-level directory of an extracted
// tarball (npm packs everything under package/), or dir itself.
func PackageRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
