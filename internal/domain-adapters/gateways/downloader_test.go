package gateways

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

// buildTarGz returns an in-memory .tgz with the given entries
func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0755,
			Size:     int64(len(e.body)),
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader() error = %v", err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error = %v", err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}
	return buf.Bytes()
}

func writeTarGz(t *testing.T, entries []tarEntry) string {
	t.Helper()
	return writeTemp(t, "pkg.tgz", buildTarGz(t, entries))
}

func TestDownloader_ExtractTarGz(t *testing.T) {
	d := NewDownloader(time.Second, nil)
	archive := writeTarGz(t, []tarEntry{
		{name: "package/", typeflag: tar.TypeDir},
		{name: "package/package.json", body: `{"name":"demo"}`},
		{name: "package/lib/index.js", body: "module.exports = 1\n"},
		{name: "package/bin/link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
	})

	dest := filepath.Join(t.TempDir(), "out")
	if err := d.ExtractTarGz(archive, dest); err != nil {
		t.Fatalf("ExtractTarGz() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "package", "lib", "index.js"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "module.exports = 1\n" {
		t.Errorf("extracted content = %q", content)
	}

	info, err := os.Stat(filepath.Join(dest, "package", "package.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("extracted mode = %v, want 0600", info.Mode().Perm())
	}

	if _, err := os.Lstat(filepath.Join(dest, "package", "bin", "link")); !os.IsNotExist(err) {
		t.Error("symlinks should not be extracted")
	}

	root, err := PackageRoot(dest)
	if err != nil {
		t.Fatalf("PackageRoot() error = %v", err)
	}
	if root != filepath.Join(dest, "package") {
		t.Errorf("PackageRoot() = %v", root)
	}
}

func TestDownloader_ExtractTarGz_PathTraversal(t *testing.T) {
	d := NewDownloader(time.Second, nil)

	for _, name := range []string{"../evil.js", "package/../../evil.js"} {
		t.Run(name, func(t *testing.T) {
			archive := writeTarGz(t, []tarEntry{{name: name, body: "x"}})
			parent := t.TempDir()
			dest := filepath.Join(parent, "out")

			if err := d.ExtractTarGz(archive, dest); err == nil {
				t.Error("ExtractTarGz() should reject entries outside the destination")
			}
			if _, err := os.Stat(filepath.Join(parent, "evil.js")); !os.IsNotExist(err) {
				t.Error("traversal entry was written outside the destination")
			}
		})
	}
}

func TestDownloader_ExtractTarGz_NotGzip(t *testing.T) {
	d := NewDownloader(time.Second, nil)
	path := writeTemp(t, "plain.tgz", []byte("not a gzip stream"))
	if err := d.ExtractTarGz(path, t.TempDir()); err == nil {
		t.Error("ExtractTarGz() should fail for a non-gzip file")
	}
	if err := d.ExtractTarGz("/nonexistent.tar.gz", t.TempDir()); err == nil {
		t.Error("ExtractTarGz() should fail for nonexistent file")
	}
}

func TestDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.tgz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d := NewDownloader(5*time.Second, nil)
	dest := filepath.Join(t.TempDir(), "pkg.tgz")

	n, err := d.Download(context.Background(), srv.URL+"/pkg.tgz", dest)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != int64(len("payload")) {
		t.Errorf("Download() bytes = %d", n)
	}

	if _, err := d.Download(context.Background(), srv.URL+"/missing.tgz", dest); err == nil {
		t.Error("Download() should fail on HTTP 404")
	}

	d.maxBytes = 3
	if _, err := d.Download(context.Background(), srv.URL+"/pkg.tgz", dest); !errors.Is(err, ErrArchiveLimit) {
		t.Errorf("Download() over limit error = %v, want ErrArchiveLimit", err)
	}
}

func TestPackageRoot_MultipleEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.js", "b.js"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	root, err := PackageRoot(dir)
	if err != nil {
		t.Fatalf("PackageRoot() error = %v", err)
	}
	if root != dir {
		t.Errorf("PackageRoot() = %v, want %v", root, dir)
	}
}
