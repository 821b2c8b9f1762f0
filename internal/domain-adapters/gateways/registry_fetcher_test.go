package gateways

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

type fakeRegistry struct {
	tarball   []byte
	integrity string
	failures  int32
	calls     atomic.Int32
}

func (r *fakeRegistry) handler(t *testing.T, base func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/left-pad/1.3.0", func(w http.ResponseWriter, _ *http.Request) {
		if r.calls.Add(1) <= r.failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		doc := map[string]interface{}{
			"name":    "left-pad",
			"version": "1.3.0",
			"dist": map[string]string{
				"tarball":   base() + "/tarballs/left-pad-1.3.0.tgz",
				"integrity": r.integrity,
			},
			"_npmUser": map[string]string{"name": "stevemao"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	mux.HandleFunc("/tarballs/left-pad-1.3.0.tgz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(r.tarball)
	})
	mux.HandleFunc("/tarballs/left-pad-1.3.0.tgz.asc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("-----BEGIN PGP SIGNATURE-----"))
	})
	return mux
}

func sriOf(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

func newTestFetcher(t *testing.T, reg *fakeRegistry) (*registryFetcher, string) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(reg.handler(t, func() string { return srv.URL }))
	t.Cleanup(srv.Close)

	tempRoot := t.TempDir()
	f := NewRegistryFetcher(RegistryOptions{BaseURL: srv.URL, Timeout: 5 * time.Second, TempRoot: tempRoot}, nil)
	f.backoff = time.Millisecond
	return f, tempRoot
}

func TestRegistryFetcher_Fetch(t *testing.T) {
	tgz := buildTarGz(t, []tarEntry{
		{name: "package/package.json", body: `{"name":"left-pad","version":"1.3.0"}`},
		{name: "package/index.js", body: "module.exports = leftPad\n"},
	})
	reg := &fakeRegistry{tarball: tgz, integrity: sriOf(tgz), failures: 1}
	f, tempRoot := newTestFetcher(t, reg)

	pkg, err := f.Fetch(context.Background(), entities.PackageRef{Kind: entities.SourceRegistry, Name: "left-pad", Version: "1.3.0"})
	require.NoError(t, err)

	assert.Equal(t, "left-pad", pkg.Subject.Name)
	assert.Equal(t, "1.3.0", pkg.Subject.Version)
	assert.Equal(t, "stevemao", pkg.Subject.Owner)
	assert.Equal(t, "npm", pkg.Subject.Source)
	assert.FileExists(t, filepath.Join(pkg.Root, "index.js"))
	assert.Equal(t, int32(2), reg.calls.Load(), "one transient failure should be retried")

	require.NoError(t, pkg.Cleanup())
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "cleanup should remove the temp dir")
}

func TestRegistryFetcher_IntegrityMismatch(t *testing.T) {
	tgz := buildTarGz(t, []tarEntry{{name: "package/index.js", body: "x"}})
	reg := &fakeRegistry{tarball: tgz, integrity: sriOf([]byte("something else"))}
	f, tempRoot := newTestFetcher(t, reg)

	_, err := f.Fetch(context.Background(), entities.PackageRef{Name: "left-pad", Version: "1.3.0"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrIntegrity))

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed fetch should not leave a temp dir behind")
}

func TestRegistryFetcher_NotFound(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeRegistry{})

	_, err := f.Fetch(context.Background(), entities.PackageRef{Name: "does-not-exist"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyFile(_ context.Context, _, _ string) error {
	return errors.New("bad signature")
}

func TestRegistryFetcher_SignatureRequired(t *testing.T) {
	tgz := buildTarGz(t, []tarEntry{{name: "package/index.js", body: "x"}})
	reg := &fakeRegistry{tarball: tgz, integrity: sriOf(tgz)}
	f, _ := newTestFetcher(t, reg)
	f.opts.Signatures = rejectingVerifier{}

	_, err := f.Fetch(context.Background(), entities.PackageRef{Name: "left-pad", Version: "1.3.0"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrIntegrity))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(time.Second, 0))
	assert.Equal(t, 4*time.Second, calculateBackoff(time.Second, 2))
	assert.Equal(t, maxBackoff, calculateBackoff(time.Second, 10))
}
