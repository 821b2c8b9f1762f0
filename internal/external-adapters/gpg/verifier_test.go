package gpg

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

type signedFixture struct {
	dir      string
	keyPath  string
	dataPath string
	entity   *openpgp.Entity
}

// newSignedFixture generates a throwaway key, exports its public half and
// writes a tarball stand-in next to it
func newSignedFixture(t *testing.T) *signedFixture {
	t.Helper()
	entity, err := openpgp.NewEntity("release bot", "", "release@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}

	dir := t.TempDir()
	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f := &signedFixture{
		dir:      dir,
		keyPath:  filepath.Join(dir, "KEYS.asc"),
		dataPath: filepath.Join(dir, "pkg.tgz"),
		entity:   entity,
	}
	if err := os.WriteFile(f.keyPath, pub.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.dataPath, []byte("tarball bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *signedFixture) sign(t *testing.T, armored bool) string {
	t.Helper()
	data, err := os.ReadFile(f.dataPath)
	if err != nil {
		t.Fatal(err)
	}
	var sig bytes.Buffer
	if armored {
		err = openpgp.ArmoredDetachSign(&sig, f.entity, bytes.NewReader(data), nil)
	} else {
		err = openpgp.DetachSign(&sig, f.entity, bytes.NewReader(data), nil)
	}
	if err != nil {
		t.Fatalf("sign error = %v", err)
	}
	path := filepath.Join(f.dir, fmt.Sprintf("pkg.tgz.%v.sig", armored))
	if err := os.WriteFile(path, sig.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerifier_VerifyFile(t *testing.T) {
	f := newSignedFixture(t)
	v := NewVerifier()
	if err := v.ImportKeyFromFile(f.keyPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}
	if v.GetKeyringSize() != 1 {
		t.Fatalf("GetKeyringSize() = %d, want 1", v.GetKeyringSize())
	}

	for _, armored := range []bool{true, false} {
		t.Run(fmt.Sprintf("armored=%v", armored), func(t *testing.T) {
			sig := f.sign(t, armored)
			fingerprint, err := v.Signer(f.dataPath, sig)
			if err != nil {
				t.Fatalf("Signer() error = %v", err)
			}
			want := fmt.Sprintf("%X", f.entity.PrimaryKey.Fingerprint)
			if fingerprint != want {
				t.Errorf("Signer() = %s, want %s", fingerprint, want)
			}
			if err := v.VerifyFile(context.Background(), f.dataPath, sig); err != nil {
				t.Errorf("VerifyFile() error = %v", err)
			}
		})
	}
}

func TestVerifier_VerifyFile_Tampered(t *testing.T) {
	f := newSignedFixture(t)
	v := NewVerifier()
	if err := v.ImportKeyFromFile(f.keyPath); err != nil {
		t.Fatal(err)
	}
	sig := f.sign(t, true)

	if err := os.WriteFile(f.dataPath, []byte("tampered bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	err := v.VerifyFile(context.Background(), f.dataPath, sig)
	if err == nil || !strings.Contains(err.Error(), "signature verification failed") {
		t.Errorf("VerifyFile() error = %v, want verification failure", err)
	}
}

func TestVerifier_NoKeysImported(t *testing.T) {
	v := NewVerifier()
	err := v.VerifyFile(context.Background(), "/tmp/a", "/tmp/a.sig")
	if err == nil || !strings.Contains(err.Error(), "no GPG keys imported") {
		t.Errorf("VerifyFile() error = %v, want missing keyring", err)
	}
}

func TestVerifier_ImportKeyFromFile_Errors(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")
	if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("Expected 'failed to open key file' error, got: %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), "empty.asc")
	if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := v.ImportKeyFromFile(keyPath); err == nil {
		t.Error("Expected error for invalid key file, got nil")
	}
}

func TestVerifier_ImportKeysFromURL(t *testing.T) {
	f := newSignedFixture(t)
	keys, err := os.ReadFile(f.keyPath)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/KEYS" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(keys)
	}))
	defer srv.Close()

	v := NewVerifier()
	if err := v.ImportKeysFromURL(context.Background(), srv.URL+"/KEYS"); err != nil {
		t.Fatalf("ImportKeysFromURL() error = %v", err)
	}
	if v.GetKeyringSize() != 1 {
		t.Errorf("GetKeyringSize() = %d, want 1", v.GetKeyringSize())
	}

	if err := v.ImportKeysFromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("ImportKeysFromURL() should fail on HTTP 404")
	}
}
