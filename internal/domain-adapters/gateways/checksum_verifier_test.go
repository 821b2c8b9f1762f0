package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// TestVerifyChecksum tests hex digest verification with inferred algorithms
func TestVerifyChecksum(t *testing.T) {
	testFile := writeTemp(t, "test.txt", []byte("Hello, World!"))
	verifier := NewChecksumVerifier()

	tests := []struct {
		name    string
		sum     string
		wantErr bool
	}{
		{"sha1", "0a0a9f2a6772942557ab5355d76af442f8f65e01", false},
		{"sha256", "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f", false},
		{"sha256 uppercase", "DFFD6021BB2BD5B0AF676290809EC3A53191DD81C7F70A4B28688A362182986F", false},
		{"sha256 mismatch", "0000000000000000000000000000000000000000000000000000000000000000", true},
		{"unknown length", "abc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyChecksum(context.Background(), testFile, tt.sum)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyChecksum() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("non-existent file", func(t *testing.T) {
		err := verifier.VerifyChecksum(context.Background(), "/nonexistent/file.txt", tests[1].sum)
		if err == nil {
			t.Error("VerifyChecksum() with non-existent file should return error")
		}
	})
}

// TestCalculateChecksum tests SHA256 and SHA512 digest calculation
func TestCalculateChecksum(t *testing.T) {
	empty := writeTemp(t, "empty.txt", nil)
	verifier := NewChecksumVerifier()

	sum, err := verifier.CalculateChecksum(empty)
	if err != nil {
		t.Fatalf("CalculateChecksum() error = %v", err)
	}
	if sum != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("CalculateChecksum() = %v", sum)
	}

	sum512, err := verifier.CalculateDigest(empty, "sha512")
	if err != nil {
		t.Fatalf("CalculateDigest() error = %v", err)
	}
	want512 := "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"
	if sum512 != want512 {
		t.Errorf("CalculateDigest(sha512) = %v", sum512)
	}

	if _, err := verifier.CalculateDigest(empty, "md5"); err == nil {
		t.Error("CalculateDigest() should reject unsupported algorithms")
	}
}

// TestVerifyIntegrity tests Subresource Integrity values as published by npm
func TestVerifyIntegrity(t *testing.T) {
	testFile := writeTemp(t, "pkg.tgz", []byte("tarball bytes"))
	verifier := NewChecksumVerifier()

	integrity, err := verifier.CalculateIntegrity(testFile)
	if err != nil {
		t.Fatalf("CalculateIntegrity() error = %v", err)
	}

	if err := verifier.VerifyIntegrity(context.Background(), testFile, integrity); err != nil {
		t.Errorf("VerifyIntegrity() error = %v", err)
	}

	multi := "sha1-AAAAAAAAAAAAAAAAAAAAAAAAAAA= " + integrity
	if err := verifier.VerifyIntegrity(context.Background(), testFile, multi); err != nil {
		t.Errorf("VerifyIntegrity() with several hashes error = %v", err)
	}

	other := writeTemp(t, "other.tgz", []byte("tampered bytes"))
	err = verifier.VerifyIntegrity(context.Background(), other, integrity)
	if !errors.Is(err, entities.ErrIntegrity) {
		t.Errorf("VerifyIntegrity() on tampered file error = %v, want ErrIntegrity", err)
	}

	if err := verifier.VerifyIntegrity(context.Background(), testFile, ""); !errors.Is(err, entities.ErrIntegrity) {
		t.Errorf("VerifyIntegrity() with empty value error = %v, want ErrIntegrity", err)
	}
}
