package yaml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/signatures"
)

func writePack(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSignatureRepository_LoadDatabase(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "corp.yml", samplePack)
	writePack(t, dir, "README.md", "not a pack")

	db, err := NewSignatureRepository(dir).LoadDatabase(context.Background())
	require.NoError(t, err)

	base := signatures.MustDefault()
	assert.Len(t, db.Signatures, len(base.Signatures)+1)
	assert.Len(t, db.CriticalPatterns, len(base.CriticalPatterns)+1)
	assert.Len(t, db.PopularPackages, len(base.PopularPackages)+1)

	km, ok := db.IsKnownMalicious("evil-pad")
	require.True(t, ok)
	assert.Equal(t, "Steals npm tokens", km.Description)

	last := db.Signatures[len(db.Signatures)-1]
	assert.Equal(t, entities.SeverityMedium, last.Severity, "Native binding access derives MEDIUM")
}

func TestSignatureRepository_NoPacks(t *testing.T) {
	db, err := NewSignatureRepository().LoadDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signatures.MustDefault().PatternCount(), db.PatternCount())
}

func TestSignatureRepository_InvalidRegexFailsLoad(t *testing.T) {
	path := writePack(t, t.TempDir(), "bad.yaml", "name: bad\ncritical_patterns:\n  - pattern: '(unclosed'\n    severity: HIGH\n")

	_, err := NewSignatureRepository(path).LoadDatabase(context.Background())
	require.Error(t, err)
}

func TestSignatureRepository_MissingPath(t *testing.T) {
	_, err := NewSignatureRepository(filepath.Join(t.TempDir(), "nope")).LoadDatabase(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestSignatureRepository_GetPack(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "a.yml", "name: alpha\n")
	writePack(t, dir, "b.yaml", "name: beta\n")
	repo := NewSignatureRepository(dir)

	packs, err := repo.ListPacks(context.Background())
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, "alpha", packs[0].Name)

	pack, err := repo.GetPack(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", pack.Name)

	_, err = repo.GetPack(context.Background(), "gamma")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
