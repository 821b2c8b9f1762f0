package yaml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/signatures"
)

// SignatureRepository implements repositories.SignatureRepository: the
// built-in rules plus every configured pack, compiled once
type SignatureRepository struct {
	paths  []string
	parser *PackParser
}

// NewSignatureRepository creates a repository over pack files or
// directories of *.yml / *.yaml packs
func NewSignatureRepository(paths ...string) *SignatureRepository {
	return &SignatureRepository{
		paths:  paths,
		parser: NewPackParser(),
	}
}

// ListPacks parses every configured pack in a stable order
func (r *SignatureRepository) ListPacks(_ context.Context) ([]*SignaturePack, error) {
	files, err := r.packFiles()
	if err != nil {
		return nil, err
	}

	packs := make([]*SignaturePack, 0, len(files))
	for _, file := range files {
		pack, err := r.parser.ParseFile(file)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

// GetPack returns the configured pack with the given name
func (r *SignatureRepository) GetPack(ctx context.Context, name string) (*SignaturePack, error) {
	packs, err := r.ListPacks(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range packs {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("signature pack %s: %w", name, entities.ErrNotFound)
}

// LoadDatabase merges all packs over the defaults and compiles the result.
// Any invalid pack fails the whole load.
func (r *SignatureRepository) LoadDatabase(ctx context.Context) (*entities.SignatureDatabase, error) {
	packs, err := r.ListPacks(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]signatures.Definition, 0, len(packs))
	for _, p := range packs {
		defs = append(defs, p.Definition)
	}
	return signatures.Compile(signatures.Merge(signatures.Default(), defs...))
}

func (r *SignatureRepository) packFiles() ([]string, error) {
	var files []string
	for _, p := range r.paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("signature pack %s: %w", p, entities.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to stat signature pack %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read signature pack directory: %w", err)
		}
		var dirFiles []string
		for _, entry := range entries {
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}
			dirFiles = append(dirFiles, filepath.Join(p, entry.Name()))
		}
		sort.Strings(dirFiles)
		files = append(files, dirFiles...)
	}
	return files, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}
