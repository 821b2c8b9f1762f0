// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// SignatureRepository loads the compiled rule set once at startup
type SignatureRepository interface {
	LoadDatabase(ctx context.Context) (*entities.SignatureDatabase, error)
}

// HistoryRepository stores finalized scan results for later inspection
type HistoryRepository interface {
	Save(ctx context.Context, result *entities.ScanResult) error
	Get(ctx context.Context, id string) (*entities.ScanResult, error)
	// List returns the newest results first, optionally filtered by subject name
	List(ctx context.Context, name string, limit int) ([]*entities.ScanResult, error)
}
