package catalog

import (
	"context"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// Repository is the durable local store for catalog reference data.
type Repository interface {
	// Upsert writes an item keyed by its external id. Idempotent:
	// duplicates overwrite, never error.
	Upsert(ctx context.Context, item *models.CatalogItem) error

	// UpsertBatch writes a page of items in one transaction when the
	// underlying handle supports it.
	UpsertBatch(ctx context.Context, items []models.CatalogItem) error

	// GetByID returns one item or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.CatalogItem, error)

	// List returns a page of items ordered by external id.
	List(ctx context.Context, limit, offset int) ([]models.CatalogItem, error)

	// SearchByName returns items whose name contains q (case-insensitive).
	SearchByName(ctx context.Context, q string, limit int) ([]models.CatalogItem, error)

	// Count returns the number of cached items.
	Count(ctx context.Context) (int, error)

	// CountInRange returns how many items have lo <= id <= hi. Used to
	// detect gaps in the cached id range after a bulk sync.
	CountInRange(ctx context.Context, lo, hi int64) (int, error)
}
