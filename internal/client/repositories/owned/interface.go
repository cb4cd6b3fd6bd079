package owned

import (
	"context"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// Repository is the durable local store for owned records.
type Repository interface {
	// Upsert writes a record keyed by its internal id.
	Upsert(ctx context.Context, rec *models.OwnedRecord) error

	// GetByOwner returns the account's records, at most one per catalog
	// item: server-confirmed ids win over temporary ones, then the
	// lowest id wins.
	GetByOwner(ctx context.Context, accountID int64) ([]models.OwnedRecord, error)

	// GetByOwnerAndItem returns the preferred record for one catalog
	// item, or common.ErrNotFound.
	GetByOwnerAndItem(ctx context.Context, accountID, itemID int64) (*models.OwnedRecord, error)

	// DeleteByID removes one record; missing ids are a no-op.
	DeleteByID(ctx context.Context, id int64) error

	// DeleteByItem removes every record (temporary or confirmed) the
	// account holds for the catalog item.
	DeleteByItem(ctx context.Context, accountID, itemID int64) error

	// DeleteTempByItem removes temporary records for the catalog item,
	// keeping keepID. Used when reconciling a confirmed record.
	DeleteTempByItem(ctx context.Context, accountID, itemID, keepID int64) error

	// ReassignOwner rewrites the owner field in place, preserving ids
	// and acquisition timestamps (account promotion).
	ReassignOwner(ctx context.Context, fromAccountID, toAccountID int64) error

	// DeleteByOwner removes all of an account's records.
	DeleteByOwner(ctx context.Context, accountID int64) error

	// CountByOwner returns the de-duplicated number of owned items.
	CountByOwner(ctx context.Context, accountID int64) (int, error)
}
