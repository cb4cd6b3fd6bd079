package profile

import (
	"context"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// Repository caches user profiles keyed by account id.
type Repository interface {
	Upsert(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, accountID int64) (*models.Profile, error)
	Delete(ctx context.Context, accountID int64) error
}
