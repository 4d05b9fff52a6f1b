package profiles

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Put(ctx context.Context, v *models.Profile) error
	// Upsert loads the record for userID, or starts from create() when there
	// is none, applies fn and stores the result.
	Upsert(ctx context.Context, userID string, create func() *models.Profile, fn func(v *models.Profile) error) (*models.Profile, error)
}
