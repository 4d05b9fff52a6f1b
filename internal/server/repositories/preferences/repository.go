package preferences

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.Preferences, error)
	Put(ctx context.Context, v *models.Preferences) error
	// Upsert loads the record for userID, or starts from create() when there
	// is none, applies fn and stores the result.
	Upsert(ctx context.Context, userID string, create func() *models.Preferences, fn func(v *models.Preferences) error) (*models.Preferences, error)
}
