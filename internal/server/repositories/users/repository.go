package users

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	// Create stores u unless its username or email is already taken by any
	// stored user, deleted ones included.
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// Update applies fn to the stored user and persists the result.
	Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error)
}
