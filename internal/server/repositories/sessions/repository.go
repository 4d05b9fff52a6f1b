package sessions

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Update(ctx context.Context, id string, fn func(s *models.Session) error) (*models.Session, error)
	// UpdateWhere applies fn to every session matching pred and returns how
	// many were changed. fn reports whether it changed the session.
	UpdateWhere(ctx context.Context, pred func(s *models.Session) bool, fn func(s *models.Session) bool) (int, error)
	DeleteWhere(ctx context.Context, pred func(s *models.Session) bool) (int, error)
}
