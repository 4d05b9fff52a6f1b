package events

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	// Append assigns the next sequence number to e, stores it and trims the
	// log to its cap.
	Append(ctx context.Context, e *models.Event) error
	// List returns every retained event in append order.
	List(ctx context.Context) ([]*models.Event, error)
}
