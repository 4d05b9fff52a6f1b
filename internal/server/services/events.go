package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DefaultQueryLimit bounds Query when the filter sets no limit.
const DefaultQueryLimit = 100

// EventFilter selects events for Query. Zero values match everything.
type EventFilter struct {
	UserID string
	Kind   models.ActionKind
	Since  time.Time
	Until  time.Time
	Limit  int
}

// EventLog appends behavior events and answers queries over them.
type EventLog struct {
	repo   events.Repository
	clock  common.Clock
	logger logging.Logger
}

func NewEventLog(m repomanager.RepositoryManager, clock common.Clock, logger logging.Logger) *EventLog {
	return &EventLog{repo: m.Events(), clock: clock, logger: logger.With("module", "events")}
}

// Append records an event stamped with the current time.
func (l *EventLog) Append(ctx context.Context, userID string, kind models.ActionKind, details map[string]any, meta models.EventMeta) (*models.Event, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown action kind %q", common.ErrValidation, kind)
	}
	if details == nil {
		details = map[string]any{}
	}

	e := &models.Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Timestamp: l.clock.Now(),
		Details:   details,
		SessionID: meta.SessionID,
		Client:    meta.Client,
	}
	if err := l.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	l.logger.Debug(ctx, "event appended", "user_id", userID, "kind", kind, "seq", e.Seq)
	return e, nil
}

func (f EventFilter) match(e *models.Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query returns matching events newest first, at most f.Limit of them.
func (l *EventLog) Query(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown action kind %q", common.ErrValidation, f.Kind)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	all, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Event, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if f.match(all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Window returns every user's events with since <= timestamp <= until in
// append order.
func (l *EventLog) Window(ctx context.Context, since, until time.Time) ([]*models.Event, error) {
	all, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	f := EventFilter{Since: since, Until: until}
	out := make([]*models.Event, 0, len(all))
	for _, e := range all {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
