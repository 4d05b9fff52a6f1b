// Package analytics derives journeys, adoption, segments, funnels,
// retention cohorts and personal recommendations from the event log.
//
// Every computation works on a private snapshot returned by the event
// source and never writes back. Missing events, profiles or preferences
// produce empty results, not errors.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// DefaultDays is the window used when a caller passes days <= 0.
const DefaultDays = 30

// userEventLimit caps how many of a user's most recent events a per-user
// analysis looks at.
const userEventLimit = 1000

const day = 24 * time.Hour

// EventSource returns every user's events with since <= timestamp <= until
// in append order. A zero since means no lower bound.
type EventSource interface {
	Window(ctx context.Context, since, until time.Time) ([]*models.Event, error)
}

// Identities resolves accounts and their stated preferences.
type Identities interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetPreferences(ctx context.Context, id string) (*models.Preferences, error)
}

type Engine struct {
	events     EventSource
	identities Identities
	clock      common.Clock
	logger     logging.Logger
}

func NewEngine(events EventSource, identities Identities, clock common.Clock, logger logging.Logger) *Engine {
	return &Engine{events: events, identities: identities, clock: clock, logger: logger.With("module", "analytics")}
}

func normalizeDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	return days
}

func period(days int) string {
	return fmt.Sprintf("%d days", days)
}

// window loads all events of the last days days, ascending.
func (e *Engine) window(ctx context.Context, days int) (start time.Time, evs []*models.Event, err error) {
	now := e.clock.Now()
	start = now.Add(-time.Duration(days) * day)
	evs, err = e.events.Window(ctx, start, now)
	if err != nil {
		return start, nil, fmt.Errorf("load events: %w", err)
	}
	// Append order can disagree with timestamps when appends race.
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })
	return start, evs, nil
}

// userWindow keeps the user's most recent events of the window, ascending.
func (e *Engine) userWindow(ctx context.Context, userID string, days int) ([]*models.Event, error) {
	_, all, err := e.window(ctx, days)
	if err != nil {
		return nil, err
	}
	return forUser(all, userID), nil
}

func forUser(all []*models.Event, userID string) []*models.Event {
	out := make([]*models.Event, 0)
	for _, ev := range all {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	if len(out) > userEventLimit {
		out = out[len(out)-userEventLimit:]
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
