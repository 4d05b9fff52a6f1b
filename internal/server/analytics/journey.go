package analytics

import (
	"context"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type ActivityLevel string

const (
	ActivityVeryActive ActivityLevel = "very_active"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityLow        ActivityLevel = "low"
)

type JourneyStep struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      models.ActionKind `json:"action_type"`
	Details   map[string]any    `json:"details"`
	SessionID string            `json:"session_id,omitempty"`
}

type Journey struct {
	UserID         string        `json:"user_id"`
	AnalysisPeriod string        `json:"analysis_period"`
	TotalActions   int           `json:"total_actions"`
	ActivityLevel  ActivityLevel `json:"activity_level,omitempty"`
	Journey        []JourneyStep `json:"journey"`
	Insights       []string      `json:"insights"`
}

// Journey replays the user's events of the window in time order.
func (e *Engine) Journey(ctx context.Context, userID string, days int) (*Journey, error) {
	days = normalizeDays(days)
	evs, err := e.userWindow(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	j := &Journey{
		UserID:         userID,
		AnalysisPeriod: period(days),
		TotalActions:   len(evs),
		Journey:        make([]JourneyStep, 0, len(evs)),
		Insights:       []string{},
	}
	if len(evs) == 0 {
		return j, nil
	}

	for _, ev := range evs {
		j.Journey = append(j.Journey, JourneyStep{
			Timestamp: ev.Timestamp,
			Kind:      ev.Kind,
			Details:   ev.Details,
			SessionID: ev.SessionID,
		})
	}

	j.ActivityLevel = activityLevel(evs)
	switch j.ActivityLevel {
	case ActivityVeryActive:
		j.Insights = append(j.Insights, "Very active: uses the system several times a day on average")
	case ActivityModerate:
		j.Insights = append(j.Insights, "Moderately active: uses the system regularly")
	case ActivityLow:
		j.Insights = append(j.Insights, "Low activity: uses the system infrequently")
	}

	counts := countKinds(evs)
	if counts[models.ActionAssessment] > 3 {
		j.Insights = append(j.Insights, "Takes assessments often and tracks personal progress")
	}
	if counts[models.ActionOpportunityView] > 0 {
		j.Insights = append(j.Insights, "Actively exploring opportunities with a clear career direction")
	}
	return j, nil
}

// activityLevel classifies the average number of events per day, where the
// span counts whole days between the first and last event plus one.
func activityLevel(evs []*models.Event) ActivityLevel {
	span := int(evs[len(evs)-1].Timestamp.Sub(evs[0].Timestamp)/day) + 1
	avg := float64(len(evs)) / float64(span)
	switch {
	case avg > 5:
		return ActivityVeryActive
	case avg > 2:
		return ActivityModerate
	default:
		return ActivityLow
	}
}

func countKinds(evs []*models.Event) map[models.ActionKind]int {
	counts := make(map[models.ActionKind]int)
	for _, ev := range evs {
		counts[ev.Kind]++
	}
	return counts
}
