package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

const popularFeatureLimit = 10

type FeatureCount struct {
	Kind  models.ActionKind `json:"action_type"`
	Count int               `json:"count"`
}

type FeatureAdoption struct {
	Scope          string                        `json:"scope"`
	AnalysisPeriod string                        `json:"analysis_period"`
	TotalUsers     int                           `json:"total_users"`
	TotalActions   int                           `json:"total_actions"`
	FeatureUsage   map[models.ActionKind]int     `json:"feature_usage"`
	AdoptionRates  map[models.ActionKind]float64 `json:"adoption_rates"`
	Popular        []FeatureCount                `json:"popular_features"`
	Insights       []string                      `json:"insights"`
}

// FeatureAdoption counts events per kind for one user, or for everyone when
// userID is empty. The adoption rate of a kind is the share of active users
// that performed it at least once.
func (e *Engine) FeatureAdoption(ctx context.Context, userID string, days int) (*FeatureAdoption, error) {
	days = normalizeDays(days)
	_, evs, err := e.window(ctx, days)
	if err != nil {
		return nil, err
	}
	scope := "all_users"
	if userID != "" {
		evs = forUser(evs, userID)
		scope = "user_" + userID
	}

	usage := make(map[models.ActionKind]int)
	usersByKind := make(map[models.ActionKind]map[string]struct{})
	active := make(map[string]struct{})
	for _, ev := range evs {
		usage[ev.Kind]++
		if usersByKind[ev.Kind] == nil {
			usersByKind[ev.Kind] = make(map[string]struct{})
		}
		usersByKind[ev.Kind][ev.UserID] = struct{}{}
		active[ev.UserID] = struct{}{}
	}

	rates := make(map[models.ActionKind]float64, len(usersByKind))
	for k, users := range usersByKind {
		rates[k] = ratio(len(users), len(active))
	}

	popular := make([]FeatureCount, 0, len(usage))
	for _, k := range models.AllActionKinds() {
		if n, ok := usage[k]; ok {
			popular = append(popular, FeatureCount{Kind: k, Count: n})
		}
	}
	sort.SliceStable(popular, func(i, j int) bool { return popular[i].Count > popular[j].Count })
	if len(popular) > popularFeatureLimit {
		popular = popular[:popularFeatureLimit]
	}

	return &FeatureAdoption{
		Scope:          scope,
		AnalysisPeriod: period(days),
		TotalUsers:     len(active),
		TotalActions:   len(evs),
		FeatureUsage:   usage,
		AdoptionRates:  rates,
		Popular:        popular,
		Insights:       adoptionInsights(popular, rates, len(evs)),
	}, nil
}

func adoptionInsights(popular []FeatureCount, rates map[models.ActionKind]float64, total int) []string {
	insights := []string{}
	if len(popular) == 0 {
		return insights
	}
	top := popular[0]
	insights = append(insights, fmt.Sprintf("Most popular feature is %s with %.1f%% of all actions",
		top.Kind, float64(top.Count)/float64(total)*100))

	var high, low []string
	for _, k := range models.AllActionKinds() {
		r, ok := rates[k]
		if !ok {
			continue
		}
		switch {
		case r > 0.7:
			high = append(high, string(k))
		case r < 0.3:
			low = append(low, string(k))
		}
	}
	if len(high) > 0 {
		insights = append(insights, "High adoption features: "+strings.Join(high, ", "))
	}
	if len(low) > 0 {
		insights = append(insights, "Features that need promotion: "+strings.Join(low, ", "))
	}
	return insights
}
