package analytics

import (
	"context"
	"fmt"
	"sort"
)

type Tier string

const (
	TierPower    Tier = "power"
	TierRegular  Tier = "regular"
	TierCasual   Tier = "casual"
	TierInactive Tier = "inactive"
)

// Tiers lists the segments in the order they are checked.
func Tiers() []Tier {
	return []Tier{TierPower, TierRegular, TierCasual, TierInactive}
}

// classify returns the first tier whose thresholds the user meets.
func classify(actions, kinds int) Tier {
	switch {
	case actions >= 50 && kinds >= 5:
		return TierPower
	case actions >= 20 && kinds >= 3:
		return TierRegular
	case actions >= 5:
		return TierCasual
	default:
		return TierInactive
	}
}

type SegmentStats struct {
	UserCount   int     `json:"user_count"`
	AvgActions  float64 `json:"avg_actions"`
	AvgFeatures float64 `json:"avg_features"`
	Percentage  float64 `json:"percentage"`
}

type Segments struct {
	AnalysisPeriod string                `json:"analysis_period"`
	TotalUsers     int                   `json:"total_users"`
	Segments       map[Tier][]string     `json:"segments"`
	Stats          map[Tier]SegmentStats `json:"segment_stats"`
	Insights       []string              `json:"insights"`
}

type userMetrics struct {
	actions int
	kinds   map[string]struct{}
}

// Segments puts every user active in the window into exactly one tier.
func (e *Engine) Segments(ctx context.Context, days int) (*Segments, error) {
	days = normalizeDays(days)
	_, evs, err := e.window(ctx, days)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]*userMetrics)
	for _, ev := range evs {
		m := metrics[ev.UserID]
		if m == nil {
			m = &userMetrics{kinds: make(map[string]struct{})}
			metrics[ev.UserID] = m
		}
		m.actions++
		m.kinds[string(ev.Kind)] = struct{}{}
	}

	res := &Segments{
		AnalysisPeriod: period(days),
		TotalUsers:     len(metrics),
		Segments:       make(map[Tier][]string, 4),
		Stats:          make(map[Tier]SegmentStats, 4),
		Insights:       []string{},
	}
	for _, t := range Tiers() {
		res.Segments[t] = []string{}
	}
	for id, m := range metrics {
		t := classify(m.actions, len(m.kinds))
		res.Segments[t] = append(res.Segments[t], id)
	}

	for _, t := range Tiers() {
		ids := res.Segments[t]
		sort.Strings(ids)
		st := SegmentStats{UserCount: len(ids)}
		if len(ids) > 0 {
			var actions, kinds int
			for _, id := range ids {
				actions += metrics[id].actions
				kinds += len(metrics[id].kinds)
			}
			st.AvgActions = round2(ratio(actions, len(ids)))
			st.AvgFeatures = round2(ratio(kinds, len(ids)))
			st.Percentage = round2(ratio(len(ids), len(metrics)) * 100)
		}
		res.Stats[t] = st
	}

	if res.TotalUsers > 0 {
		res.Insights = segmentInsights(res.Stats)
	}
	return res, nil
}

func segmentInsights(stats map[Tier]SegmentStats) []string {
	insights := []string{}
	power := stats[TierPower].Percentage
	switch {
	case power > 20:
		insights = append(insights, fmt.Sprintf("Power users are %v%% of active users, engagement is strong", power))
	case power < 10:
		insights = append(insights, fmt.Sprintf("Power users are only %v%% of active users, engagement needs work", power))
	}
	if stats[TierRegular].Percentage > 40 {
		insights = append(insights, "Regular users form a stable core of the user base")
	}
	return insights
}
