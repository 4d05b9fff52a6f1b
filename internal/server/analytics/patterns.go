package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

const (
	topTermLimit   = 10
	remoteFriendly = 0.7
	recentDays     = 7
)

type TimeDistribution struct {
	Morning   float64 `json:"morning"`
	Afternoon float64 `json:"afternoon"`
	Evening   float64 `json:"evening"`
	Night     float64 `json:"night"`
}

type ActivityHours struct {
	MostActiveHour   int              `json:"most_active_hour"`
	TimeDistribution TimeDistribution `json:"time_distribution"`
}

type FeatureUsage struct {
	Counts       map[models.ActionKind]int     `json:"feature_counts"`
	Percentages  map[models.ActionKind]float64 `json:"feature_percentages"`
	MostUsed     models.ActionKind             `json:"most_used_feature,omitempty"`
	TotalActions int                           `json:"total_actions"`
}

type SearchPatterns struct {
	Frequency       float64        `json:"search_frequency"`
	PopularKeywords map[string]int `json:"popular_keywords"`
	TopKeyword      string         `json:"top_keyword,omitempty"`
	TotalSearches   int            `json:"total_searches"`
}

type JobPreferences struct {
	PreferredJobTypes map[string]int `json:"preferred_job_types"`
	RemotePreference  float64        `json:"remote_preference"`
	ViewedJobs        int            `json:"viewed_jobs"`
	AppliedJobs       int            `json:"applied_jobs"`
}

type LearningPatterns struct {
	Frequency     float64        `json:"learning_frequency"`
	PopularSkills map[string]int `json:"popular_skills"`
	TotalPlans    int            `json:"total_learning_plans"`
}

// BehaviorPatterns summarizes one user's events. Sections stay nil when
// the user has no events of the kinds they describe.
type BehaviorPatterns struct {
	UserID   string            `json:"user_id"`
	Activity *ActivityHours    `json:"activity_hours,omitempty"`
	Features FeatureUsage      `json:"feature_usage"`
	Search   *SearchPatterns   `json:"search_patterns,omitempty"`
	Jobs     *JobPreferences   `json:"job_preferences,omitempty"`
	Learning *LearningPatterns `json:"learning_patterns,omitempty"`
}

// Patterns analyzes the user's events of the last days days.
func (e *Engine) Patterns(ctx context.Context, userID string, days int) (*BehaviorPatterns, error) {
	evs, err := e.userWindow(ctx, userID, normalizeDays(days))
	if err != nil {
		return nil, err
	}
	return analyzePatterns(userID, evs), nil
}

func analyzePatterns(userID string, evs []*models.Event) *BehaviorPatterns {
	p := &BehaviorPatterns{
		UserID: userID,
		Features: FeatureUsage{
			Counts:      map[models.ActionKind]int{},
			Percentages: map[models.ActionKind]float64{},
		},
	}
	if len(evs) == 0 {
		return p
	}
	p.Activity = activityHours(evs)
	p.Features = featureUsage(evs)

	var searches, jobs, plans []*models.Event
	for _, ev := range evs {
		switch ev.Kind {
		case models.ActionSearch:
			searches = append(searches, ev)
		case models.ActionOpportunityView, models.ActionOpportunityApply:
			jobs = append(jobs, ev)
		case models.ActionLearningPlan:
			plans = append(plans, ev)
		case models.ActionLogin, models.ActionLogout, models.ActionAssessment,
			models.ActionSkillUpdate, models.ActionPreferenceUpdate,
			models.ActionFilter, models.ActionExport, models.ActionShare:
		}
	}

	if len(searches) > 0 {
		kw := make(map[string]int)
		for _, ev := range searches {
			for _, term := range stringList(ev.Details["keywords"]) {
				kw[term]++
			}
		}
		top := topTerms(kw, topTermLimit)
		p.Search = &SearchPatterns{
			Frequency:       ratio(len(searches), len(evs)),
			PopularKeywords: top,
			TotalSearches:   len(searches),
		}
		if len(top) > 0 {
			p.Search.TopKeyword = maxTerm(top)
		}
	}

	if len(jobs) > 0 {
		jp := &JobPreferences{PreferredJobTypes: map[string]int{}}
		remote := 0
		for _, ev := range jobs {
			if t, ok := ev.Details["job_type"].(string); ok && t != "" {
				jp.PreferredJobTypes[t]++
			}
			if truthy(ev.Details["remote_friendly"]) {
				remote++
			}
			if ev.Kind == models.ActionOpportunityView {
				jp.ViewedJobs++
			} else {
				jp.AppliedJobs++
			}
		}
		jp.RemotePreference = ratio(remote, len(jobs))
		p.Jobs = jp
	}

	if len(plans) > 0 {
		skills := make(map[string]int)
		for _, ev := range plans {
			for _, s := range stringList(ev.Details["target_skills"]) {
				skills[s]++
			}
		}
		p.Learning = &LearningPatterns{
			Frequency:     ratio(len(plans), len(evs)),
			PopularSkills: topTerms(skills, topTermLimit),
			TotalPlans:    len(plans),
		}
	}
	return p
}

// activityHours buckets event hours in UTC. Ties for the most active hour
// go to the earliest hour.
func activityHours(evs []*models.Event) *ActivityHours {
	var hours [24]int
	for _, ev := range evs {
		hours[ev.Timestamp.UTC().Hour()]++
	}
	best := 0
	for h := 1; h < 24; h++ {
		if hours[h] > hours[best] {
			best = h
		}
	}
	sum := func(from, to int) int {
		n := 0
		for h := from; h < to; h++ {
			n += hours[h]
		}
		return n
	}
	total := len(evs)
	return &ActivityHours{
		MostActiveHour: best,
		TimeDistribution: TimeDistribution{
			Morning:   ratio(sum(6, 12), total),
			Afternoon: ratio(sum(12, 18), total),
			Evening:   ratio(sum(18, 24), total),
			Night:     ratio(sum(0, 6), total),
		},
	}
}

func featureUsage(evs []*models.Event) FeatureUsage {
	counts := countKinds(evs)
	fu := FeatureUsage{
		Counts:       counts,
		Percentages:  make(map[models.ActionKind]float64, len(counts)),
		TotalActions: len(evs),
	}
	best := 0
	for _, k := range models.AllActionKinds() {
		n, ok := counts[k]
		if !ok {
			continue
		}
		fu.Percentages[k] = ratio(n, len(evs))
		if n > best {
			best, fu.MostUsed = n, k
		}
	}
	return fu
}

// stringList reads a details value that is either a list of strings or a
// single string.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	}
	return false
}

type termCount struct {
	term  string
	count int
}

func rankTerms(m map[string]int) []termCount {
	out := make([]termCount, 0, len(m))
	for t, n := range m {
		out = append(out, termCount{t, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].term < out[j].term
	})
	return out
}

func topTerms(m map[string]int, limit int) map[string]int {
	ranked := rankTerms(m)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make(map[string]int, len(ranked))
	for _, tc := range ranked {
		out[tc.term] = tc.count
	}
	return out
}

func maxTerm(m map[string]int) string {
	ranked := rankTerms(m)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].term
}

type Insights struct {
	UserID          string            `json:"user_id"`
	Username        string            `json:"username"`
	AnalysisDate    time.Time         `json:"analysis_date"`
	Behavior        *BehaviorPatterns `json:"behavior_summary"`
	Recommendations []string          `json:"personalized_recommendations"`
	NextActions     []string          `json:"next_actions"`
}

// Insights turns the user's last 30 days into recommendations and a list
// of core features they have not tried yet.
func (e *Engine) Insights(ctx context.Context, userID string) (*Insights, error) {
	u, err := e.identities.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := e.identities.GetPreferences(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrPreferencesNotFound) {
		return nil, err
	}
	p, err := e.Patterns(ctx, userID, DefaultDays)
	if err != nil {
		return nil, err
	}

	return &Insights{
		UserID:          userID,
		Username:        u.Username,
		AnalysisDate:    e.clock.Now(),
		Behavior:        p,
		Recommendations: recommend(p, prefs),
		NextActions:     nextActions(p),
	}, nil
}

func recommend(p *BehaviorPatterns, prefs *models.Preferences) []string {
	recs := []string{}

	if p.Activity != nil {
		h := p.Activity.MostActiveHour
		switch {
		case h >= 6 && h <= 11:
			recs = append(recs, "You are a morning person: schedule important learning and planning before noon")
		case h >= 18 && h <= 23:
			recs = append(recs, "You are most active in the evening: use that time for skill building")
		}
	}

	switch p.Features.MostUsed {
	case models.ActionAssessment:
		recs = append(recs, "You assess yourself often: turn the results into a concrete improvement plan")
	case models.ActionOpportunityView:
		recs = append(recs, "You explore opportunities a lot: complete your skill profile for sharper matches")
	case models.ActionLearningPlan:
		recs = append(recs, "You focus on learning: set goals and track your progress")
	case models.ActionLogin, models.ActionLogout, models.ActionOpportunityApply,
		models.ActionSkillUpdate, models.ActionPreferenceUpdate, models.ActionSearch,
		models.ActionFilter, models.ActionExport, models.ActionShare, "":
	}

	if p.Search != nil && p.Search.TopKeyword != "" {
		recs = append(recs, fmt.Sprintf("You often search for %q: consider going deeper into that area", p.Search.TopKeyword))
	}

	statedRemote := prefs != nil && prefs.WorkType == models.WorkRemote
	observedRemote := p.Jobs != nil && p.Jobs.RemotePreference > remoteFriendly
	if statedRemote || observedRemote {
		recs = append(recs, "You prefer remote work: build remote collaboration and self-management skills")
	}
	return recs
}

func nextActions(p *BehaviorPatterns) []string {
	actions := []string{}
	if p.Features.Counts[models.ActionAssessment] == 0 {
		actions = append(actions, "Complete your first assessment to see where you stand")
	}
	if p.Features.Counts[models.ActionOpportunityView] == 0 {
		actions = append(actions, "Browse opportunities to find matching roles and projects")
	}
	if p.Features.Counts[models.ActionLearningPlan] == 0 {
		actions = append(actions, "Create a learning plan for your key skills")
	}
	return actions
}

type Statistics struct {
	UserID          string            `json:"user_id"`
	Username        string            `json:"username"`
	CreatedAt       time.Time         `json:"created_at"`
	LastLogin       *time.Time        `json:"last_login"`
	Status          models.UserStatus `json:"status"`
	TotalActions    int               `json:"total_actions"`
	RecentActions7d int               `json:"recent_actions_7d"`
	Behavior        *BehaviorPatterns `json:"behavior_analysis"`
}

// UserStatistics counts the user's retained events overall and over the
// last week, with the 30 day behavior patterns.
func (e *Engine) UserStatistics(ctx context.Context, userID string) (*Statistics, error) {
	u, err := e.identities.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	all, err := e.events.Window(ctx, time.Time{}, now)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	st := &Statistics{
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
		Status:    u.Status,
	}
	recent := now.Add(-recentDays * day)
	month := now.Add(-DefaultDays * day)
	var window []*models.Event
	for _, ev := range all {
		if ev.UserID != userID {
			continue
		}
		st.TotalActions++
		if !ev.Timestamp.Before(recent) {
			st.RecentActions7d++
		}
		if !ev.Timestamp.Before(month) {
			window = append(window, ev)
		}
	}
	if len(window) > userEventLimit {
		window = window[len(window)-userEventLimit:]
	}
	st.Behavior = analyzePatterns(userID, window)
	return st, nil
}
