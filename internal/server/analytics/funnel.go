package analytics

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type FunnelStep struct {
	Name string            `json:"step"`
	Kind models.ActionKind `json:"action_type"`
}

// DefaultFunnelSteps is the onboarding funnel used when none is given.
func DefaultFunnelSteps() []FunnelStep {
	return []FunnelStep{
		{Name: "registration", Kind: models.ActionLogin},
		{Name: "first_assessment", Kind: models.ActionAssessment},
		{Name: "opportunity_exploration", Kind: models.ActionOpportunityView},
		{Name: "learning_planning", Kind: models.ActionLearningPlan},
		{Name: "job_application", Kind: models.ActionOpportunityApply},
	}
}

// FunnelStepResult reports one step. StepConversion is nil when the
// previous step was reached by nobody. SkippedPrevious counts users that
// reached this step without reaching the previous one.
type FunnelStepResult struct {
	Step            string            `json:"step"`
	Kind            models.ActionKind `json:"action_type"`
	Users           int               `json:"users"`
	ConversionRate  float64           `json:"conversion_rate"`
	StepConversion  *float64          `json:"step_conversion"`
	SkippedPrevious int               `json:"skipped_previous"`
}

type Funnel struct {
	AnalysisPeriod string             `json:"analysis_period"`
	TotalUsers     int                `json:"total_users"`
	Steps          []FunnelStepResult `json:"funnel_data"`
	Insights       []string           `json:"insights"`
}

// Funnel tests each step independently: a user reaches a step when an event
// of its kind appears in the window, whatever happened before.
func (e *Engine) Funnel(ctx context.Context, steps []FunnelStep, days int) (*Funnel, error) {
	if len(steps) == 0 {
		steps = DefaultFunnelSteps()
	}
	for _, s := range steps {
		if s.Name == "" || !s.Kind.Valid() {
			return nil, fmt.Errorf("%w: bad funnel step %q (%q)", common.ErrValidation, s.Name, s.Kind)
		}
	}
	days = normalizeDays(days)
	_, evs, err := e.window(ctx, days)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[models.ActionKind]struct{})
	for _, ev := range evs {
		if seen[ev.UserID] == nil {
			seen[ev.UserID] = make(map[models.ActionKind]struct{})
		}
		seen[ev.UserID][ev.Kind] = struct{}{}
	}
	total := len(seen)

	res := &Funnel{
		AnalysisPeriod: period(days),
		TotalUsers:     total,
		Steps:          make([]FunnelStepResult, 0, len(steps)),
		Insights:       []string{},
	}
	for i, s := range steps {
		r := FunnelStepResult{Step: s.Name, Kind: s.Kind}
		for _, kinds := range seen {
			if _, ok := kinds[s.Kind]; !ok {
				continue
			}
			r.Users++
			if i > 0 {
				if _, ok := kinds[steps[i-1].Kind]; !ok {
					r.SkippedPrevious++
				}
			}
		}
		r.ConversionRate = round2(ratio(r.Users, total) * 100)
		if i == 0 {
			c := r.ConversionRate
			r.StepConversion = &c
		} else if prev := res.Steps[i-1].Users; prev > 0 {
			c := round2(ratio(r.Users, prev) * 100)
			r.StepConversion = &c
		}
		res.Steps = append(res.Steps, r)
	}

	if total > 0 {
		res.Insights = funnelInsights(res.Steps)
	}
	return res, nil
}

func funnelInsights(steps []FunnelStepResult) []string {
	insights := []string{}
	var worst *FunnelStepResult
	for i := 1; i < len(steps); i++ {
		if steps[i].StepConversion == nil {
			continue
		}
		if worst == nil || *steps[i].StepConversion < *worst.StepConversion {
			worst = &steps[i]
		}
	}
	if worst != nil {
		insights = append(insights, fmt.Sprintf("Bottleneck is the %s step at %v%% step conversion", worst.Step, *worst.StepConversion))
	}
	final := steps[len(steps)-1].ConversionRate
	if final > 10 {
		insights = append(insights, fmt.Sprintf("Overall conversion is %v%%, performing well", final))
	} else {
		insights = append(insights, fmt.Sprintf("Overall conversion is %v%%, room for improvement", final))
	}
	return insights
}
