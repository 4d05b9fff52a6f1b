package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	week            = 7 * day
	retentionWeeks  = 4
	cohortDayFormat = "2006-01-02"
)

// Cohort holds retention percentages by week; index 0 is always 100.
type Cohort struct {
	Week           int       `json:"cohort_week"`
	Start          string    `json:"cohort_start"`
	Size           int       `json:"cohort_size"`
	RetentionRates []float64 `json:"retention_rates"`
}

type Retention struct {
	AnalysisPeriod string   `json:"analysis_period"`
	Cohorts        []Cohort `json:"cohort_analysis"`
	Insights       []string `json:"insights"`
}

// Retention groups users by the week of their first event in the window and
// follows each cohort for up to four weeks the window can still cover.
func (e *Engine) Retention(ctx context.Context, days int) (*Retention, error) {
	days = normalizeDays(days)
	start, evs, err := e.window(ctx, days)
	if err != nil {
		return nil, err
	}

	cohorts := make(map[int]map[string]struct{})
	first := make(map[string]struct{})
	for _, ev := range evs {
		if _, ok := first[ev.UserID]; ok {
			continue
		}
		first[ev.UserID] = struct{}{}
		w := int(ev.Timestamp.Sub(start) / week)
		if cohorts[w] == nil {
			cohorts[w] = make(map[string]struct{})
		}
		cohorts[w][ev.UserID] = struct{}{}
	}

	weeks := make([]int, 0, len(cohorts))
	for w := range cohorts {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	res := &Retention{AnalysisPeriod: period(days), Cohorts: make([]Cohort, 0, len(weeks)), Insights: []string{}}
	for _, w := range weeks {
		members := cohorts[w]
		ws := start.Add(time.Duration(w) * week)
		c := Cohort{Week: w, Start: ws.Format(cohortDayFormat), Size: len(members), RetentionRates: []float64{100}}

		horizon := min(retentionWeeks, days/7-w-1)
		for rw := 1; rw <= horizon; rw++ {
			from := ws.Add(time.Duration(rw) * week)
			to := from.Add(week)
			active := make(map[string]struct{})
			for _, ev := range evs {
				if _, ok := members[ev.UserID]; !ok {
					continue
				}
				if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
					active[ev.UserID] = struct{}{}
				}
			}
			c.RetentionRates = append(c.RetentionRates, round2(ratio(len(active), len(members))*100))
		}
		res.Cohorts = append(res.Cohorts, c)
	}

	res.Insights = retentionInsights(res.Cohorts)
	return res, nil
}

func retentionInsights(cohorts []Cohort) []string {
	insights := []string{}
	var sum float64
	n := 0
	for _, c := range cohorts {
		if len(c.RetentionRates) > 1 {
			sum += c.RetentionRates[1]
			n++
		}
	}
	if n == 0 {
		return insights
	}
	avg := sum / float64(n)
	if avg > 50 {
		insights = append(insights, fmt.Sprintf("Week 1 retention is %.1f%%, users stick around", avg))
	} else {
		insights = append(insights, fmt.Sprintf("Week 1 retention is %.1f%%, onboarding needs work", avg))
	}
	return insights
}
