package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionKind(t *testing.T) {
	for _, k := range AllActionKinds() {
		got, err := ParseActionKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	assert.Len(t, AllActionKinds(), 12)

	_, err := ParseActionKind("OPPORTUNITY_VIEW")
	assert.Error(t, err)
	_, err = ParseActionKind("")
	assert.Error(t, err)
}

func TestParseUserStatus(t *testing.T) {
	st, err := ParseUserStatus("suspended")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, st)

	_, err = ParseUserStatus("banned")
	assert.Error(t, err)
}

func TestNewPreferences_Defaults(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPreferences("user_1", now)

	assert.Equal(t, "weekly", p.EmailFrequency)
	assert.Equal(t, "medium", p.DataSharing)
	assert.Equal(t, "private", p.ProfileVisibility)
	assert.Equal(t, []string{"opportunities", "learning", "trends"}, p.NotificationTypes)
	assert.Equal(t, []string{"freedom_score", "opportunities", "learning_progress"}, p.DashboardWidgets)
	assert.Equal(t, ChartPreferences{Type: "radar", Theme: "default"}, p.ChartPreferences)
	assert.Equal(t, SalaryRange{Min: 15000, Max: 50000, Currency: "CNY"}, p.SalaryExpectation)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestProfile_SkillsAreASet(t *testing.T) {
	p := NewProfile("user_1", "", time.Now())
	p.AddSkill("go")
	p.AddSkill("sql")
	p.AddSkill("go")
	p.AddInterest("ml")
	p.AddInterest("ml")

	assert.Equal(t, []string{"go", "sql"}, p.Skills)
	assert.Equal(t, []string{"ml"}, p.Interests)
}

func TestProfile_Dedupe(t *testing.T) {
	p := NewProfile("user_1", "", time.Now())
	p.Skills = []string{"go", "sql", "go", "go"}
	p.Interests = []string{"ml", "ml"}
	p.Dedupe()

	assert.Equal(t, []string{"go", "sql"}, p.Skills)
	assert.Equal(t, []string{"ml"}, p.Interests)
}

func TestEvent_JSONKeys(t *testing.T) {
	e := Event{ID: "a", UserID: "u", Kind: ActionOpportunityView, Details: map[string]any{}}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "opportunity_view", m["action_type"])
	assert.NotContains(t, m, "client")
	assert.NotContains(t, m, "session_id")
}
