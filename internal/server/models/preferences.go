package models

import "time"

type WorkType string

const (
	WorkRemote WorkType = "remote"
	WorkHybrid WorkType = "hybrid"
	WorkOnsite WorkType = "onsite"
)

type SalaryRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
}

type ChartPreferences struct {
	Type  string `json:"type"`
	Theme string `json:"theme"`
}

type Preferences struct {
	UserID string `json:"user_id"`

	WorkType            WorkType    `json:"work_type,omitempty"`
	JobTypes            []string    `json:"job_types"`
	SalaryExpectation   SalaryRange `json:"salary_expectation"`
	LocationPreferences []string    `json:"location_preferences"`
	IndustryPreferences []string    `json:"industry_preferences"`
	CompanySize         string      `json:"company_size,omitempty"`

	LearningStyle string `json:"learning_style,omitempty"`
	LearningTime  string `json:"learning_time,omitempty"`
	LearningPace  string `json:"learning_pace,omitempty"`

	EmailFrequency    string   `json:"email_frequency"`
	NotificationTypes []string `json:"notification_types"`

	DataSharing       string `json:"data_sharing"`
	ProfileVisibility string `json:"profile_visibility"`

	DashboardWidgets []string         `json:"dashboard_widgets"`
	ChartPreferences ChartPreferences `json:"chart_preferences"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewPreferences returns the defaults every new account starts with.
func NewPreferences(userID string, now time.Time) *Preferences {
	return &Preferences{
		UserID:              userID,
		JobTypes:            []string{},
		SalaryExpectation:   SalaryRange{Min: 15000, Max: 50000, Currency: "CNY"},
		LocationPreferences: []string{},
		IndustryPreferences: []string{},
		EmailFrequency:      "weekly",
		NotificationTypes:   []string{"opportunities", "learning", "trends"},
		DataSharing:         "medium",
		ProfileVisibility:   "private",
		DashboardWidgets:    []string{"freedom_score", "opportunities", "learning_progress"},
		ChartPreferences:    ChartPreferences{Type: "radar", Theme: "default"},
		UpdatedAt:           now,
	}
}
