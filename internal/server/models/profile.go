package models

import "time"

// AssessmentSnapshot is one entry of a profile's assessment history.
type AssessmentSnapshot struct {
	Score   float64        `json:"score"`
	TakenAt time.Time      `json:"taken_at"`
	Details map[string]any `json:"details,omitempty"`
}

type Profile struct {
	UserID              string               `json:"user_id"`
	FullName            string               `json:"full_name"`
	AvatarURL           string               `json:"avatar_url"`
	Bio                 string               `json:"bio"`
	Location            string               `json:"location"`
	Industry            string               `json:"industry"`
	CurrentRole         string               `json:"current_role"`
	ExperienceYears     int                  `json:"experience_years"`
	EducationLevel      string               `json:"education_level"`
	CareerGoals         []string             `json:"career_goals"`
	Skills              []string             `json:"skills"`
	Interests           []string             `json:"interests"`
	SocialLinks         map[string]string    `json:"social_links"`
	LastAssessmentScore *float64             `json:"last_assessment_score,omitempty"`
	LastAssessmentDate  *time.Time           `json:"last_assessment_date,omitempty"`
	AssessmentHistory   []AssessmentSnapshot `json:"assessment_history"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// NewProfile returns the empty profile created alongside a user.
func NewProfile(userID string, fullName string, now time.Time) *Profile {
	return &Profile{
		UserID:            userID,
		FullName:          fullName,
		CareerGoals:       []string{},
		Skills:            []string{},
		Interests:         []string{},
		SocialLinks:       map[string]string{},
		AssessmentHistory: []AssessmentSnapshot{},
		UpdatedAt:         now,
	}
}

// AddSkill adds s unless it is already present; skills behave as a set.
func (p *Profile) AddSkill(s string) {
	p.Skills = addUnique(p.Skills, s)
}

// AddInterest adds s unless it is already present.
func (p *Profile) AddInterest(s string) {
	p.Interests = addUnique(p.Interests, s)
}

// Dedupe drops repeated skills and interests, keeping first occurrences.
func (p *Profile) Dedupe() {
	p.Skills = dedupe(p.Skills)
	p.Interests = dedupe(p.Interests)
}

func dedupe(list []string) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = addUnique(out, v)
	}
	return out
}

func addUnique(set []string, s string) []string {
	for _, v := range set {
		if v == s {
			return set
		}
	}
	return append(set, s)
}
