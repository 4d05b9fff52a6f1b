package models

import (
	"fmt"
	"time"
)

// ActionKind is the closed set of behavior events the log accepts.
type ActionKind string

const (
	ActionLogin            ActionKind = "login"
	ActionLogout           ActionKind = "logout"
	ActionAssessment       ActionKind = "assessment"
	ActionOpportunityView  ActionKind = "opportunity_view"
	ActionOpportunityApply ActionKind = "opportunity_apply"
	ActionLearningPlan     ActionKind = "learning_plan"
	ActionSkillUpdate      ActionKind = "skill_update"
	ActionPreferenceUpdate ActionKind = "preference_update"
	ActionSearch           ActionKind = "search"
	ActionFilter           ActionKind = "filter"
	ActionExport           ActionKind = "export"
	ActionShare            ActionKind = "share"
)

// AllActionKinds lists every kind in declaration order.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionLogin, ActionLogout, ActionAssessment, ActionOpportunityView,
		ActionOpportunityApply, ActionLearningPlan, ActionSkillUpdate,
		ActionPreferenceUpdate, ActionSearch, ActionFilter, ActionExport, ActionShare,
	}
}

// ParseActionKind rejects anything outside the closed set.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

func (k ActionKind) Valid() bool {
	switch k {
	case ActionLogin, ActionLogout, ActionAssessment, ActionOpportunityView,
		ActionOpportunityApply, ActionLearningPlan, ActionSkillUpdate,
		ActionPreferenceUpdate, ActionSearch, ActionFilter, ActionExport, ActionShare:
		return true
	}
	return false
}

// Event is one immutable entry of the behavior log. Seq orders events
// globally and is assigned by the log on append.
type Event struct {
	ID        string         `json:"action_id"`
	Seq       uint64         `json:"seq"`
	UserID    string         `json:"user_id"`
	Kind      ActionKind     `json:"action_type"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
	SessionID string         `json:"session_id,omitempty"`
	Client    *ClientInfo    `json:"client,omitempty"`
}

// EventMeta is the optional context attached to an appended event.
type EventMeta struct {
	SessionID string
	Client    *ClientInfo
}
