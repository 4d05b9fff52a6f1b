package models

import "time"

// ClientInfo is what the transport knows about the caller.
type ClientInfo struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Session is created on login. IsActive only ever goes from true to false.
type Session struct {
	ID           string     `json:"session_id"`
	UserID       string     `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	Client       ClientInfo `json:"client"`
	IsActive     bool       `json:"is_active"`
}
