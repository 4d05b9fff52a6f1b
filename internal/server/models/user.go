// Package models defines the records persisted by the store and passed
// between services. All records serialize to JSON with snake_case keys.
package models

import (
	"fmt"
	"time"
)

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
	StatusDeleted   UserStatus = "deleted"
)

// ParseUserStatus maps a wire value onto a known status.
func ParseUserStatus(s string) (UserStatus, error) {
	switch st := UserStatus(s); st {
	case StatusActive, StatusInactive, StatusSuspended, StatusDeleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown user status %q", s)
	}
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool { return u.Status == StatusActive }
