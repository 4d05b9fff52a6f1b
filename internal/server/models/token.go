package models

import "time"

// TokenKind scopes what a token may be used for.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenReset   TokenKind = "reset"
)

// TokenInfo is the verified content of a token.
type TokenInfo struct {
	UserID    string
	SessionID string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is returned by login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}
