package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
)

// SessionManager tracks login sessions and the tokens bound to them.
// Tokens are self-describing; a session's liveness is re-checked on
// every verification, so ending a session revokes its tokens.
type SessionManager struct {
	sessions sessions.Repository
	users    users.Repository
	issuer   *auth.Issuer
	clock    common.Clock
	timeout  time.Duration
	logger   logging.Logger
}

func NewSessionManager(m repomanager.RepositoryManager, issuer *auth.Issuer, clock common.Clock, timeout time.Duration, logger logging.Logger) *SessionManager {
	return &SessionManager{
		sessions: m.Sessions(),
		users:    m.Users(),
		issuer:   issuer,
		clock:    clock,
		timeout:  timeout,
		logger:   logger.With("module", "sessions"),
	}
}

func newSessionID() (string, error) {
	h, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}
	return "session_" + h, nil
}

func (m *SessionManager) CreateSession(ctx context.Context, userID string, client models.ClientInfo) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: session id: %w", common.ErrorInternal, err)
	}
	now := m.clock.Now()
	s := &models.Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Client:       client,
		IsActive:     true,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Debug(ctx, "session created", "user_id", userID, "session_id", id)
	return s, nil
}

func (m *SessionManager) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return m.sessions.Get(ctx, id)
}

func (m *SessionManager) IssueToken(userID, sessionID string, kind models.TokenKind) (string, error) {
	return m.issuer.Issue(userID, sessionID, kind)
}

// VerifyToken checks an access token and touches its session.
func (m *SessionManager) VerifyToken(ctx context.Context, token string) (*models.TokenInfo, error) {
	return m.verify(ctx, token, models.TokenAccess)
}

// VerifyResetToken checks a password reset token and touches its session.
func (m *SessionManager) VerifyResetToken(ctx context.Context, token string) (*models.TokenInfo, error) {
	return m.verify(ctx, token, models.TokenReset)
}

func (m *SessionManager) verify(ctx context.Context, token string, kind models.TokenKind) (*models.TokenInfo, error) {
	info, err := m.issuer.Parse(token, kind)
	if err != nil {
		return nil, err
	}
	u, err := m.users.Get(ctx, info.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown user", common.ErrInvalidToken)
		}
		return nil, err
	}
	if !u.IsActive() {
		return nil, common.ErrAccountDisabled
	}
	if err := m.touch(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

// touch refreshes last_activity of an active session owned by info.UserID.
func (m *SessionManager) touch(ctx context.Context, info *models.TokenInfo) error {
	now := m.clock.Now()
	_, err := m.sessions.Update(ctx, info.SessionID, func(s *models.Session) error {
		if s.UserID != info.UserID {
			return fmt.Errorf("%w: session owner mismatch", common.ErrInvalidToken)
		}
		if !s.IsActive {
			return common.ErrSessionInactive
		}
		s.LastActivity = now
		return nil
	})
	if errors.Is(err, common.ErrSessionNotFound) {
		return common.ErrSessionInactive
	}
	return err
}

// RefreshAccessToken mints a new access token from a refresh token whose
// session is still active.
func (m *SessionManager) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	info, err := m.verify(ctx, refreshToken, models.TokenRefresh)
	if err != nil {
		return "", err
	}
	return m.issuer.Issue(info.UserID, info.SessionID, models.TokenAccess)
}

// Logout ends a session. Ending an already inactive session is a no-op.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	_, err := m.sessions.Update(ctx, sessionID, func(s *models.Session) error {
		s.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Debug(ctx, "session ended", "session_id", sessionID)
	return nil
}

func deactivate(s *models.Session) bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	return true
}

// SweepExpiredSessions deactivates active sessions idle longer than timeout.
func (m *SessionManager) SweepExpiredSessions(ctx context.Context, timeout time.Duration) (int, error) {
	now := m.clock.Now()
	n, err := m.sessions.UpdateWhere(ctx,
		func(s *models.Session) bool { return now.Sub(s.LastActivity) > timeout },
		deactivate)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info(ctx, "expired sessions swept", "count", n)
	}
	return n, nil
}

// PurgeInactiveSessions deletes inactive sessions idle longer than olderThan.
func (m *SessionManager) PurgeInactiveSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	now := m.clock.Now()
	n, err := m.sessions.DeleteWhere(ctx, func(s *models.Session) bool {
		return !s.IsActive && now.Sub(s.LastActivity) > olderThan
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info(ctx, "inactive sessions purged", "count", n)
	}
	return n, nil
}

// ActiveSessions lists the user's active sessions seen within the session
// timeout, most recent first.
func (m *SessionManager) ActiveSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	all, err := m.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	out := make([]*models.Session, 0)
	for _, s := range all {
		if s.UserID == userID && s.IsActive && now.Sub(s.LastActivity) <= m.timeout {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

// TerminateSession ends one of the user's own sessions.
func (m *SessionManager) TerminateSession(ctx context.Context, sessionID, userID string) error {
	_, err := m.sessions.Update(ctx, sessionID, func(s *models.Session) error {
		if s.UserID != userID {
			return common.ErrSessionNotFound
		}
		s.IsActive = false
		return nil
	})
	return err
}

// TerminateAllSessions ends every active session of the user except the
// one named by except (may be empty) and returns how many were ended.
func (m *SessionManager) TerminateAllSessions(ctx context.Context, userID, except string) (int, error) {
	return m.sessions.UpdateWhere(ctx,
		func(s *models.Session) bool { return s.UserID == userID && s.ID != except },
		deactivate)
}
