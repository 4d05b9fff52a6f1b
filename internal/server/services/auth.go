package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// resetClient marks sessions created only to carry a reset token.
var resetClient = models.ClientInfo{UserAgent: "password-reset"}

// AuthService runs the account flows on top of the identity manager, the
// session manager and the event log. Successful flows are recorded as
// behavior events.
type AuthService struct {
	identity *IdentityManager
	sessions *SessionManager
	events   *EventLog
	logger   logging.Logger
}

func NewAuthService(identity *IdentityManager, sessions *SessionManager, events *EventLog, logger logging.Logger) *AuthService {
	return &AuthService{identity: identity, sessions: sessions, events: events, logger: logger.With("module", "auth")}
}

// record appends an event; a failing log never fails the flow.
func (s *AuthService) record(ctx context.Context, userID string, kind models.ActionKind, details map[string]any, meta models.EventMeta) {
	if _, err := s.events.Append(ctx, userID, kind, details, meta); err != nil {
		s.logger.Warn(ctx, "event not recorded", "user_id", userID, "kind", kind, "error", err)
	}
}

type RegisterRequest struct {
	Username string
	Email    string
	Password string
	FullName string
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	u, err := s.identity.CreateUser(ctx, req.Username, req.Email, req.Password, CreateUserOptions{FullName: req.FullName})
	if err != nil {
		return nil, err
	}
	s.record(ctx, u.ID, models.ActionLogin, map[string]any{"action": "register"}, models.EventMeta{})
	return u, nil
}

// Login authenticates, opens a session and returns a token pair bound to it.
func (s *AuthService) Login(ctx context.Context, identifier, password string, client models.ClientInfo) (*models.User, *models.TokenPair, error) {
	u, err := s.identity.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sessions.CreateSession(ctx, u.ID, client)
	if err != nil {
		return nil, nil, err
	}
	access, err := s.sessions.IssueToken(u.ID, sess.ID, models.TokenAccess)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.sessions.IssueToken(u.ID, sess.ID, models.TokenRefresh)
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, u.ID, models.ActionLogin, map[string]any{"action": "login"},
		models.EventMeta{SessionID: sess.ID, Client: &client})
	s.logger.Info(ctx, "user logged in", "user_id", u.ID, "session_id", sess.ID)

	return u, &models.TokenPair{AccessToken: access, RefreshToken: refresh, SessionID: sess.ID}, nil
}

// Logout ends the caller's session.
func (s *AuthService) Logout(ctx context.Context, info *models.TokenInfo) error {
	if err := s.sessions.Logout(ctx, info.SessionID); err != nil {
		return err
	}
	s.record(ctx, info.UserID, models.ActionLogout, map[string]any{}, models.EventMeta{SessionID: info.SessionID})
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return s.sessions.RefreshAccessToken(ctx, refreshToken)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := s.identity.ChangePassword(ctx, userID, oldPassword, newPassword); err != nil {
		return err
	}
	s.record(ctx, userID, models.ActionPreferenceUpdate, map[string]any{"action": "change_password"}, models.EventMeta{})
	return nil
}

// RequestPasswordReset returns a reset token for the account with email.
// An unknown email yields an empty token and no error so callers cannot
// discover accounts. The token is bound to a dedicated session that ends
// when the reset is confirmed.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.identity.GetUserByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !u.IsActive() {
		return "", nil
	}

	sess, err := s.sessions.CreateSession(ctx, u.ID, resetClient)
	if err != nil {
		return "", err
	}
	token, err := s.sessions.IssueToken(u.ID, sess.ID, models.TokenReset)
	if err != nil {
		return "", err
	}
	s.record(ctx, u.ID, models.ActionPreferenceUpdate, map[string]any{"action": "password_reset_request"}, models.EventMeta{SessionID: sess.ID})
	return token, nil
}

// ConfirmPasswordReset sets a new password and ends every session of the
// user, the reset session included.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	info, err := s.sessions.VerifyResetToken(ctx, resetToken)
	if err != nil {
		return err
	}
	if err := s.identity.SetPassword(ctx, info.UserID, newPassword); err != nil {
		return err
	}
	if _, err := s.sessions.TerminateAllSessions(ctx, info.UserID, ""); err != nil {
		return fmt.Errorf("end sessions after reset: %w", err)
	}
	s.record(ctx, info.UserID, models.ActionPreferenceUpdate, map[string]any{"action": "password_reset"}, models.EventMeta{})
	return nil
}

// DeleteAccount soft-deletes the user and ends all of their sessions.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.identity.DeleteUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.sessions.TerminateAllSessions(ctx, userID, ""); err != nil {
		return fmt.Errorf("end sessions after delete: %w", err)
	}
	s.logger.Info(ctx, "account deleted", "user_id", userID)
	return nil
}
