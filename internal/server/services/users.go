// Package services contains the server-side business logic: identities,
// sessions and tokens, the behavior log, the auth flows built on them and
// user data export.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/cryptox"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/preferences"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// CreateUserOptions carries the optional fields of a new account.
type CreateUserOptions struct {
	FullName string
}

// IdentityManager owns users, profiles and preferences. It keeps a
// username/email index in memory so lookups do not scan the collection.
type IdentityManager struct {
	users       users.Repository
	profiles    profiles.Repository
	preferences preferences.Repository
	clock       common.Clock
	logger      logging.Logger

	idxMu      sync.RWMutex
	idxLoaded  bool
	byUsername map[string]string
	byEmail    map[string]string
}

func NewIdentityManager(m repomanager.RepositoryManager, clock common.Clock, logger logging.Logger) *IdentityManager {
	return &IdentityManager{
		users:       m.Users(),
		profiles:    m.Profiles(),
		preferences: m.Preferences(),
		clock:       clock,
		logger:      logger.With("module", "identity"),
	}
}

func validateNewUser(username, email, password string) error {
	switch {
	case utf8.RuneCountInString(strings.TrimSpace(username)) < minUsernameLen:
		return fmt.Errorf("%w: username must be at least %d characters", common.ErrValidation, minUsernameLen)
	case utf8.RuneCountInString(password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	case !strings.Contains(email, "@"):
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	return nil
}

func newUserID() (string, error) {
	h, err := common.MakeRandHexString(6)
	if err != nil {
		return "", err
	}
	return "user_" + h, nil
}

// CreateUser stores a new active user together with an empty profile and
// default preferences.
func (m *IdentityManager) CreateUser(ctx context.Context, username, email, password string, opts CreateUserOptions) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateNewUser(username, email, password); err != nil {
		return nil, err
	}
	if err := m.ensureIndex(ctx); err != nil {
		return nil, err
	}

	id, err := newUserID()
	if err != nil {
		return nil, fmt.Errorf("%w: user id: %w", common.ErrorInternal, err)
	}
	now := m.clock.Now()
	u := &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: cryptox.HashPassword(password),
		Status:       models.StatusActive,
		CreatedAt:    now,
	}

	if err := m.users.Create(ctx, u); err != nil {
		return nil, err
	}
	m.index(u)

	if err := m.profiles.Put(ctx, models.NewProfile(id, opts.FullName, now)); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if err := m.preferences.Put(ctx, models.NewPreferences(id, now)); err != nil {
		return nil, fmt.Errorf("create preferences: %w", err)
	}

	m.logger.Info(ctx, "user created", "user_id", id)
	return u, nil
}

func (m *IdentityManager) ensureIndex(ctx context.Context) error {
	m.idxMu.RLock()
	loaded := m.idxLoaded
	m.idxMu.RUnlock()
	if loaded {
		return nil
	}

	all, err := m.users.List(ctx)
	if err != nil {
		return err
	}

	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	if m.idxLoaded {
		return nil
	}
	m.byUsername = make(map[string]string, len(all))
	m.byEmail = make(map[string]string, len(all))
	for _, u := range all {
		m.byUsername[u.Username] = u.ID
		m.byEmail[u.Email] = u.ID
	}
	m.idxLoaded = true
	return nil
}

func (m *IdentityManager) index(u *models.User) {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	if !m.idxLoaded {
		return
	}
	m.byUsername[u.Username] = u.ID
	m.byEmail[u.Email] = u.ID
}

// lookup trims key the same way CreateUser trims what it indexes.
func (m *IdentityManager) lookup(ctx context.Context, idx func() map[string]string, key string) (*models.User, error) {
	if err := m.ensureIndex(ctx); err != nil {
		return nil, err
	}
	m.idxMu.RLock()
	id, ok := idx()[strings.TrimSpace(key)]
	m.idxMu.RUnlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return m.users.Get(ctx, id)
}

func (m *IdentityManager) GetUser(ctx context.Context, id string) (*models.User, error) {
	return m.users.Get(ctx, id)
}

func (m *IdentityManager) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.lookup(ctx, func() map[string]string { return m.byUsername }, username)
}

func (m *IdentityManager) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.lookup(ctx, func() map[string]string { return m.byEmail }, email)
}

// ListUsers returns every stored user, deleted ones included.
func (m *IdentityManager) ListUsers(ctx context.Context) ([]*models.User, error) {
	return m.users.List(ctx)
}

// Authenticate resolves identifier as a username, then as an email, and
// checks the password. Unknown identifiers and wrong passwords are
// indistinguishable; a disabled account is reported only after the
// password matched.
func (m *IdentityManager) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	u, err := m.GetUserByUsername(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		u, err = m.GetUserByEmail(ctx, identifier)
	}
	if errors.Is(err, common.ErrorNotFound) {
		cryptox.BurnVerify(password)
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := cryptox.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		m.logger.Error(ctx, "stored password hash unreadable", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, common.ErrAccountDisabled
	}

	now := m.clock.Now()
	return m.users.Update(ctx, u.ID, func(u *models.User) error {
		u.LastLogin = &now
		return nil
	})
}

// DeleteUser marks the account deleted. Profile, preferences and events
// are kept, and the username and email stay reserved.
func (m *IdentityManager) DeleteUser(ctx context.Context, id string) error {
	return m.SetStatus(ctx, id, models.StatusDeleted)
}

func (m *IdentityManager) SetStatus(ctx context.Context, id string, status models.UserStatus) error {
	if _, err := models.ParseUserStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	_, err := m.users.Update(ctx, id, func(u *models.User) error {
		u.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info(ctx, "user status changed", "user_id", id, "status", status)
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (m *IdentityManager) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	u, err := m.users.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := cryptox.VerifyPassword(oldPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if !ok {
		return common.ErrInvalidCredentials
	}
	return m.SetPassword(ctx, id, newPassword)
}

// SetPassword replaces the password without checking the old one.
func (m *IdentityManager) SetPassword(ctx context.Context, id, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash := cryptox.HashPassword(newPassword)
	_, err := m.users.Update(ctx, id, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
	return err
}

func (m *IdentityManager) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return m.profiles.Get(ctx, id)
}

func (m *IdentityManager) GetPreferences(ctx context.Context, id string) (*models.Preferences, error) {
	return m.preferences.Get(ctx, id)
}

// UpdateProfile applies fn to the user's profile, creating an empty one
// first if there is none.
func (m *IdentityManager) UpdateProfile(ctx context.Context, id string, fn func(p *models.Profile) error) (*models.Profile, error) {
	if _, err := m.users.Get(ctx, id); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	return m.profiles.Upsert(ctx, id,
		func() *models.Profile { return models.NewProfile(id, "", now) },
		func(p *models.Profile) error {
			if err := fn(p); err != nil {
				return err
			}
			p.Dedupe()
			p.UpdatedAt = now
			return nil
		})
}

// UpdatePreferences applies fn to the user's preferences, starting from the
// defaults if there are none.
func (m *IdentityManager) UpdatePreferences(ctx context.Context, id string, fn func(p *models.Preferences) error) (*models.Preferences, error) {
	if _, err := m.users.Get(ctx, id); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	return m.preferences.Upsert(ctx, id,
		func() *models.Preferences { return models.NewPreferences(id, now) },
		func(p *models.Preferences) error {
			if err := fn(p); err != nil {
				return err
			}
			p.UpdatedAt = now
			return nil
		})
}

// RecordAssessment appends a score snapshot to the profile history.
func (m *IdentityManager) RecordAssessment(ctx context.Context, id string, score float64, details map[string]any) (*models.Profile, error) {
	now := m.clock.Now()
	return m.UpdateProfile(ctx, id, func(p *models.Profile) error {
		p.AssessmentHistory = append(p.AssessmentHistory, models.AssessmentSnapshot{
			Score:   score,
			TakenAt: now,
			Details: details,
		})
		p.LastAssessmentScore = &score
		p.LastAssessmentDate = &now
		return nil
	})
}
