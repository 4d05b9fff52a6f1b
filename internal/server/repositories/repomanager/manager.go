// Package repomanager vends the typed repositories over one store backend
// and picks that backend from configuration.
package repomanager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/userkeeper/internal/filex"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/preferences"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
)

type RepositoryManager interface {
	Users() users.Repository
	Profiles() profiles.Repository
	Preferences() preferences.Repository
	Sessions() sessions.Repository
	Events() events.Repository
	Close() error
}

// StoreRepositoryManager builds every repository over a single Store.
type StoreRepositoryManager struct {
	store       store.Store
	users       *users.StoreRepository
	profiles    *profiles.StoreRepository
	preferences *preferences.StoreRepository
	sessions    *sessions.StoreRepository
	events      *events.StoreRepository
}

func NewStoreRepositoryManager(s store.Store, eventCap int, scope events.CapScope) *StoreRepositoryManager {
	return &StoreRepositoryManager{
		store:       s,
		users:       users.NewStoreRepository(s),
		profiles:    profiles.NewStoreRepository(s),
		preferences: preferences.NewStoreRepository(s),
		sessions:    sessions.NewStoreRepository(s),
		events:      events.NewStoreRepository(s, eventCap, scope),
	}
}

func (m *StoreRepositoryManager) Users() users.Repository             { return m.users }
func (m *StoreRepositoryManager) Profiles() profiles.Repository       { return m.profiles }
func (m *StoreRepositoryManager) Preferences() preferences.Repository { return m.preferences }
func (m *StoreRepositoryManager) Sessions() sessions.Repository       { return m.sessions }
func (m *StoreRepositoryManager) Events() events.Repository           { return m.events }

// Store exposes the backend, mainly for maintenance and tests.
func (m *StoreRepositoryManager) Store() store.Store { return m.store }

func (m *StoreRepositoryManager) Close() error { return m.store.Close() }

// Seams for tests; SQL backends need a live database.
var (
	openSQLite   = store.OpenSQLite
	openPostgres = store.OpenPostgres
)

// OpenStore selects the backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverFile:
		s, err = store.NewFileStore(cfg.DataDir)
	case config.DriverSQLite:
		var dir string
		if dir, err = filex.EnsureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		s, err = openSQLite(ctx, filepath.Join(dir, "userkeeper.db"), logger)
	case config.DriverPostgres:
		s, err = openPostgres(ctx, cfg.DatabaseDSN, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New opens the configured backend and wraps it in a manager.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*StoreRepositoryManager, error) {
	s, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return NewStoreRepositoryManager(s, cfg.EventCap, events.CapScope(cfg.EventCapScope)), nil
}
