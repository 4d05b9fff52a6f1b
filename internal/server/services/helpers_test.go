package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type env struct {
	clock    *common.ManualClock
	store    store.Store
	repos    *repomanager.StoreRepositoryManager
	identity *IdentityManager
	sessions *SessionManager
	events   *EventLog
	auth     *AuthService
}

func newEnvWithStore(t *testing.T, s store.Store) *env {
	t.Helper()
	clock := common.NewManualClock(t0)
	repos := repomanager.NewStoreRepositoryManager(s, 100, events.CapGlobal)
	issuer := auth.NewIssuer([]byte("test-secret"), clock, auth.TTLs{
		Access: 24 * time.Hour, Refresh: 30 * 24 * time.Hour, Reset: time.Hour,
	})
	log := logging.Nop()

	e := &env{clock: clock, store: s, repos: repos}
	e.identity = NewIdentityManager(repos, clock, log)
	e.sessions = NewSessionManager(repos, issuer, clock, 24*time.Hour, log)
	e.events = NewEventLog(repos, clock, log)
	e.auth = NewAuthService(e.identity, e.sessions, e.events, log)
	return e
}

func newEnv(t *testing.T) *env {
	return newEnvWithStore(t, store.NewMemoryStore())
}

func (e *env) mustUser(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.identity.CreateUser(context.Background(), name, name+"@example.com", "password1", CreateUserOptions{})
	require.NoError(t, err)
	return u
}

// failingStore fails every operation on the named collection.
type failingStore struct {
	store.Store
	fail store.Collection
	err  error
}

func (f *failingStore) Load(ctx context.Context, c store.Collection) (store.Records, error) {
	if c == f.fail {
		return nil, f.err
	}
	return f.Store.Load(ctx, c)
}

func (f *failingStore) Update(ctx context.Context, c store.Collection, fn store.UpdateFunc) error {
	if c == f.fail {
		return f.err
	}
	return f.Store.Update(ctx, c, fn)
}
