package repomanager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, driver string) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoreDriver = driver
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestNewStoreRepositoryManager_Factories(t *testing.T) {
	m := NewStoreRepositoryManager(store.NewMemoryStore(), 10, events.CapGlobal)

	assert.NotNil(t, m.Users())
	assert.NotNil(t, m.Profiles())
	assert.NotNil(t, m.Preferences())
	assert.NotNil(t, m.Sessions())
	assert.NotNil(t, m.Events())
	assert.NotNil(t, m.Store())
	assert.NoError(t, m.Close())

	var _ RepositoryManager = m
}

func TestOpenStore_File(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)

	s, err := OpenStore(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, s)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err, "data dir created")
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := testConfig(t, config.DriverSQLite)

	m, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.IsType(t, &store.SQLStore{}, m.Store())
	_, err = os.Stat(filepath.Join(cfg.DataDir, "userkeeper.db"))
	assert.NoError(t, err)
}

func TestOpenStore_PostgresUsesDSN(t *testing.T) {
	orig := openPostgres
	defer func() { openPostgres = orig }()

	var gotDSN string
	openPostgres = func(ctx context.Context, dsn string, _ logging.Logger) (*store.SQLStore, error) {
		gotDSN = dsn
		return nil, errors.New("no database here")
	}

	cfg := testConfig(t, config.DriverPostgres)
	cfg.DatabaseDSN = "postgres://u:p@db/x"

	_, err := New(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
	assert.Equal(t, "postgres://u:p@db/x", gotDSN)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, err := OpenStore(context.Background(), testConfig(t, "mongo"), logging.Nop())
	assert.Error(t, err)
}
