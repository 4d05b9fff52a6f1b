// Package server wires the store, the account and analytics services and
// the gRPC transport together and runs them until a signal arrives.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/analytics"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/userkeeper/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	sessions *services.SessionManager
	services gs.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout, common.RealClock())
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer, clock common.Clock) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(logOut, c.LogLevel)

	rm, err := repomanager.New(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	issuer := auth.NewIssuer([]byte(c.SecretKey), clock, auth.TTLs{
		Access:  c.AccessTokenValidityDuration,
		Refresh: c.RefreshTokenValidityDuration,
		Reset:   c.ResetTokenValidityDuration,
	})

	identity := services.NewIdentityManager(rm, clock, logger)
	sessions := services.NewSessionManager(rm, issuer, clock, c.SessionTimeout, logger)
	events := services.NewEventLog(rm, clock, logger)

	var archiver services.Archiver
	if c.ExportToS3 {
		archiver = services.NewS3Archiver(c, clock)
	}

	svc := gs.Services{
		Auth:      services.NewAuthService(identity, sessions, events, logger),
		Identity:  identity,
		Sessions:  sessions,
		Events:    events,
		Analytics: analytics.NewEngine(events, identity, clock, logger),
		Export:    services.NewExportService(identity, events, archiver, clock, logger),
	}

	return &App{config: c, logger: logger, repos: rm, sessions: sessions, services: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.services)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// sweep deactivates idle sessions and purges long inactive ones.
func (app *App) sweep(ctx context.Context) {
	if _, err := app.sessions.SweepExpiredSessions(ctx, app.config.SessionTimeout); err != nil {
		app.logger.Error(ctx, "session sweep failed", "error", err)
	}
	if _, err := app.sessions.PurgeInactiveSessions(ctx, app.config.InactiveSessionRetention); err != nil {
		app.logger.Error(ctx, "session purge failed", "error", err)
	}
}

func (app *App) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweep(ctx)
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweeper(ctx, app.config.SessionSweepInterval)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(context.Background(), "store close failed", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
