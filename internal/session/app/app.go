package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleychat/parley/internal/backend"
	"github.com/parleychat/parley/internal/session/browser"
	"github.com/parleychat/parley/internal/session/events"
	"github.com/parleychat/parley/internal/session/service"
	"github.com/parleychat/parley/internal/session/store"
	"github.com/parleychat/parley/internal/session/store/drivers/sqlite"
	"github.com/parleychat/parley/pkg/cryptox"
	"github.com/parleychat/parley/pkg/providersdk"
	"github.com/parleychat/parley/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the session core and the downstream clients
// together, one instance of each per process.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	bus      *events.Bus
	provider *providersdk.Client

	// Services
	manager *service.Manager
	signIn  *service.SignInService
	refresh *service.RefreshService

	// Downstream clients
	data       *backend.DataClient
	storage    *backend.StorageClient
	transcribe *backend.TranscribeClient
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.ProviderBase == "" {
		return nil, errors.New("provider URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("anon key is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			App:     "parley",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set the master key path before anything touches sealed storage
	cryptox.SetMasterKeyPath(cfg.MasterKeyPath)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.bus = events.NewBus()
	app.provider = providersdk.NewClient(cfg.ProviderBase, cfg.AnonKey)

	app.initServices()
	app.initBackendClients()

	return app, nil
}

// Start primes the session from storage and, when a session survives
// the restart, brings the refresh scheduler up. The scheduler's first
// evaluation runs immediately, so a token that expired while the
// process was down is renewed before first use.
func (app *Application) Start(ctx context.Context) error {
	if err := app.manager.Prime(ctx); err != nil {
		return fmt.Errorf("failed to prime session: %w", err)
	}

	if app.manager.SignedIn() {
		app.refresh.Start()
		app.logger.Info("session restored from storage")
	} else {
		app.logger.Info("no stored session, sign-in required")
	}

	return nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx := context.Background()

	if err := app.Start(ctx); err != nil {
		return err
	}

	app.logger.Info("parley session core running", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops the background loop and releases held resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down...")

	app.refresh.Stop()
	app.bus.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("parley session core stopped")
	return nil
}

// SignIn runs the interactive sign-in flow for the given upstream
// provider.
func (app *Application) SignIn(ctx context.Context, provider string) error {
	_, err := app.signIn.SignIn(ctx, provider)
	return err
}

// SignOut ends the current session at the user's request.
func (app *Application) SignOut(ctx context.Context) error {
	return app.manager.SignOut(ctx)
}

// Session exposes the session manager to UI layers.
func (app *Application) Session() *service.Manager { return app.manager }

// Events exposes the session event bus to UI layers.
func (app *Application) Events() *events.Bus { return app.bus }

// Data returns the conversation data client.
func (app *Application) Data() *backend.DataClient { return app.data }

// Storage returns the object storage client.
func (app *Application) Storage() *backend.StorageClient { return app.storage }

// Transcribe returns the transcription client.
func (app *Application) Transcribe() *backend.TranscribeClient { return app.transcribe }

// initDatabase opens the credential database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices wires the session services together.
func (app *Application) initServices() {
	app.manager = &service.Manager{
		Store:   app.db,
		Bus:     app.bus,
		Logger:  app.logger,
		AnonKey: app.cfg.AnonKey,
	}

	app.refresh = &service.RefreshService{
		Manager:  app.manager,
		Provider: app.provider,
		Logger:   app.logger,
		Interval: app.cfg.RefreshInterval,
		Window:   app.cfg.RenewalWindow,
		TokenTTL: app.cfg.AccessTokenTTL,
	}
	app.manager.SetScheduler(app.refresh)

	app.signIn = &service.SignInService{
		Manager:  app.manager,
		Provider: app.provider,
		Surface: &browser.Loopback{
			Addr:   app.cfg.CallbackAddr,
			Logger: app.logger,
		},
		Scheduler: app.refresh,
		TokenTTL:  app.cfg.AccessTokenTTL,
	}
}

// initBackendClients creates the downstream clients that share the
// manager as their request authorizer.
func (app *Application) initBackendClients() {
	if app.cfg.DataBase != "" {
		app.data = backend.NewDataClient(app.cfg.DataBase, app.manager)
	}
	if app.cfg.StorageBase != "" {
		app.storage = backend.NewStorageClient(app.cfg.StorageBase, app.manager)
	}
	if app.cfg.TranscribeBase != "" {
		app.transcribe = backend.NewTranscribeClient(app.cfg.TranscribeBase, app.manager)
	}
}
