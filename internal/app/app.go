package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/autolinkhq/autolink/internal/http"
	"github.com/autolinkhq/autolink/internal/oauth"
	"github.com/autolinkhq/autolink/internal/service"
	"github.com/autolinkhq/autolink/internal/session"
	"github.com/autolinkhq/autolink/internal/store"
	"github.com/autolinkhq/autolink/internal/store/drivers/sqlite"
	"github.com/autolinkhq/autolink/pkg/cryptox"
	"github.com/autolinkhq/autolink/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	redis    *redis.Client
	sessions *session.Manager

	identityService     *service.IdentityService
	workspaceService    *service.WorkspaceService
	inviteService       *service.InviteService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "autolink",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		_ = app.redis.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("autolink starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down autolink...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("autolink stopped")
	return nil
}

// initDatabase opens sqlite and applies migrations. Write transactions begin
// IMMEDIATE so check-then-act sequences (admin counting, invite acceptance)
// serialize on the database write lock.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		app.cfg.DatabaseFile,
	)
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

func (app *Application) initSessions() error {
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	if err := app.redis.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.sessions = session.NewManager(session.NewRedisKV(app.redis), app.cfg.SessionTTL)
	return nil
}

func (app *Application) initServices() {
	app.identityService = &service.IdentityService{Store: app.db}
	app.workspaceService = &service.WorkspaceService{Store: app.db}
	app.inviteService = &service.InviteService{
		Store:      app.db,
		Workspaces: app.workspaceService,
		Expiry:     app.cfg.InviteExpiry,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() error {
	stateSecret := app.cfg.StateSecret
	if stateSecret == "" {
		if app.cfg.Env == "prod" {
			return fmt.Errorf("STATE_SECRET is required in prod")
		}
		random, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate state secret: %w", err)
		}
		stateSecret = random
		app.logger.Warn("STATE_SECRET not set, using a random per-process secret")
	}

	registry := oauth.NewRegistry()
	if app.cfg.GoogleClientID != "" && app.cfg.GoogleClientSecret != "" {
		registry.Register(oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     app.cfg.GoogleClientID,
			ClientSecret: app.cfg.GoogleClientSecret,
			CallbackURL:  app.cfg.GoogleCallbackURL,
		}))
		app.logger.Info("oauth provider configured", "provider", oauth.ProviderGoogle)
	} else {
		app.logger.Warn("no oauth providers configured, logins will fail")
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.WebURL = app.cfg.WebURL
	router.SecureCookies = app.cfg.Env != "dev"
	router.Sessions = app.sessions
	router.Providers = registry
	router.StateSigner = oauth.NewStateSigner(stateSecret)
	router.IdentityService = app.identityService
	router.WorkspaceService = app.workspaceService
	router.InviteService = app.inviteService
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}

	return nil
}
