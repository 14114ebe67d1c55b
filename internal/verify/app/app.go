package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/stepauth/internal/verify/http"
	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application wires the verification service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      *sqlite.Store
	signer  *jwtx.EdDSASigner
	sender  messenger.Sender
	metrics *metrics.Metrics

	verificationService *service.VerificationService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// NewLogger returns the service logger for cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "verifyd",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:     cfg,
		logger:  NewLogger(cfg),
		metrics: metrics.New(),
	}

	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "file", cfg.DatabaseFile)

	hasher, err := NewHasher(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	signer, err := InitSigner(cfg, app.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.signer = signer

	app.sender = newSender(cfg, app.logger)
	app.initServices(hasher)
	app.initHTTP()

	return app, nil
}

// OpenStore opens the SQLite database and applies pending migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.DatabaseFile,
	)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// NewHasher returns the password hasher using the pepper file, creating it
// on first use.
func NewHasher(cfg Config) (*cryptox.PasswordHasher, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	return cryptox.NewPasswordHasher(pepper), nil
}

func newSender(cfg Config, logger *slog.Logger) messenger.Sender {
	if cfg.Messenger == MessengerBale {
		return messenger.NewBaleSender(cfg.BaleAPIURL, cfg.BaleToken)
	}
	logger.Warn("codes are written to the log, not delivered", "messenger", cfg.Messenger)
	return messenger.NewLogSender(logger.With("component", "messenger"))
}

func (app *Application) initServices(hasher *cryptox.PasswordHasher) {
	app.verificationService = &service.VerificationService{
		Store:             app.db,
		Sender:            app.sender,
		Hasher:            hasher,
		Signer:            app.signer,
		ChallengeVerifier: jwtx.NewEdDSAVerifier(app.cfg.Issuer, jwtx.AudienceChallenge, 5*time.Second, app.signer.Public()),
		Metrics:           app.metrics,
		Issuer:            app.cfg.Issuer,
		CodeTTL:           app.cfg.CodeTTL,
		SessionTTL:        app.cfg.SessionTTL,
		MaxAttempts:       app.cfg.MaxAttempts,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.metrics,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(
		app.signer,
		jwtx.NewEdDSAVerifier(app.cfg.Issuer, jwtx.AudienceSession, 5*time.Second, app.signer.Public()),
		BuildVersion,
		app.db,
		app.sender,
		app.metrics,
		app.logger,
	)
	app.router.VerificationService = app.verificationService
	app.router.Cookies = httpapi.CookieConfig{Secure: app.cfg.CookieSecure}
	app.router.Limits = app.cfg.RateLimits
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler returns the HTTP handler with every route and middleware applied.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("verification service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains the HTTP server, stops housekeeping and closes the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down verification service")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("verification service stopped")
	return nil
}

// Close releases resources of an Application that was never run.
func (app *Application) Close() error {
	return app.db.Close()
}
