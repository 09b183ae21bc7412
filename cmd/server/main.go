package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/config"
	"expense-tracker/internal/events"
	"expense-tracker/internal/guard"
	"expense-tracker/internal/handlers"
	"expense-tracker/internal/log"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file (default $"+config.ConfigFileEnv+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, db, cfg.AdminUser, cfg.AdminPassword, logger); err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	h := handlers.NewHandlers(db, tokens, guard.Policy{MaskOwnershipFailures: cfg.MaskOwnershipFailures}, publisher)

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        setupRouter(h, logger),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	logger.Info("Starting expense tracker",
		log.FieldOperation, log.OpStartup,
		"addr", srv.Addr,
		"env", cfg.Env,
		"db_path", cfg.DBPath,
		"mask_ownership_failures", cfg.MaskOwnershipFailures,
		"events", cfg.AMQPURL != "")

	return serve(ctx, srv, logger)
}

// setupRouter wraps the API routes with request logging.
func setupRouter(h *handlers.Handlers, logger *log.Logger) http.Handler {
	return log.RequestLogger(logger)(h.Routes())
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
		return nil
	})

	return g.Wait()
}

type userBootstrapper interface {
	UserCount(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
}

// bootstrapAdmin creates the configured admin user when the database has no
// users yet.
func bootstrapAdmin(ctx context.Context, users userBootstrapper, username, password string, logger *log.Logger) error {
	if username == "" || password == "" {
		return nil
	}

	count, err := users.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logger.Debug("Users exist, skipping admin bootstrap", "users", count)
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user, err := users.CreateUser(ctx, username, hash)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logger.WithComponent(log.ComponentAuth).Info("Created admin user",
		log.FieldUserID, user.ID,
		"username", user.Username)
	return nil
}

// newPublisher connects to the broker when one is configured.
func newPublisher(cfg *config.Config, logger *log.Logger) (events.Publisher, func() error, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, func() error { return nil }, nil
	}

	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect event publisher: %w", err)
	}
	logger.WithComponent(log.ComponentEvents).Info("Publishing expense events", "exchange", cfg.AMQPExchange)
	return p, p.Close, nil
}
