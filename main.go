package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/internsync/internal/catalog"
	"github.com/msomdec/internsync/internal/config"
	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/handler"
	"github.com/msomdec/internsync/internal/identity"
	"github.com/msomdec/internsync/internal/repository/redis"
	"github.com/msomdec/internsync/internal/repository/sqlite"
	"github.com/msomdec/internsync/internal/scheduler"
	"github.com/msomdec/internsync/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	if len(os.Args) > 1 && os.Args[1] == "create-account" {
		if err := createAccount(db, cfg, os.Args[2:]); err != nil {
			slog.Error("create account", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, db); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, db *sqlite.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var documents domain.DocumentStore = db.Documents()
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		documents = redis.NewDocumentStore(rdb, "")
		slog.Info("user documents stored in redis")
	}

	var provider domain.IdentityProvider
	if cfg.FirebaseConfigured() {
		provider = identity.NewFirebaseProvider(cfg.FirebaseAPIKey, cfg.FirebaseAuthURL, cfg.FirebaseTokenURL, cfg.PublicURL)
		slog.Info("remote identity provider: firebase")
	} else {
		provider = identity.NewBuiltinProvider(db.Accounts(), cfg.JWTSecret, cfg.BcryptCost)
		slog.Info("remote identity provider: builtin accounts")
	}

	credentials := service.NewCredentialService(db.LocalUsers(), cfg.BcryptCost)
	identities := service.NewIdentityService(provider, documents)
	favorites := service.NewFavoritesService(db.LocalUsers(), documents)
	sessions := service.NewSessionService(cfg.JWTSecret, identities, credentials, favorites)
	catalogs := service.NewCatalogService(catalog.NewLoader(cfg.ListingsURL), cfg.CatalogPageTTL)
	limiter := service.NewPerMinute(cfg.LoginRatePerMinute)

	identities.OnStateChange(func(c service.StateChange) {
		if c.User == nil {
			return
		}
		slog.Info("remote identity changed", "uid", c.User.UID, "signed_in", c.SignedIn)
	})

	// Seed the demo account (idempotent).
	if err := credentials.SeedDefault(ctx); err != nil {
		return fmt.Errorf("seed default account: %w", err)
	}
	slog.Info("default account seeded", "username", service.SeedUsername)

	sched := scheduler.New(time.Minute)
	sched.Add("catalog-pages", catalogs)
	sched.Add("login-limiter", scheduler.SweepFunc(func() int { return limiter.Sweep(10 * time.Minute) }))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, db, sessions,
		handler.NewAuthHandler(credentials, identities, sessions, limiter, cfg.CookieSecure, cfg.GoogleClientID),
		handler.NewDashboardHandler(catalogs, favorites),
		cfg.CookieSecure,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.LogRequest(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// createAccount provisions a builtin remote account:
//
//	internsync create-account -email a@b.c -name "A B" -password secret
func createAccount(db *sqlite.DB, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider := identity.NewBuiltinProvider(db.Accounts(), cfg.JWTSecret, cfg.BcryptCost)
	account, err := provider.CreateAccount(context.Background(), *email, *name, *password)
	if err != nil {
		return err
	}
	slog.Info("account created", "id", account.ID, "email", account.Email)
	return nil
}
