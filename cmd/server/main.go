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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/api"
	"github.com/sitegate-io/sitegate/internal/auth"
	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repository"
	"github.com/sitegate-io/sitegate/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr string
	dbDriver string
	dbDSN    string
	logLevel string

	issuerURL      string
	clientID       string
	clientSecret   string
	callbackURL    string
	postLogoutURL  string
	enablePKCE     bool
	bootstrapAdmin string

	sessionBackend string
	sessionTTL     time.Duration
	redisAddr      string

	secureCookies bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "sitegate",
		Short: "sitegate — OIDC authentication gateway for tenant sites",
		Long: `sitegate authenticates end users against an external OpenID Connect
identity provider, reconciles the resulting identity with the local user
store, maintains server-side sessions, and issues open-redirect-safe
post-login redirects to the tenant sites a user is allowed to edit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("SITEGATE_HTTP_ADDR", ":8080"), "HTTP listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("SITEGATE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("SITEGATE_DB_DSN", "./sitegate.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("SITEGATE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	root.PersistentFlags().StringVar(&cfg.issuerURL, "oidc-issuer", envOrDefault("SITEGATE_OIDC_ISSUER", ""), "OIDC issuer URL (required)")
	root.PersistentFlags().StringVar(&cfg.clientID, "oidc-client-id", envOrDefault("SITEGATE_OIDC_CLIENT_ID", ""), "OIDC client ID (required)")
	root.PersistentFlags().StringVar(&cfg.clientSecret, "oidc-client-secret", envOrDefault("SITEGATE_OIDC_CLIENT_SECRET", ""), "OIDC client secret")
	root.PersistentFlags().StringVar(&cfg.callbackURL, "callback-url", envOrDefault("SITEGATE_CALLBACK_URL", ""), "Absolute URL of the /oidc-callback endpoint (required)")
	root.PersistentFlags().StringVar(&cfg.postLogoutURL, "post-logout-url", envOrDefault("SITEGATE_POST_LOGOUT_URL", "/"), "URL the provider returns to after logout")
	root.PersistentFlags().BoolVar(&cfg.enablePKCE, "pkce", envOrDefault("SITEGATE_PKCE", "true") == "true", "Use PKCE in the authorization code flow")
	root.PersistentFlags().StringVar(&cfg.bootstrapAdmin, "bootstrap-admin", envOrDefault("SITEGATE_BOOTSTRAP_ADMIN", ""), "Subject identifier promoted to administrator on login")

	root.PersistentFlags().StringVar(&cfg.sessionBackend, "session-backend", envOrDefault("SITEGATE_SESSION_BACKEND", "memory"), "Session store backend (memory or redis)")
	root.PersistentFlags().DurationVar(&cfg.sessionTTL, "session-ttl", envDurationOrDefault("SITEGATE_SESSION_TTL", session.DefaultTTL), "Sliding session inactivity window")
	root.PersistentFlags().StringVar(&cfg.redisAddr, "redis-addr", envOrDefault("SITEGATE_REDIS_ADDR", "localhost:6379"), "Redis address for the redis session backend")

	root.PersistentFlags().BoolVar(&cfg.secureCookies, "secure-cookies", envOrDefault("SITEGATE_SECURE_COOKIES", "true") == "true", "Set the Secure flag on cookies (disable for local HTTP development)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sitegate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.issuerURL == "" || cfg.clientID == "" || cfg.callbackURL == "" {
		return fmt.Errorf("oidc-issuer, oidc-client-id and callback-url are required")
	}

	logger.Info("starting sitegate",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("issuer", cfg.issuerURL),
		zap.String("session_backend", cfg.sessionBackend),
		zap.Bool("pkce", cfg.enablePKCE),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.New(db.Config{
		Driver: cfg.dbDriver,
		DSN:    cfg.dbDSN,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(database)
	sites := repository.NewSiteRepository(database)

	// Provider discovery runs once here; a failure aborts startup.
	provider, err := auth.NewProvider(ctx, auth.ProviderConfig{
		IssuerURL:    cfg.issuerURL,
		ClientID:     cfg.clientID,
		ClientSecret: cfg.clientSecret,
		RedirectURL:  cfg.callbackURL,
		EnablePKCE:   cfg.enablePKCE,
	})
	if err != nil {
		return err
	}
	logger.Info("provider discovery completed")

	store, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, users, cfg.sessionTTL)

	reconciler := auth.NewReconciler(users, cfg.bootstrapAdmin, logger)
	redirects := auth.NewRedirectValidator(sites, logger)
	authSvc := auth.NewService(provider, reconciler, redirects, sessions, cfg.postLogoutURL, logger)

	handler := api.NewRouter(api.RouterConfig{
		AuthService: authSvc,
		Sessions:    sessions,
		Logger:      logger,
		Users:       users,
		Sites:       sites,
		Secure:      cfg.secureCookies,
	})

	srv := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down sitegate")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// buildSessionStore selects the session backend. The redis backend is pinged
// before use so a misconfigured address fails at startup, not at first login.
func buildSessionStore(ctx context.Context, cfg *config) (session.Store, error) {
	switch cfg.sessionBackend {
	case "memory", "":
		return session.NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return session.NewRedisStore(client), nil

	default:
		return nil, fmt.Errorf("unsupported session backend %q, use \"memory\" or \"redis\"", cfg.sessionBackend)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
