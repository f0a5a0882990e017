// The fantasygate gateway brokers Yahoo OAuth2 login for the fantasy SPA
// and proxies Fantasy Sports API requests using per-session stored tokens.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fleetingfascinations/fantasygate/internal/config"
	"github.com/fleetingfascinations/fantasygate/internal/domain/repositories"
	"github.com/fleetingfascinations/fantasygate/internal/handlers"
	"github.com/fleetingfascinations/fantasygate/internal/infrastructure/store/memory"
	"github.com/fleetingfascinations/fantasygate/internal/infrastructure/store/postgres"
	redisstore "github.com/fleetingfascinations/fantasygate/internal/infrastructure/store/redis"
	"github.com/fleetingfascinations/fantasygate/internal/middleware"
	"github.com/fleetingfascinations/fantasygate/internal/pkg/logger"
	"github.com/fleetingfascinations/fantasygate/internal/session"
	"github.com/fleetingfascinations/fantasygate/internal/yahoo"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "fantasygate",
		Short:        "OAuth session gateway for the fantasy SPA",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	genSecretCmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Generate a session signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(secret))
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, genSecretCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.SetupLogger(logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	}))

	log := slog.Default().With(slog.String("component", "gateway"))
	log.Info("starting fantasygate")

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// The store is the only shared mutable resource; refuse to start
	// without it rather than silently serving without persistence.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("session store unavailable: %w", err)
	}

	secret, err := decodeSecret(cfg.Session.Secret)
	if err != nil {
		return fmt.Errorf("invalid session secret: %w", err)
	}

	exchanger := yahoo.NewExchanger(yahoo.ExchangerConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
	})
	fantasy := yahoo.NewClient(cfg.OAuth.APIBaseURL, 10*time.Second)

	cookies := session.NewCookieManager(secret, cfg.App.SecureCookies)
	gate := session.NewRefreshGate(store, exchanger)
	h := handlers.New(store, cookies, gate, exchanger, fantasy, cfg.App.RootURL)

	router := createRouter(h, cfg.App.AllowedOrigin)

	metricsPort := cfg.Server.MetricsPort
	if metricsPort == 0 {
		metricsPort = cfg.Server.Port + 10
	}
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", metricsPort)
		log.Info("serving metrics", slog.String("address", addr))
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("listening", slog.String("address", addr))
	return http.ListenAndServe(addr, router)
}

// buildStore constructs the configured session store backend.
func buildStore(cfg *config.Config) (repositories.SessionRepository, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		conn, err := postgres.NewConnection(cfg.Store.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := conn.RunMigrations(); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return postgres.NewSessionRepository(conn.DB), func() { conn.Close() }, nil

	case "redis":
		repo, err := redisstore.NewSessionRepository(redisstore.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil

	case "memory":
		return memory.NewSessionRepository(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// decodeSecret decodes the base64 session secret, as emitted by gen-secret.
// The encoding is mandatory: accepting raw strings as a fallback would
// silently reinterpret any raw value that happens to parse as base64.
func decodeSecret(s string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("session secret must be base64 (use gen-secret): %w", err)
	}
	if len(decoded) < 16 {
		return nil, fmt.Errorf("session secret must decode to at least 16 bytes")
	}
	return decoded, nil
}

// createRouter sets up the HTTP router with all routes and middleware
func createRouter(h *handlers.Handler, allowedOrigin string) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// Auth flow
	router.HandleFunc("/auth/login", h.Login).Methods("GET")
	router.HandleFunc("/auth/callback", h.AuthCallback).Methods("GET")

	// Session-backed API
	router.HandleFunc("/api/check-auth", h.CheckAuth).Methods("GET")
	router.HandleFunc("/api/data", h.Data).Methods("GET")
	router.HandleFunc("/api/leagues", h.Leagues).Methods("GET")
	router.HandleFunc("/api/logout", h.Logout).Methods("POST")

	return middleware.LogRequest(middleware.CORS(allowedOrigin, router))
}
