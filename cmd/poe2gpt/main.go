package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/formzs/poe-to-gpt/internal/auth/linuxdo"
	"github.com/formzs/poe-to-gpt/internal/botmap"
	"github.com/formzs/poe-to-gpt/internal/config"
	"github.com/formzs/poe-to-gpt/internal/db"
	"github.com/formzs/poe-to-gpt/internal/logging"
	"github.com/formzs/poe-to-gpt/internal/pool"
	"github.com/formzs/poe-to-gpt/internal/proxy/handlers"
	"github.com/formzs/poe-to-gpt/internal/proxy/middleware"
	"github.com/formzs/poe-to-gpt/internal/upstream"
	"github.com/formzs/poe-to-gpt/internal/util"
	"github.com/formzs/poe-to-gpt/internal/version"

	"gorm.io/gorm"
)

// admitStartupTokens probes the configured tokens into the pool. Serving
// with an empty pool is refused: every chat request would fail anyway.
func admitStartupTokens(ctx context.Context, tokens *pool.Pool, configured []string) error {
	for _, token := range configured {
		if err := tokens.Admit(ctx, token); err != nil {
			logrus.WithError(err).WithField("token", util.TruncateLog(token, 12)).
				Warn("upstream token rejected at startup")
			continue
		}
		logrus.WithField("token", util.TruncateLog(token, 12)).Info("upstream token admitted")
	}
	if tokens.Len() == 0 {
		return fmt.Errorf("no upstream tokens admitted (%d configured)", len(configured))
	}
	return nil
}

func buildRouter(cfg *config.Config, database *gorm.DB, tokens *pool.Pool, client *upstream.Client, catalog *botmap.Catalog, verifier middleware.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLog)
	r.Use(chimiddleware.Recoverer)

	// OAuth login flow.
	r.Get("/login", linuxdo.HandleLogin(cfg.LinuxDoClientKey, cfg.LinuxDoClientSecret, cfg.BaseURL))
	r.Get("/oauth/callback", linuxdo.HandleCallback(database, cfg.LinuxDoClientKey, cfg.LinuxDoClientSecret, cfg.BaseURL))
	r.Get("/login/success", linuxdo.HandleLoginSuccess())

	// Self-service key rotation, authenticated by the current key itself.
	r.Post("/auth/reset", handlers.SelfResetHandler(database))

	// OpenAI-compatible API, with and without the /v1 prefix. The model
	// listing carries no secrets and is served without authentication.
	chat := handlers.ChatCompletionsHandler(tokens, client, catalog)
	models := handlers.ModelsHandler(catalog)
	for _, prefix := range []string{"/v1", ""} {
		r.Get(prefix+"/models", models)
		r.With(middleware.Auth(database, cfg.AccessTokens)).
			Post(prefix+"/chat/completions", chat)
	}

	// Admin API, authenticated by a live identity-provider token.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AdminAuth(database, verifier))
		r.Post("/admin/reset-key/{userID}", handlers.ResetKeyHandler(database))
		r.Post("/admin/disable/{userID}", handlers.DisableHandler(database))
		r.Post("/admin/enable/{userID}", handlers.EnableHandler(database))
		r.Post("/admin/toggle-admin/{userID}", handlers.ToggleAdminHandler(database))
		r.Get("/users", handlers.ListUsersHandler(database))
		r.Post("/users/{userID}/toggle", handlers.ToggleUserHandler(database))
	})

	// Runtime pool admission, admin-gated.
	r.With(middleware.AdminAuth(database, verifier)).
		Post("/add_token", handlers.AddTokenHandler(tokens))

	return r
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logging.Setup(cfg.LogLevel)
	logrus.WithFields(logrus.Fields{
		"version": version.Version,
		"commit":  version.Commit,
	}).Info("poe2gpt starting")

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("failed to initialize database: %v", err)
	}

	client, err := upstream.NewClient(upstream.Options{
		BaseURL: cfg.UpstreamURL,
		Timeout: time.Duration(cfg.Timeout) * time.Second,
		Proxy:   cfg.Proxy,
	})
	if err != nil {
		logrus.Fatalf("failed to build upstream client: %v", err)
	}

	tokens := pool.New(pool.ProberFunc(func(ctx context.Context, token string) error {
		return client.ProbeToken(ctx, cfg.ProbeBot, token)
	}))
	if err := admitStartupTokens(context.Background(), tokens, cfg.Tokens); err != nil {
		logrus.Fatalf("refusing to serve: %v", err)
	}

	catalog := botmap.New(cfg.Bot)
	r := buildRouter(cfg, database, tokens, client, catalog, linuxdo.NewVerifier())

	addr := fmt.Sprintf(":%d", cfg.Port)
	logrus.WithFields(logrus.Fields{
		"addr":   addr,
		"tokens": tokens.Len(),
		"models": len(catalog.Models()),
	}).Info("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}
