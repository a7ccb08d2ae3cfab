package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/handlers"
	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Using TextHandler for console readability; for production JSONHandler might be preferred.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	live := config.NewManager(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init Store
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var st store.Store = db
	var previews media.PreviewStore = media.NewMemoryPreviews()
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		st = store.NewCachedStore(db, store.NewProductCache(rdb, cfg.Redis.CacheTTL))
		previews = media.NewRedisPreviews(rdb, time.Hour)
		slog.Info("Redis enabled", "addr", cfg.Redis.Addr, "cache_ttl", cfg.Redis.CacheTTL)
	}

	// 3. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 4. Media pipeline
	uploader := media.NewCloudinaryUploader(live, &http.Client{Timeout: 2 * time.Minute})
	uploads := media.NewManager(previews, uploader, live, 2*time.Hour)
	go uploads.Run(ctx)

	// 5. Setup Handlers
	router := &handlers.Router{
		Auth:    &handlers.AuthHandler{Users: st, Sessions: sessionStore},
		Catalog: &handlers.CatalogHandler{Products: st, Settings: st, Config: live},
		Orders: &handlers.OrderHandler{
			Products: st,
			Settings: st,
			Config:   live,
			Checkout: &order.Checkout{Prefix: cfg.OrderPrefix, SiteURL: cfg.SiteURL},
		},
		Admin:    &handlers.AdminHandler{Store: st, Uploads: uploads, Config: live},
		Previews: &handlers.PreviewHandler{Previews: previews},
		// Rate Limiter (1 order per minute per client)
		Limiter: handlers.NewRateLimiter(ctx, time.Minute),
	}

	// 6. Middleware Setup
	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		// Trust local development origins
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// Chain: RequestID -> RealIP -> Logger -> Recoverer -> Security Headers -> CSRF -> Routes
	handler := middleware.RequestID(
		middleware.RealIP(
			handlers.LoggingMiddleware(
				middleware.Recoverer(
					handlers.SecurityHeadersMiddleware(
						CSRF(router.Handler()),
					),
				),
			),
		),
	)

	// 7. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "store", cfg.Store.Driver, "cloud_name", cfg.Media.CloudName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-ctx.Done()

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully.")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
