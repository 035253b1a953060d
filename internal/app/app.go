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

	"flowauth/internal/config"
	"flowauth/internal/database"
	"flowauth/internal/handler"
	"flowauth/internal/middleware"
	"flowauth/internal/oauth"
	"flowauth/internal/repository"
	"flowauth/internal/router"
	"flowauth/internal/service"
	"flowauth/internal/session"
)

type App struct {
	server *http.Server
	db     *database.DB
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	slog.Info("database ready")

	tokenService, err := service.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	linker := service.NewGoogleLinker(userRepo, cfg.StoreRetryBackoff)
	authService := service.NewAuthService(userRepo, tokenService, linker)

	var google *oauth.GoogleProvider
	if cfg.GoogleEnabled() {
		google, err = oauth.NewGoogle(context.Background(), cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize google provider: %w", err)
		}
		slog.Info("google sign-in enabled")
	} else {
		slog.Warn("google sign-in disabled: provider is not configured")
	}

	// Cookie lifetimes track the token lifetimes so a cookie never outlives
	// the token it carries.
	cookies := session.CookieWriter{
		Secure:     cfg.IsProduction(),
		SameSite:   cfg.CookieSameSite,
		AccessTTL:  tokenService.AccessTTL(),
		RefreshTTL: tokenService.RefreshTTL(),
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// A typed nil *GoogleProvider must not reach the handler as a non-nil
	// interface value, so the disabled case passes an untyped nil.
	authHandler := handler.NewAuthHandler(authService, nil, cookies, cfg.FrontendURL)
	if google != nil {
		authHandler = handler.NewAuthHandler(authService, google, cookies, cfg.FrontendURL)
	}

	appRouter := router.New(cfg, authMiddleware, authHandler, db.Health)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{server: server, db: db}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.db.Close()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
