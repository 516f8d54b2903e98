package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/authgate/internal/api"
	"github.com/authgate/authgate/internal/api/handler"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/directory"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/notification"
	"github.com/authgate/authgate/internal/oauth"
	"github.com/authgate/authgate/internal/password"
	"github.com/authgate/authgate/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	dirClient := directory.NewClient(cfg.DirectoryURL, cfg.DirectoryTimeout)
	notifClient := notification.NewClient(cfg.NotificationURL, 10*time.Second)
	codec := token.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	hasher := password.NewHasher(cfg.BcryptCost)

	identitySvc := identity.NewService(dirClient, notifClient, codec, hasher)

	var oauthHandler *handler.OAuthHandler
	if cfg.GoogleClientID != "" {
		linker := oauth.NewLinker(oauth.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
		}, dirClient)
		oauthHandler = handler.NewOAuthHandler(linker, identitySvc, cfg.FrontendURL)
	} else {
		slog.Warn("google oauth not configured; federated login routes disabled")
	}

	router := api.NewRouter(api.RouterDeps{
		Identity:      identitySvc,
		Codec:         codec,
		Resolver:      dirClient,
		OAuth:         oauthHandler,
		Version:       cfg.Version,
		LookupTimeout: cfg.DirectoryTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting auth gateway", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
