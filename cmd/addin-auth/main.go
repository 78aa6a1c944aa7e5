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

	"golang.org/x/sync/errgroup"

	"github.com/tasksuite/addin-auth/internal/authstate"
	"github.com/tasksuite/addin-auth/internal/capability"
	"github.com/tasksuite/addin-auth/internal/config"
	"github.com/tasksuite/addin-auth/internal/dialogauth"
	"github.com/tasksuite/addin-auth/internal/engine"
	"github.com/tasksuite/addin-auth/internal/host"
	"github.com/tasksuite/addin-auth/internal/identity"
	"github.com/tasksuite/addin-auth/internal/logging"
	"github.com/tasksuite/addin-auth/internal/models"
	"github.com/tasksuite/addin-auth/internal/server"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("addin-auth starting",
		slog.String("version", Version),
		slog.String("bridge_url", cfg.BridgeURL),
		slog.String("listen", cfg.ListenAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// An empty bridge URL means no host integration context: capability
	// detection reports unsupported and dialog attempts fail with a
	// typed error instead of the process refusing to start.
	var bridge host.Bridge
	if cfg.BridgeURL != "" {
		ws, err := host.Dial(ctx, cfg.BridgeURL, logger.With(slog.String("component", "bridge")))
		if err != nil {
			return fmt.Errorf("connecting to host bridge: %w", err)
		}

		g.Go(func() error {
			return ws.Listen(gctx)
		})

		bridge = ws
	} else {
		logger.Warn("no host bridge configured, nested auth unavailable")
	}

	detector := capability.New(bridge, cfg.NAAThresholds, logger.With(slog.String("component", "capability")))

	flow := dialogauth.New(bridge, dialogauth.Config{
		ClientID:    cfg.ClientID,
		TenantID:    cfg.TenantID,
		APIClientID: cfg.APIClientID,
		BaseURL:     cfg.DialogBase(),
	}, logger.With(slog.String("component", "dialog")))

	factory := identity.NewFactory(identity.NAAClientConfig{
		ClientID:    cfg.ClientID,
		Authority:   cfg.Authority(),
		APIClientID: cfg.APIClientID,
		NestedAppID: cfg.NestedAppID,
	}, flow, logger.With(slog.String("component", "identity")))

	store := authstate.NewStore(logger.With(slog.String("component", "authstate")))
	eng := engine.New(detector, factory, store, logger.With(slog.String("component", "engine")))

	unsubscribe := eng.OnAuthStateChange(func(s models.AuthState) {
		logger.Debug("auth state changed",
			slog.Bool("authenticating", s.IsAuthenticating),
			slog.Bool("authenticated", s.IsAuthenticated),
		)
	})
	defer unsubscribe()

	g.Go(func() error {
		return serveAPI(gctx, cfg, eng, logger.With(slog.String("component", "api")))
	})

	// Initialization needs the bridge listener running, so it happens
	// alongside the API server rather than before it. Until it
	// completes the token endpoint answers NOT_INITIALIZED.
	g.Go(func() error {
		if err := eng.Initialize(gctx); err != nil {
			return fmt.Errorf("initializing engine: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func serveAPI(ctx context.Context, cfg *config.Config, svc server.TokenService, logger *slog.Logger) error {
	mux := server.NewMux(server.MuxConfig{
		Service: svc,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting API server", slog.String("listen", cfg.ListenAddr))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}

	return nil
}
