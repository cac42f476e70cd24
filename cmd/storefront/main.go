// Storefront client runtime: keeps the shopper's cart in sync with the
// storefront API and serves it to local UIs over REST and MCP.
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

	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/cartsync"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/localstore"
	"storefront/internal/middleware"
	"storefront/internal/orders"
	"storefront/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.Environment, cfg.LogLevel)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("api_url", cfg.API.BaseURL),
		slog.String("transport", cfg.API.Transport),
		slog.String("state_db", cfg.StateDB),
	)

	// Request layer
	kind, err := transport.ParseKind(cfg.API.Transport)
	if err != nil {
		return err
	}
	rt, err := transport.New(kind, cfg.API.Timeout.Std())
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	client, err := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout.Std(),
		Retries:   cfg.API.Retries,
		Transport: rt,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating api client: %w", err)
	}

	// Local state
	store, err := localstore.Open(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("opening state db: %w", err)
	}
	defer store.Close()

	session, err := auth.NewSession(ctx, client, store, logger)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	// Cart engine
	engine := cartsync.New(store, gateway.NewHTTP(client), session, logger, cartsync.Options{
		Debounce: cfg.API.SyncDebounce.Std(),
	})
	engine.Start(ctx)
	defer engine.Close()

	products := catalog.New(client, catalog.Config{
		CacheTTL:   cfg.API.CatalogCacheTTL.Std(),
		MaxEntries: cfg.API.CatalogCacheMax,
	}, logger)
	orderService := orders.New(client, logger)

	h := handler.New(handler.Deps{
		Cart:     engine,
		Catalog:  products,
		Checkout: checkout.New(engine, session, orderService, logger),
		Orders:   orderService,
		Session:  session,
	}, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
			slog.String("cart_state", engine.State().String()),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	// Deferred engine.Close flushes a pending cart sync before the store closes.
	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(environment, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
