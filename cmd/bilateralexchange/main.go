package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/bilateralexchange/internal/config"
	"github.com/efreitasn/bilateralexchange/internal/handler"
	"github.com/efreitasn/bilateralexchange/internal/registry"
	"github.com/efreitasn/bilateralexchange/internal/service"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	// The in-process ledger stands in for the chain's marker, scope,
	// attribute and bank modules.
	ledger := registry.NewLedger(cfg.ContractAddress)
	if cfg.RegistrySeedFile != "" {
		if err := ledger.LoadSeed(cfg.RegistrySeedFile); err != nil {
			logger.Error("failed to load registry seed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	svc := service.New(st, ledger, ledger, logger)
	settings, err := svc.InitSettings(cfg.Settings())
	if err != nil {
		logger.Error("failed to initialize settings", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("exchange initialized",
		slog.String("contract", settings.ContractAddress),
		slog.String("admin", settings.Admin),
		slog.String("store", cfg.StoreBackend),
	)

	router := handler.NewRouter(svc, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", slog.String("error", err.Error()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == "pebble" {
		return store.OpenPebbleStore(cfg.DataDir)
	}
	return store.NewMemoryStore(), nil
}
