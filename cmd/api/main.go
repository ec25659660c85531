package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vithaluntold/accute-agents/internal/config"
	"github.com/vithaluntold/accute-agents/internal/handler"
	agentModel "github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/service/provider"
	"github.com/vithaluntold/accute-agents/internal/service/relay"
	"github.com/vithaluntold/accute-agents/internal/service/session"
	"github.com/vithaluntold/accute-agents/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_PRETTY") == "true")

	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	registry := agentModel.NewMemoryRegistry(agentModel.Seed())

	var store session.Store
	switch cfg.Store.Backend {
	case "sqlite":
		sqliteStore, err := session.NewSQLiteStore(ctx, cfg.Store.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite session store")
		}
		defer sqliteStore.Close()
		store = sqliteStore
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite session store ready")
	default:
		store = session.NewMemoryStore()
		logger.Info().Msg("in-memory session store ready")
	}

	resolver, err := provider.NewStaticResolver(ctx, cfg.Provider)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", string(cfg.Provider.Kind)).Msg("failed to initialize provider adapter")
	}
	if cfg.Provider.Enabled() {
		logger.Info().Str("provider", string(cfg.Provider.Kind)).Str("model", cfg.Provider.Model).Msg("provider adapter ready")
	} else {
		logger.Warn().Msg("no provider credentials configured; turns will report a configuration error")
	}

	rl := relay.New(store, registry, resolver, cfg.Provider.StreamResponse, cfg.Provider.RequestTimeout, logger)
	router := handler.NewRouter(registry, store, rl, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
