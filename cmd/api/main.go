// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/auth"
	"github.com/briangreenhill/referrals/internal/config"
	"github.com/briangreenhill/referrals/internal/db"
	"github.com/briangreenhill/referrals/internal/http/routes"
	"github.com/briangreenhill/referrals/internal/referral"
)

func main() {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	logger = logger.Level(cfg.Level())
	logger.Info().Str("port", cfg.Port).Msg("starting app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	queries := db.New(pool)

	// Cache store, shared by every decorator
	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis error")
	}
	store := cache.NewRedisStore(client, cache.WithTimeout(cfg.Redis.Timeout))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}()

	tokens, err := auth.NewTokens(auth.Config{
		Algorithm:  cfg.JWT.Algorithm,
		Secret:     cfg.JWT.Secret,
		PrivateKey: cfg.JWT.PrivateKey,
		PublicKey:  cfg.JWT.PublicKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("jwt config")
	}

	// Router / server
	s := routes.New(routes.ServerOptions{
		Logger: logger,
		Store:  store,
		Ping:   store,
		Referral: &referral.Service{
			Repo:     queries,
			Store:    store,
			Tokens:   tokens,
			TokenTTL: cfg.ReferralTTL(),
		},
		Verifier:  tokens,
		TokenTTL:  cfg.ReferralTTL(),
		LookupTTL: cfg.LookupCacheTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("serve")
	}
	logger.Info().Msg("stopped")
}
