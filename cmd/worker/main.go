package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/config"
	"github.com/briangreenhill/referrals/internal/jobs"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	logger = logger.Level(cfg.Level())

	client, err := cache.NewRedisClient(context.Background(), cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to redis")
	}
	store := cache.NewRedisStore(client, cache.WithTimeout(cfg.Redis.Timeout))
	defer store.Close() //nolint:errcheck

	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueueCache: 10, // higher priority
			"default":       5,
		},
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TypeCacheInvalidate, jobs.NewInvalidateHandler(store, logger))

	logger.Info().Msg("Worker running...")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

func redisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}
