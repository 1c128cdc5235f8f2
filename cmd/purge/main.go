// Command purge enqueues removal of one cache entry, e.g.
//
//	purge -prefix referral_token -subject 6f1c...
package main

import (
	"context"
	"flag"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/internal/config"
	"github.com/briangreenhill/referrals/internal/jobs"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	prefix := flag.String("prefix", "", "key prefix, e.g. referral_token")
	subject := flag.String("subject", "", "subject id; empty for a prefix-only key")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("Error closing asynq client")
		}
	}()

	info, err := jobs.EnqueueInvalidate(context.Background(), client, jobs.InvalidatePayload{Prefix: *prefix, Subject: *subject})
	if err != nil {
		logger.Fatal().Err(err).Msg("[asynq] enqueue failed")
	}
	logger.Info().Str("id", info.ID).Str("queue", info.Queue).Msg("[asynq] enqueued task")
}
