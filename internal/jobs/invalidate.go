package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
)

// Enqueuer is the part of *asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueInvalidate schedules removal of one cache key.
func EnqueueInvalidate(ctx context.Context, client Enqueuer, p InvalidatePayload) (*asynq.TaskInfo, error) {
	task, err := NewInvalidateTask(p)
	if err != nil {
		return nil, err
	}
	info, err := client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCache),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "enqueue invalidate")
	}
	return info, nil
}

// NewInvalidateHandler deletes the key named by each task. Removing a key
// that is already gone succeeds; store outages are retried.
func NewInvalidateHandler(store cache.Deleter, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p InvalidatePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("[asynq] bad payload")
			return errors.Wrapf(asynq.SkipRetry, "unmarshal payload: %v", err)
		}
		if p.Prefix == "" {
			return errors.Wrap(asynq.SkipRetry, "empty prefix")
		}

		key := cache.BuildKey(p.Prefix, p.Subject)
		if err := store.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("cache_key", key).Msg("[invalidate] retryable error")
			return err
		}
		logger.Info().Str("cache_key", key).Msg("[invalidate] done")
		return nil
	}
}
