package jobs

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
)

const TypeCacheInvalidate = "cache:invalidate"

// QueueCache is the queue invalidation tasks are enqueued on.
const QueueCache = "cache"

// InvalidatePayload names one cache key as its prefix and optional subject.
type InvalidatePayload struct {
	Prefix  string `json:"prefix"`
	Subject string `json:"subject,omitempty"`
}

func NewInvalidateTask(p InvalidatePayload) (*asynq.Task, error) {
	if p.Prefix == "" {
		return nil, errors.New("invalidate: prefix required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "marshal invalidate payload")
	}
	return asynq.NewTask(TypeCacheInvalidate, payload), nil
}
