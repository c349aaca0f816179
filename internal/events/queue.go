package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/storefront-api/internal/db"
)

// TaskWebhookDelivery is the asynq task type carrying one event to the webhook.
const TaskWebhookDelivery = "events:webhook_delivery"

// Enqueuer is the subset of asynq.Client used to schedule deliveries.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier defers webhook delivery to the worker. Tasks are keyed by
// event id so a redispatched event is enqueued at most once.
type QueueNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

// Notify implements Notifier.
func (q QueueNotifier) Notify(ctx context.Context, ev db.DomainEvent) error {
	if q.Client == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode delivery task: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if q.Queue != "" {
		opts = append(opts, asynq.Queue(q.Queue))
	}
	if q.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(q.MaxRetry))
	}
	_, err = q.Client.EnqueueContext(ctx, asynq.NewTask(TaskWebhookDelivery, body), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Topic, err)
	}
	return nil
}

// DeliveryHandler returns the worker handler that replays queued events
// through n. Undecodable tasks are dropped without retry.
func DeliveryHandler(n Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var ev db.DomainEvent
		if err := json.Unmarshal(task.Payload(), &ev); err != nil {
			return fmt.Errorf("decode delivery task: %v: %w", err, asynq.SkipRetry)
		}
		return n.Notify(ctx, ev)
	}
}
