package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestQueueNotifierRoundTripsThroughHandler(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := events.QueueNotifier{Client: enq, Queue: "webhooks", MaxRetry: 5}
	ev := db.DomainEvent{
		ID:          uuid.New(),
		Topic:       events.TopicOrderStatusChanged,
		AggregateID: uuid.New(),
		Payload:     []byte(`{"from":"pending","to":"payment_received"}`),
		OccurredAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, q.Notify(context.Background(), ev))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, events.TaskWebhookDelivery, enq.tasks[0].Type())

	capture := &captureNotifier{}
	require.NoError(t, events.DeliveryHandler(capture)(context.Background(), enq.tasks[0]))
	require.Len(t, capture.events, 1)
	got := capture.events[0]
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.Topic, got.Topic)
	require.True(t, ev.OccurredAt.Equal(got.OccurredAt))
	require.JSONEq(t, string(ev.Payload), string(got.Payload))
}

func TestQueueNotifierIgnoresDuplicateTaskID(t *testing.T) {
	q := events.QueueNotifier{Client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, q.Notify(context.Background(), db.DomainEvent{ID: uuid.New(), Topic: "t"}))

	q = events.QueueNotifier{Client: &fakeEnqueuer{err: errors.New("redis down")}}
	require.Error(t, q.Notify(context.Background(), db.DomainEvent{ID: uuid.New(), Topic: "t"}))
}

func TestDeliveryHandlerSkipsRetryOnGarbage(t *testing.T) {
	err := events.DeliveryHandler(&captureNotifier{})(context.Background(), asynq.NewTask(events.TaskWebhookDelivery, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
