package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
)

type stubStore struct {
	lastParams db.InsertDomainEventParams
	calls      int
}

func (s *stubStore) InsertDomainEvent(_ context.Context, arg db.InsertDomainEventParams) (db.DomainEvent, error) {
	s.lastParams = arg
	s.calls++
	return db.DomainEvent{
		ID:          uuid.New(),
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureNotifier struct {
	events []db.DomainEvent
}

func (c *captureNotifier) Notify(_ context.Context, event db.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	aggregate := uuid.New()
	event, err := bus.Emit(context.Background(), events.TopicOrderFinalized, aggregate, map[string]any{"total": 9500})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderFinalized, store.lastParams.Topic)
	require.JSONEq(t, `{"total":9500}`, string(store.lastParams.Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.EqualValues(t, 9500, decoded["total"])
}

func TestRecordDoesNotNotify(t *testing.T) {
	notifier := &captureNotifier{}
	base := &events.Bus{Notifiers: []events.Notifier{notifier}}
	store := &stubStore{}

	ev, err := base.WithStore(store).Record(context.Background(), events.TopicOrderStatusChanged, uuid.New(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)
	require.Empty(t, notifier.events)
	require.Nil(t, base.Store)

	require.NoError(t, base.Dispatch(context.Background(), ev))
	require.Len(t, notifier.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderFinalized, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderFinalized, uuid.New(), []byte("{oops"))
	require.Error(t, err)
}

func TestDispatchJoinsNotifierErrors(t *testing.T) {
	failing := events.NotifierFunc(func(context.Context, db.DomainEvent) error { return errors.New("down") })
	ok := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{failing, ok}}
	_, err := bus.Emit(context.Background(), events.TopicOrderFinalized, uuid.New(), nil)
	require.ErrorContains(t, err, "down")
	require.Len(t, ok.events, 1)
}

func TestLogNotifierWritesTopic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := events.LogNotifier{Logger: &logger}
	require.NoError(t, n.Notify(context.Background(), db.DomainEvent{ID: uuid.New(), Topic: events.TopicOrderRescaled, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}))
	require.Contains(t, buf.String(), events.TopicOrderRescaled)
}
