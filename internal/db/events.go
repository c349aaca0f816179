package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type InsertDomainEventParams struct {
	Topic       string
	AggregateID uuid.UUID
	Payload     json.RawMessage
}

// InsertDomainEvent appends an event to the outbox table.
func (q *Queries) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error) {
	var ev DomainEvent
	err := q.db.QueryRow(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload) VALUES ($1, $2, $3, $4)
RETURNING id, topic, aggregate_id, payload, occurred_at`, uuid.New(), arg.Topic, arg.AggregateID, arg.Payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
