package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is one persisted fact about a booking aggregate.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}

// Store defines the persistence operation required by the event bus.
type Store interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error)
}

// Notifier reacts to emitted events (email, task queues, metrics).
type Notifier interface {
	Notify(ctx context.Context, event DomainEvent) error
}

// Bus persists domain events and fans them out to downstream handlers.
// Handler errors are joined into the return value; the booking engine treats
// them as best-effort and only logs them.
type Bus struct {
	Store     Store
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured handlers.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (DomainEvent, error) {
	if b == nil || b.Store == nil {
		return DomainEvent{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return DomainEvent{}, errors.New("events: topic is required")
	}
	if aggregateID == uuid.Nil {
		return DomainEvent{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, encoded)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("events: persist event: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	default:
		return json.Marshal(v)
	}
}
