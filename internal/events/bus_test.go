package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	events []DomainEvent
	err    error
}

func (s *fakeStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	if s.err != nil {
		return DomainEvent{}, s.err
	}
	ev := DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []DomainEvent
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev DomainEvent) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{notifier}}

	id := uuid.New()
	ev, err := bus.Emit(context.Background(), TopicBookingCreated, id, map[string]any{"reference": "REF-250804-0417"})
	require.NoError(t, err)
	require.Equal(t, TopicBookingCreated, ev.Topic)
	require.Equal(t, id, ev.AggregateID)
	require.Len(t, store.events, 1)
	require.Len(t, notifier.seen, 1)
	require.JSONEq(t, `{"reference":"REF-250804-0417"}`, string(notifier.seen[0].Payload))
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &Bus{Store: &fakeStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), TopicBookingCreated, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	store := &fakeStore{}
	failing := &recordingNotifier{err: errors.New("smtp down")}
	ok := &recordingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{failing, ok}}

	_, err := bus.Emit(context.Background(), TopicBookingUpdated, uuid.New(), nil)
	require.Error(t, err)
	// the event is still persisted and every notifier still runs
	require.Len(t, store.events, 1)
	require.Len(t, ok.seen, 1)
}

func TestEmitRejectsInvalidRawPayload(t *testing.T) {
	bus := &Bus{Store: &fakeStore{}}
	_, err := bus.Emit(context.Background(), TopicBookingCreated, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
