package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/events"
	"github.com/noah-isme/backend-tour/internal/resilience"
)

// TypeBookingNotify is the asynq task type carrying booking notifications.
const TypeBookingNotify = "booking:notify"

// taskEnvelope wraps the event payload with its topic so the worker can
// compose the right email.
type taskEnvelope struct {
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Enqueuer hands booking events to the asynq queue for out-of-process
// delivery. Enqueue failures propagate to the bus, which logs and swallows
// them.
type Enqueuer struct {
	Client  *asynq.Client
	Enabled bool
}

// Notify implements the events.Notifier interface.
func (e Enqueuer) Notify(ctx context.Context, event events.DomainEvent) error {
	if !e.Enabled || e.Client == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicBookingCreated, events.TopicBookingUpdated:
	default:
		return nil
	}
	body, err := json.Marshal(taskEnvelope{Topic: event.Topic, OccurredAt: event.OccurredAt, Payload: event.Payload})
	if err != nil {
		return fmt.Errorf("notify enqueue: encode: %w", err)
	}
	task := asynq.NewTask(TypeBookingNotify, body, asynq.MaxRetry(3))
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify enqueue: %w", err)
	}
	return nil
}

// Deliverer processes queued booking notifications in the worker. A circuit
// breaker keeps a broken mail relay from being hammered.
type Deliverer struct {
	Mail         common.EmailSender
	AdminAddress string
	Breaker      *resilience.Breaker
	Logger       zerolog.Logger
}

// HandleBookingNotify is the asynq handler for TypeBookingNotify tasks.
func (d Deliverer) HandleBookingNotify(ctx context.Context, task *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		// malformed payloads will never succeed; drop them
		d.Logger.Error().Err(err).Msg("drop malformed notification task")
		return nil
	}
	if d.Breaker != nil && !d.Breaker.Allow() {
		return resilience.ErrOpenCircuit
	}
	notifier := EmailNotifier{Mail: d.Mail, AdminAddress: d.AdminAddress, Enabled: true}
	err := notifier.Notify(ctx, events.DomainEvent{Topic: envelope.Topic, OccurredAt: envelope.OccurredAt, Payload: envelope.Payload})
	if d.Breaker != nil {
		d.Breaker.Report(err == nil)
	}
	if err != nil {
		d.Logger.Warn().Err(err).Msg("booking notification delivery failed")
		return err
	}
	return nil
}
