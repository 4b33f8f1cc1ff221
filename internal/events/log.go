package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Name implements Notifier.
func (LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("order_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("payment_event")
	return nil
}
