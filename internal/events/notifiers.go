package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-plano/internal/obs"
)

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID.String()).
		RawJSON("payload", event.Payload).
		Time("occurred_at", event.OccurredAt).
		Msg("domain_event")
	return nil
}

// MetricsNotifier counts events per topic.
type MetricsNotifier struct{}

// Notify implements Notifier.
func (MetricsNotifier) Notify(_ context.Context, event Event) error {
	if obs.DomainEventsTotal != nil {
		obs.DomainEventsTotal.WithLabelValues(event.Topic).Inc()
	}
	return nil
}
