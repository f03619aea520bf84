package checkout

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-plano/internal/events"
)

// Submitter receives completed orders.
type Submitter interface {
	Submit(ctx context.Context, order Order) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, order Order) error

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, order Order) error { return f(ctx, order) }

// LogSubmitter writes the whole order as a structured log line.
type LogSubmitter struct {
	Logger zerolog.Logger
}

// Submit implements Submitter.
func (s LogSubmitter) Submit(_ context.Context, order Order) error {
	s.Logger.Info().
		Str("order_id", order.ID.String()).
		Str("billing", string(order.Plan.Billing)).
		Int("whatsapp_accounts", order.Plan.WhatsAppAccounts).
		Int("social_accounts", order.Plan.SocialAccounts).
		Int("user_seats", order.Plan.UserSeats).
		Bool("broadcast", order.Plan.Broadcast).
		Int64("monthly_total", order.Pricing.MonthlyTotal).
		Int64("payable_monthly", order.Pricing.PayableMonthly).
		Interface("personal", order.Personal).
		Interface("company", order.Company).
		Interface("address", order.Address).
		Time("submitted_at", order.SubmittedAt).
		Msg("checkout_submitted")
	return nil
}

// EventSubmitter publishes the order as an order.submitted event.
type EventSubmitter struct {
	Bus *events.Bus
}

// Submit implements Submitter.
func (s EventSubmitter) Submit(ctx context.Context, order Order) error {
	if s.Bus == nil {
		return errors.New("checkout: event bus not configured")
	}
	_, err := s.Bus.Emit(ctx, events.TopicOrderSubmitted, order.ID, order)
	return err
}
