package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-plano/internal/events"
	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/lock"
	"github.com/noah-isme/backend-plano/internal/obs"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/session"
)

// ErrNotFound is returned for an unknown or expired wizard session.
var ErrNotFound = errors.New("checkout: session not found")

const (
	keyPrefix      = "checkout:"
	defaultTTL     = 30 * time.Minute
	defaultLockTTL = 5 * time.Second
)

// Service keeps open wizards in a session store and serialises the
// operations on each one.
type Service struct {
	Store          session.Store
	Locker         lock.Locker
	Engine         pricing.Engine
	Validator      StepValidator
	Submitter      Submitter
	Events         *events.Bus
	TTL            time.Duration
	LockTTL        time.Duration
	InheritBilling bool
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Open starts a wizard for a plan snapshot on step 1.
func (s *Service) Open(ctx context.Context, snap pricing.Snapshot) (uuid.UUID, *Wizard, error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, nil, err
	}
	billing := pricing.Monthly
	if s.InheritBilling {
		billing = snap.Plan.Billing
	}
	id := uuid.New()
	w := s.wizard(NewState(snap, billing))
	if err := s.Store.Save(ctx, key(id), w.State(), s.ttl()); err != nil {
		return uuid.Nil, nil, fmt.Errorf("checkout: save session: %w", err)
	}
	s.emit(ctx, events.TopicCheckoutOpened, id, map[string]any{
		"plan":    snap.Plan,
		"billing": billing,
	})
	return id, w, nil
}

// Get loads a wizard without changing it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Wizard, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// UpdatePersonal stores the personal data form.
func (s *Service) UpdatePersonal(ctx context.Context, id uuid.UUID, info form.PersonalInfo) (*Wizard, error) {
	return s.mutate(ctx, id, "personal", func(w *Wizard) error { return w.SetPersonal(info) })
}

// UpdateCompany stores the company data form.
func (s *Service) UpdateCompany(ctx context.Context, id uuid.UUID, info form.CompanyInfo) (*Wizard, error) {
	return s.mutate(ctx, id, "company", func(w *Wizard) error { return w.SetCompany(info) })
}

// UpdateAddress stores the address form.
func (s *Service) UpdateAddress(ctx context.Context, id uuid.UUID, info form.AddressInfo) (*Wizard, error) {
	return s.mutate(ctx, id, "address", func(w *Wizard) error { return w.SetAddress(info) })
}

// SetBilling switches the wizard billing mode.
func (s *Service) SetBilling(ctx context.Context, id uuid.UUID, mode pricing.BillingMode) (*Wizard, error) {
	return s.mutate(ctx, id, "billing", func(w *Wizard) error { return w.SetBilling(mode) })
}

// Next validates the current step and advances.
func (s *Service) Next(ctx context.Context, id uuid.UUID) (*Wizard, error) {
	return s.mutate(ctx, id, "next", func(w *Wizard) error { return w.Next() })
}

// Back returns to the previous step.
func (s *Service) Back(ctx context.Context, id uuid.UUID) (*Wizard, error) {
	return s.mutate(ctx, id, "back", func(w *Wizard) error { return w.Back() })
}

// Submit hands the finished order to the submitter and removes the session.
// On a validation or submitter failure the wizard stays open and its field
// errors are kept.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (Order, *Wizard, error) {
	if err := s.ready(); err != nil {
		return Order{}, nil, err
	}
	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.submit")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", id.String()))

	var (
		order Order
		w     *Wizard
	)
	err := s.Locker.WithLock(ctx, key(id), s.lockTTL(), func(ctx context.Context) error {
		var err error
		w, err = s.load(ctx, id)
		if err != nil {
			return err
		}
		order, err = w.Submit(ctx)
		if err != nil {
			if saveErr := s.Store.Save(ctx, key(id), w.State(), s.ttl()); saveErr != nil {
				return errors.Join(err, fmt.Errorf("checkout: save session: %w", saveErr))
			}
			return err
		}
		if err := s.retire(ctx, id, w); err != nil {
			return fmt.Errorf("checkout: order %s submitted: %w", order.ID, err)
		}
		return nil
	})

	billing := ""
	if w != nil {
		billing = string(w.State().Billing)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.observe("submit", w, err)
		if obs.OrderSubmissionsTotal != nil && !errors.Is(err, ErrNotFound) {
			obs.OrderSubmissionsTotal.WithLabelValues(billing, submitResult(err)).Inc()
		}
		return Order{}, w, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.billing", billing),
		attribute.Int64("order.payable_monthly", order.Pricing.PayableMonthly),
	)
	s.observe("submit", w, nil)
	if obs.OrderSubmissionsTotal != nil {
		obs.OrderSubmissionsTotal.WithLabelValues(billing, "ok").Inc()
	}
	if obs.OrderMonthlyValue != nil {
		obs.OrderMonthlyValue.Observe(float64(order.Pricing.PayableMonthly) / 100)
	}
	s.Logger.Info().
		Str("checkout_id", id.String()).
		Str("order_id", order.ID.String()).
		Str("billing", billing).
		Msg("checkout_order_submitted")
	return order, w, nil
}

// Cancel closes the wizard without submitting and removes the session.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := s.Locker.WithLock(ctx, key(id), s.lockTTL(), func(ctx context.Context) error {
		w, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		w.Cancel()
		return s.retire(ctx, id, w)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.TopicCheckoutCanceled, id, nil)
	return nil
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, action string, fn func(*Wizard) error) (*Wizard, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var w *Wizard
	err := s.Locker.WithLock(ctx, key(id), s.lockTTL(), func(ctx context.Context) error {
		var err error
		w, err = s.load(ctx, id)
		if err != nil {
			return err
		}
		opErr := fn(w)
		if opErr != nil && !errors.Is(opErr, ErrValidation) {
			return opErr
		}
		if err := s.Store.Save(ctx, key(id), w.State(), s.ttl()); err != nil {
			return fmt.Errorf("checkout: save session: %w", err)
		}
		return opErr
	})
	s.observe(action, w, err)
	return w, err
}

// retire removes a closed wizard's session. When the delete fails the closed
// state is written back instead, so the session can never be submitted again.
func (s *Service) retire(ctx context.Context, id uuid.UUID, w *Wizard) error {
	delErr := s.Store.Delete(ctx, key(id))
	if delErr == nil {
		return nil
	}
	s.Logger.Warn().Err(delErr).Str("checkout_id", id.String()).Msg("checkout_session_delete_failed")
	if err := s.Store.Save(ctx, key(id), w.State(), s.ttl()); err != nil {
		return errors.Join(
			fmt.Errorf("checkout: delete session: %w", delErr),
			fmt.Errorf("checkout: save closed session: %w", err),
		)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Wizard, error) {
	var state State
	if err := s.Store.Load(ctx, key(id), &state); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkout: load session: %w", err)
	}
	return s.wizard(state), nil
}

func (s *Service) wizard(state State) *Wizard {
	return NewWizard(state, Deps{
		Engine:    s.Engine,
		Validator: s.Validator,
		Submitter: s.Submitter,
		Now:       s.Now,
	})
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("checkout_id", id.String()).Msg("checkout_event_failed")
	}
}

func (s *Service) observe(action string, w *Wizard, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) && obs.ValidationFailuresTotal != nil {
		obs.ValidationFailuresTotal.WithLabelValues(strconv.Itoa(int(vErr.Step))).Inc()
	}
	if obs.WizardTransitionsTotal == nil || w == nil {
		return
	}
	obs.WizardTransitionsTotal.WithLabelValues(action, submitResult(err)).Inc()
}

func submitResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFinalStep), errors.Is(err, ErrClosed):
		return "rejected"
	default:
		return "error"
	}
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Locker == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return defaultLockTTL
	}
	return s.LockTTL
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }
