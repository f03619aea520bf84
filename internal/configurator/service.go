package configurator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-plano/internal/lock"
	"github.com/noah-isme/backend-plano/internal/obs"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/session"
)

// ErrNotFound is returned for an unknown or expired panel session.
var ErrNotFound = errors.New("configurator: session not found")

const (
	keyPrefix      = "configurator:"
	defaultTTL     = 2 * time.Hour
	defaultLockTTL = 5 * time.Second
)

// Service keeps panels in a session store. Every mutation runs as
// load, change, save under the panel's lock.
type Service struct {
	Store   session.Store
	Locker  lock.Locker
	Engine  pricing.Engine
	TTL     time.Duration
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// Create stores a new panel. A nil state starts from DefaultState.
func (s *Service) Create(ctx context.Context, initial *State) (uuid.UUID, *Panel, error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, nil, err
	}
	state := DefaultState()
	if initial != nil {
		state = *initial
	}
	p := NewPanel(s.Engine, state)
	id := uuid.New()
	if err := s.Store.Save(ctx, key(id), p.State(), s.ttl()); err != nil {
		return uuid.Nil, nil, fmt.Errorf("configurator: save session: %w", err)
	}
	countQuote(p)
	s.Logger.Debug().Str("panel_id", id.String()).Msg("configurator_created")
	return id, p, nil
}

// Get loads a panel.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Panel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Increment adds one step to a control.
func (s *Service) Increment(ctx context.Context, id uuid.UUID, control string) (*Panel, error) {
	return s.mutate(ctx, id, func(p *Panel) error {
		_, err := p.Increment(control)
		return err
	})
}

// Decrement removes one step from a control.
func (s *Service) Decrement(ctx context.Context, id uuid.UUID, control string) (*Panel, error) {
	return s.mutate(ctx, id, func(p *Panel) error {
		_, err := p.Decrement(control)
		return err
	})
}

// Set assigns a control value, clamped to its bounds.
func (s *Service) Set(ctx context.Context, id uuid.UUID, control string, value int) (*Panel, error) {
	return s.mutate(ctx, id, func(p *Panel) error {
		_, err := p.Set(control, value)
		return err
	})
}

// SetBroadcast switches the broadcast add-on. A nil value toggles it.
func (s *Service) SetBroadcast(ctx context.Context, id uuid.UUID, enabled *bool) (*Panel, error) {
	return s.mutate(ctx, id, func(p *Panel) error {
		if enabled == nil {
			p.ToggleBroadcast()
			return nil
		}
		p.SetBroadcast(*enabled)
		return nil
	})
}

// SetBilling selects the billing mode of the summary.
func (s *Service) SetBilling(ctx context.Context, id uuid.UUID, mode pricing.BillingMode) (*Panel, error) {
	return s.mutate(ctx, id, func(p *Panel) error { return p.SetBilling(mode) })
}

// Snapshot copies the panel plan and pricing for a checkout.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (pricing.Snapshot, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Snapshot{}, err
	}
	return p.OpenCheckout(), nil
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Panel) error) (*Panel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var p *Panel
	err := s.Locker.WithLock(ctx, key(id), s.lockTTL(), func(ctx context.Context) error {
		var err error
		p, err = s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := s.Store.Save(ctx, key(id), p.State(), s.ttl()); err != nil {
			return fmt.Errorf("configurator: save session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	countQuote(p)
	return p, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Panel, error) {
	var state State
	if err := s.Store.Load(ctx, key(id), &state); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("configurator: load session: %w", err)
	}
	return NewPanel(s.Engine, state), nil
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Locker == nil {
		return errors.New("configurator service not configured")
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

func countQuote(p *Panel) {
	if obs.QuotesTotal != nil {
		obs.QuotesTotal.WithLabelValues(string(p.State().Billing), "panel").Inc()
	}
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }
